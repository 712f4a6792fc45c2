package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/middleware"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/services"
)

// CartController handles the cart and checkout endpoints.
type CartController struct {
	cartService     services.CartService
	checkoutService services.CheckoutService
}

func NewCartController(cartService services.CartService, checkoutService services.CheckoutService) *CartController {
	return &CartController{cartService: cartService, checkoutService: checkoutService}
}

type cartResponse struct {
	Cart      *models.Order `json:"cart"`
	ItemCount int           `json:"item_count"`
}

func newCartResponse(cart *models.Order) cartResponse {
	return cartResponse{Cart: cart, ItemCount: cart.ItemCount()}
}

// ViewCart handles GET /cart.
func (cc *CartController) ViewCart(ctx *gin.Context) {
	cart, err := cc.cartService.View(ctx.Request.Context(), middleware.NewCartRequest(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, newCartResponse(cart))
}

type lineOp func(cc *CartController, ctx *gin.Context, req *services.CartRequest, productID uuid.UUID) (*models.Order, error)

func (cc *CartController) lineHandler(op lineOp) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		productID, err := uuid.Parse(ctx.Param("productId"))
		if err != nil {
			_ = ctx.Error(apperrors.ErrProductNotFound)
			return
		}
		cart, err := op(cc, ctx, middleware.NewCartRequest(ctx), productID)
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		ctx.JSON(http.StatusOK, newCartResponse(cart))
	}
}

// AddToCart handles POST /cart/add/:productId.
func (cc *CartController) AddToCart() gin.HandlerFunc {
	return cc.lineHandler(func(cc *CartController, ctx *gin.Context, req *services.CartRequest, id uuid.UUID) (*models.Order, error) {
		return cc.cartService.Add(ctx.Request.Context(), req, id)
	})
}

// IncreaseQuantity handles POST /cart/increase/:productId.
func (cc *CartController) IncreaseQuantity() gin.HandlerFunc {
	return cc.lineHandler(func(cc *CartController, ctx *gin.Context, req *services.CartRequest, id uuid.UUID) (*models.Order, error) {
		return cc.cartService.Increase(ctx.Request.Context(), req, id)
	})
}

// DecreaseQuantity handles POST /cart/decrease/:productId.
func (cc *CartController) DecreaseQuantity() gin.HandlerFunc {
	return cc.lineHandler(func(cc *CartController, ctx *gin.Context, req *services.CartRequest, id uuid.UUID) (*models.Order, error) {
		return cc.cartService.Decrease(ctx.Request.Context(), req, id)
	})
}

// RemoveFromCart handles POST /cart/remove/:productId.
func (cc *CartController) RemoveFromCart() gin.HandlerFunc {
	return cc.lineHandler(func(cc *CartController, ctx *gin.Context, req *services.CartRequest, id uuid.UUID) (*models.Order, error) {
		return cc.cartService.Remove(ctx.Request.Context(), req, id)
	})
}

// PlaceOrder handles POST /cart/place-order: the stock check shown before
// the contact form.
func (cc *CartController) PlaceOrder(ctx *gin.Context) {
	cart, err := cc.checkoutService.Validate(ctx.Request.Context(), middleware.NewCartRequest(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"cart":       cart,
		"item_count": cart.ItemCount(),
		"next":       "/cart/checkout",
	})
}

// CheckoutForm handles GET /cart/checkout.
func (cc *CartController) CheckoutForm(ctx *gin.Context) {
	form, err := cc.checkoutService.Prefill(ctx.Request.Context(), middleware.NewCartRequest(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"form":          form,
		"authenticated": middleware.GetActor(ctx).IsAuthenticated(),
	})
}

// SubmitCheckout handles POST /cart/checkout. Registered shoppers may send
// an empty body.
func (cc *CartController) SubmitCheckout(ctx *gin.Context) {
	var form models.ContactForm
	if ctx.Request.Body != nil && ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&form); err != nil && !errors.Is(err, io.EOF) {
			_ = ctx.Error(apperrors.ErrInvalidContact.Wrap(err))
			return
		}
	}

	order, err := cc.checkoutService.Finalize(ctx.Request.Context(), middleware.NewCartRequest(ctx), form)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"order":   order,
		"message": "Order placed",
	})
}

// CancelCart handles POST /cart/cancel.
func (cc *CartController) CancelCart(ctx *gin.Context) {
	if err := cc.cartService.Cancel(ctx.Request.Context(), middleware.NewCartRequest(ctx)); err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Order cancelled"})
}
