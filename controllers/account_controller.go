package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/middleware"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/services"
)

// AccountController serves the registered shopper's own data: profile and
// order history.
type AccountController struct {
	profileService services.ProfileService
	orderService   services.OrderService
}

func NewAccountController(profileService services.ProfileService, orderService services.OrderService) *AccountController {
	return &AccountController{profileService: profileService, orderService: orderService}
}

// GetMyData handles GET /my-data.
func (ac *AccountController) GetMyData(ctx *gin.Context) {
	user, err := ac.profileService.GetProfile(ctx.Request.Context(), middleware.GetActor(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMyData handles PUT /my-data.
func (ac *AccountController) UpdateMyData(ctx *gin.Context) {
	var update models.ProfileUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		_ = ctx.Error(apperrors.ErrInvalidInput.Wrap(err))
		return
	}
	user, err := ac.profileService.UpdateProfile(ctx.Request.Context(), middleware.GetActor(ctx), update)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": user, "message": "Profile updated"})
}

// ListOrders handles GET /orders.
func (ac *AccountController) ListOrders(ctx *gin.Context) {
	page, limit := parsePagination(ctx)
	resp, err := ac.orderService.GetUserOrders(ctx.Request.Context(), middleware.GetActor(ctx), page, limit)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetOrder handles GET /orders/:id.
func (ac *AccountController) GetOrder(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		_ = ctx.Error(apperrors.ErrNotFound)
		return
	}
	order, err := ac.orderService.GetOrderByID(ctx.Request.Context(), middleware.GetActor(ctx), id)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}
