package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/storefront-service/controllers"
	"github.com/yashrajoria/storefront-service/middleware"
)

// RegisterStoreRoutes sets up the catalog, cart, checkout and account
// routes. mutationLimit guards every cart write; pass nil to disable it.
func RegisterStoreRoutes(
	r gin.IRouter,
	catalog *controllers.CatalogController,
	cart *controllers.CartController,
	account *controllers.AccountController,
	mutationLimit gin.HandlerFunc,
) {
	products := r.Group("/products")
	products.GET("", catalog.ListProducts)
	products.GET("/:id", catalog.GetProduct)

	cartRoutes := r.Group("/cart")
	cartRoutes.GET("", cart.ViewCart)
	cartRoutes.GET("/checkout", cart.CheckoutForm)

	writes := cartRoutes.Group("")
	if mutationLimit != nil {
		writes.Use(mutationLimit)
	}
	writes.POST("/add/:productId", cart.AddToCart())
	writes.POST("/increase/:productId", cart.IncreaseQuantity())
	writes.POST("/decrease/:productId", cart.DecreaseQuantity())
	writes.POST("/remove/:productId", cart.RemoveFromCart())
	writes.POST("/place-order", cart.PlaceOrder)
	writes.POST("/checkout", cart.SubmitCheckout)
	writes.POST("/cancel", cart.CancelCart)

	accountRoutes := r.Group("")
	accountRoutes.Use(middleware.RequireUser())
	accountRoutes.GET("/my-data", account.GetMyData)
	accountRoutes.PUT("/my-data", account.UpdateMyData)
	accountRoutes.GET("/orders", account.ListOrders)
	accountRoutes.GET("/orders/:id", account.GetOrder)
}
