package routes

import (
	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterCheckoutRoutes(r *gin.Engine, cc *controllers.CheckoutController) {
	checkout := r.Group("/checkout")
	checkout.Use(middleware.AuthMiddleware())

	checkout.POST("", cc.StartSession)
	checkout.GET("/:id", cc.GetSession)
	checkout.DELETE("/:id", cc.CloseSession)

	checkout.POST("/:id/next", cc.Advance)
	checkout.POST("/:id/back", cc.Retreat)

	checkout.PUT("/:id/shipping", cc.SetAddress)
	checkout.PUT("/:id/delivery", cc.SetDelivery)
	checkout.PUT("/:id/payment", cc.SetPayment)

	checkout.POST("/:id/wallet/connect", cc.ConnectWallet)
	checkout.DELETE("/:id/wallet", cc.DisconnectWallet)
	checkout.GET("/:id/quote", cc.QuoteCrypto)
	checkout.POST("/:id/transaction", cc.SubmitTransaction)
	checkout.POST("/:id/transaction/reconcile", cc.ReconcileTransaction)

	checkout.POST("/:id/order", cc.PlaceOrder)
}
