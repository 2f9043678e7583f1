package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/nutrishop/storefront/internal/handlers"
	"github.com/nutrishop/storefront/internal/handlers/cart"
	mwauth "github.com/nutrishop/storefront/internal/middleware/auth"
	"github.com/nutrishop/storefront/internal/models"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	CouponHandler  *handlers.CouponHandler
	CartHandler    *cart.CartHandler
	OrderHandler   *handlers.OrderHandler
	PaymentHandler *handlers.PaymentHandler
	Verifier       *mwauth.Verifier
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.POST("/auth/register", d.AuthHandler.Register)
	e.POST("/auth/login", d.AuthHandler.Login)
	e.GET("/whoami", d.AuthHandler.WhoAmI, d.Verifier.RequireLogin)

	catalog := e.Group("/catalog")
	catalog.GET("/products", d.ProductHandler.GetProducts)
	catalog.GET("/products/search", d.ProductHandler.SearchProducts)
	catalog.GET("/products/:id", d.ProductHandler.GetProduct)
	catalog.POST("/coupons/validate", d.CouponHandler.ValidateCoupon)

	adminCatalog := e.Group("/catalog", d.Verifier.RequireRoles(models.RoleAdmin))
	adminCatalog.POST("/products", d.ProductHandler.CreateProduct)
	adminCatalog.PUT("/products/:id", d.ProductHandler.UpdateProduct)
	adminCatalog.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	adminCatalog.POST("/coupons", d.CouponHandler.CreateCoupon)

	cartGroup := e.Group("/cart", d.Verifier.RequireLogin)
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("/items", d.CartHandler.AddItem)
	cartGroup.PATCH("/items/:id", d.CartHandler.UpdateItem)
	cartGroup.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cartGroup.DELETE("", d.CartHandler.ClearCart)
	cartGroup.POST("/merge", d.CartHandler.MergeGuestCart)

	ordersGroup := e.Group("/orders", d.Verifier.RequireLogin)
	ordersGroup.POST("/checkout", d.OrderHandler.CheckoutOrder)
	ordersGroup.POST("/payment/init", d.OrderHandler.InitPayment)
	ordersGroup.GET("", d.OrderHandler.ListOrders)
	ordersGroup.GET("/search", d.OrderHandler.SearchOrders)
	ordersGroup.GET("/:id", d.OrderHandler.GetOrder)

	adminOrders := e.Group("/orders", d.Verifier.RequireRoles(models.RoleAdmin))
	adminOrders.PATCH("/:id/status", d.OrderHandler.UpdateStatus)
	adminOrders.DELETE("/:id", d.OrderHandler.DeleteOrder)

	e.POST("/payments/webhook", d.PaymentHandler.HandleWebhook)
}
