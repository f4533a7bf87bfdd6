package server

import (
	"net/http"

	"agrimarket/internal/config"
	"agrimarket/internal/handler"
	"agrimarket/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Orders      *handler.OrderHandler
	AdminOrders *handler.AdminOrderHandler
	Payments    *handler.PaymentHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Orders.RegisterRoutes(e, cfg, userRepo)
	h.AdminOrders.RegisterRoutes(e, cfg, userRepo)
	h.Payments.RegisterRoutes(e)
}
