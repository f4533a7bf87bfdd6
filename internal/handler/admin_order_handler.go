package handler

import (
	"net/http"

	"agrimarket/internal/config"
	"agrimarket/internal/domain/model"
	"agrimarket/internal/middleware"
	"agrimarket/internal/repository"
	"agrimarket/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	svc *usecase.OrderService
}

func NewAdminOrderHandler(svc *usecase.OrderService) *AdminOrderHandler {
	return &AdminOrderHandler{svc: svc}
}

type AuditLogsResponse struct {
	OrderID int64            `json:"order_id"`
	Logs    []model.AuditLog `json:"logs"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.RoleGuard(model.RoleAdmin))

	admin.GET("/orders", h.list)
	admin.GET("/orders/:id/audit-logs", h.auditLogs)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	buyerID, ok := queryInt64Ptr(c, "buyer_id")
	if !ok {
		return badRequest(c, "invalid buyer_id")
	}
	farmerID, ok := queryInt64Ptr(c, "farmer_id")
	if !ok {
		return badRequest(c, "invalid farmer_id")
	}
	from, ok := queryTimePtr(c, "from")
	if !ok {
		return badRequest(c, "invalid from")
	}
	to, ok := queryTimePtr(c, "to")
	if !ok {
		return badRequest(c, "invalid to")
	}

	out, err := h.svc.ListOrders(c.Request().Context(), actor, usecase.ListOrdersInput{
		Page:     page,
		Limit:    limit,
		Status:   c.QueryParam("status"),
		BuyerID:  buyerID,
		FarmerID: farmerID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) auditLogs(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	logs, err := h.svc.AuditTrail(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AuditLogsResponse{OrderID: id, Logs: logs})
}
