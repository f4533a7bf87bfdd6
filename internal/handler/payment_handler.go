package handler

import (
	"crypto/subtle"
	"net/http"

	"agrimarket/internal/usecase"

	"github.com/labstack/echo/v4"
)

const headerWebhookSecret = "X-Webhook-Secret"

type PaymentHandler struct {
	svc    *usecase.OrderService
	secret string
}

func NewPaymentHandler(svc *usecase.OrderService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{svc: svc, secret: webhookSecret}
}

type PaymentCallbackRequest struct {
	OrderID   int64  `json:"order_id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

// 決済プロバイダからのコールバック。JWTではなく共有シークレットで認証
func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payments/callback", h.callback)
}

func (h *PaymentHandler) callback(c echo.Context) error {
	got := c.Request().Header.Get(headerWebhookSecret)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PaymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.svc.MarkPaymentStatus(c.Request().Context(), usecase.PaymentStatusInput{
		OrderID:   req.OrderID,
		Status:    req.Status,
		Reference: req.Reference,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
