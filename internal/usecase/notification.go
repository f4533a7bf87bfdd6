package usecase

import (
	"context"
	"time"

	"agrimarket/internal/domain/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderEventType string

const (
	OrderEventCreated              OrderEventType = "order.created"
	OrderEventStatusChanged        OrderEventType = "order.status_changed"
	OrderEventPaymentStatusChanged OrderEventType = "order.payment_status_changed"
)

type OrderEvent struct {
	EventID          string              `json:"event_id"`
	Type             OrderEventType      `json:"type"`
	OrderID          int64               `json:"order_id"`
	OrderNumber      string              `json:"order_number"`
	BuyerID          int64               `json:"buyer_id"`
	FarmerID         int64               `json:"farmer_id"`
	OldStatus        model.OrderStatus   `json:"old_status,omitempty"`
	NewStatus        model.OrderStatus   `json:"new_status"`
	OldPaymentStatus model.PaymentStatus `json:"old_payment_status,omitempty"`
	PaymentStatus    model.PaymentStatus `json:"payment_status"`
	RequiresRefund   bool                `json:"requires_refund"`
	ActorRole        model.Role          `json:"actor_role"`
	OccurredAt       time.Time           `json:"occurred_at"`
}

// 通知の配送は外部。ここはイベントを渡すだけ
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, ev OrderEvent) error
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, OrderEvent) error { return nil }

func newOrderEvent(t OrderEventType, o model.Order, oldStatus model.OrderStatus, actor Actor, now time.Time) OrderEvent {
	return OrderEvent{
		EventID:        uuid.NewString(),
		Type:           t,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		BuyerID:        o.BuyerID,
		FarmerID:       o.FarmerID,
		OldStatus:      oldStatus,
		NewStatus:      o.Status,
		PaymentStatus:  o.PaymentStatus,
		RequiresRefund: o.RequiresRefund(),
		ActorRole:      actor.Role,
		OccurredAt:     now,
	}
}

// コミット後に呼ぶ。失敗してもログだけ（遷移は取り消さない）
func publish(ctx context.Context, d NotificationDispatcher, log *zap.Logger, ev OrderEvent) {
	if err := d.Dispatch(ctx, ev); err != nil {
		log.Warn("order notification failed",
			zap.String("event_id", ev.EventID),
			zap.String("type", string(ev.Type)),
			zap.Int64("order_id", ev.OrderID),
			zap.Error(err),
		)
	}
}
