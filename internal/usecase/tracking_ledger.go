package usecase

import (
	"context"
	"fmt"

	"agrimarket/internal/domain/model"
	repo "agrimarket/internal/repository"
)

type TrackingEntry struct {
	OrderID     int64
	Status      model.OrderStatus
	Location    string
	Description string
	Notes       string
	Actor       Actor
}

var defaultDescriptions = map[model.OrderStatus]string{
	model.OrderStatusPending:    "Order placed",
	model.OrderStatusConfirmed:  "Order confirmed by farmer",
	model.OrderStatusProcessing: "Order is being prepared",
	model.OrderStatusShipped:    "Order handed over for delivery",
	model.OrderStatusInTransit:  "Order is in transit",
	model.OrderStatusDelivered:  "Order delivered",
	model.OrderStatusCancelled:  "Order cancelled",
}

// TrackingLedger は注文ごとのステータス履歴。追記のみ
type TrackingLedger struct {
	clock Clock
}

func NewTrackingLedger(clock Clock) *TrackingLedger {
	if clock == nil {
		clock = systemClock{}
	}
	return &TrackingLedger{clock: clock}
}

// 受理された遷移（と作成）のときだけ呼ぶ。
// created_at は直前の履歴より前にならないように揃える
func (l *TrackingLedger) Append(ctx context.Context, events repo.TrackingEventRepository, e TrackingEntry) (model.TrackingEvent, error) {
	if _, err := model.ParseOrderStatus(string(e.Status)); err != nil {
		return model.TrackingEvent{}, validationErr("%v", err)
	}

	now := l.clock.Now()
	last, found, err := events.Latest(ctx, e.OrderID)
	if err != nil {
		return model.TrackingEvent{}, persistenceErr("load latest tracking event", err)
	}
	if found && now.Before(last.CreatedAt) {
		now = last.CreatedAt
	}

	desc := e.Description
	if desc == "" {
		desc = defaultDescriptions[e.Status]
	}

	ev, err := events.Append(ctx, model.TrackingEvent{
		OrderID:     e.OrderID,
		Status:      e.Status,
		Location:    e.Location,
		Description: desc,
		Notes:       e.Notes,
		ActorUserID: e.Actor.UserID,
		ActorRole:   e.Actor.Role,
		CreatedAt:   now,
	})
	if err != nil {
		return model.TrackingEvent{}, persistenceErr("append tracking event", err)
	}
	return ev, nil
}

// created_at昇順
func (l *TrackingLedger) List(ctx context.Context, events repo.TrackingEventRepository, orderID int64) ([]model.TrackingEvent, error) {
	if orderID <= 0 {
		return nil, validationErr("invalid order id")
	}
	list, err := events.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, persistenceErr(fmt.Sprintf("list tracking events of order %d", orderID), err)
	}
	return list, nil
}
