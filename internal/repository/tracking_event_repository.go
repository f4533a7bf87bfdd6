package repository

import (
	"context"

	"agrimarket/internal/domain/model"
)

// 追記と読み取りだけ
type TrackingEventRepository interface {
	Append(ctx context.Context, ev model.TrackingEvent) (model.TrackingEvent, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.TrackingEvent, error)
	// 最新の1件（なければ found=false）
	Latest(ctx context.Context, orderID int64) (model.TrackingEvent, bool, error)
}
