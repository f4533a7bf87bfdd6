package repository

import (
	"context"

	"agrimarket/internal/domain/model"
)

// 作成と読み取りだけ（更新はしない）
type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
