package repository

import (
	"context"
	"time"

	"agrimarket/internal/domain/model"
)

type OrderListFilter struct {
	Page          int
	Limit         int
	Status        *model.OrderStatus
	BuyerID       *int64
	FarmerID      *int64
	VendorID      *int64
	TransporterID *int64
	From          *time.Time
	To            *time.Time
}

// ステータス遷移で一緒に書き換える項目
type StatusChange struct {
	From      model.OrderStatus
	To        model.OrderStatus
	UpdatedAt time.Time

	CancelledAt       *time.Time
	CancelReason      string
	ActualDelivery    *time.Time
	TrackingNumber    string
	TrackingURL       string
	EstimatedDelivery *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	List(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)

	//同じキーなら同じ結果を返す
	FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error)

	// 現在のステータスが From のときだけ更新（false なら先を越された）
	CompareAndSetStatus(ctx context.Context, orderID int64, change StatusChange) (bool, error)
	CompareAndSetPaymentStatus(ctx context.Context, orderID int64, from, to model.PaymentStatus, now time.Time) (bool, error)

	// 配送業者の割り当て（ステータスが変わっていないときだけ）
	AssignTransporter(ctx context.Context, orderID int64, status model.OrderStatus, transporterID int64, now time.Time) (bool, error)
}
