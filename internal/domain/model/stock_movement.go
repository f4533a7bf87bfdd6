package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 在庫増減の理由
type StockMovementReason string

const (
	StockMovementReserve StockMovementReason = "ORDER_RESERVE"
	StockMovementRelease StockMovementReason = "ORDER_CANCEL_RELEASE"
)

// 注文起因の在庫増減の履歴（予約はマイナス、戻しはプラス）
type StockMovement struct {
	ID        int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64               `gorm:"not null;index" json:"product_id"`
	OrderID   int64               `gorm:"not null;index" json:"order_id"`
	Delta     decimal.Decimal     `gorm:"type:numeric(14,3);not null" json:"delta"`
	Reason    StockMovementReason `gorm:"type:varchar(40);not null" json:"reason"`
	CreatedAt time.Time           `gorm:"not null" json:"created_at"`
}
