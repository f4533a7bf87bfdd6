package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文時点の商品スナップショット。作成後は変更しない
type OrderItem struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      int64           `gorm:"not null;index" json:"order_id"`
	ProductID    int64           `gorm:"not null;index" json:"product_id"`
	ProductName  string          `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductImage string          `gorm:"type:varchar(500)" json:"product_image"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Quantity     decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"quantity"`
	Unit         string          `gorm:"type:varchar(30);not null" json:"unit"`
	TotalPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_price"`
	QualityGrade string          `gorm:"type:varchar(30)" json:"quality_grade"`
	Organic      bool            `gorm:"not null;default:false" json:"organic"`
	HarvestDate  *time.Time      `json:"harvest_date,omitempty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}
