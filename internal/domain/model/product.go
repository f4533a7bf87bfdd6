package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品はカタログ側の持ち物。ここでは読み取りと在庫の増減だけ
type Product struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	FarmerID     int64           `gorm:"not null;index" json:"farmer_id"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	ImageURL     string          `gorm:"type:varchar(500)" json:"image_url"`
	Price        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`
	Unit         string          `gorm:"type:varchar(30);not null" json:"unit"`
	MinOrder     decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0" json:"min_order"`
	Stock        decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"stock"`
	QualityGrade string          `gorm:"type:varchar(30)" json:"quality_grade"`
	Organic      bool            `gorm:"not null;default:false" json:"organic"`
	HarvestDate  *time.Time      `json:"harvest_date,omitempty"`
	IsActive     bool            `gorm:"not null;default:false" json:"is_active"`
	CreatedAt    time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

// 注文作成時に読む商品の現在値
type ProductSnapshot struct {
	ProductID      int64
	FarmerID       int64
	Name           string
	ImageURL       string
	Price          decimal.Decimal
	Unit           string
	MinOrder       decimal.Decimal
	AvailableStock decimal.Decimal
	QualityGrade   string
	Organic        bool
	HarvestDate    *time.Time
	IsActive       bool
}

func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ProductID:      p.ID,
		FarmerID:       p.FarmerID,
		Name:           p.Name,
		ImageURL:       p.ImageURL,
		Price:          p.Price,
		Unit:           p.Unit,
		MinOrder:       p.MinOrder,
		AvailableStock: p.Stock,
		QualityGrade:   p.QualityGrade,
		Organic:        p.Organic,
		HarvestDate:    p.HarvestDate,
		IsActive:       p.IsActive,
	}
}
