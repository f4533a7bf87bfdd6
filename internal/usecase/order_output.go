package usecase

import (
	"time"

	"agrimarket/internal/domain/model"

	"github.com/shopspring/decimal"
)

type OrderItemOutput struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Image        string          `json:"image,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	QualityGrade string          `json:"quality_grade,omitempty"`
	Organic      bool            `json:"organic"`
	HarvestDate  *time.Time      `json:"harvest_date,omitempty"`
}

type ShippingOutput struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type OrderOutput struct {
	ID            int64  `json:"id"`
	OrderNumber   string `json:"order_number"`
	BuyerID       int64  `json:"buyer_id"`
	FarmerID      int64  `json:"farmer_id"`
	VendorID      *int64 `json:"vendor_id,omitempty"`
	TransporterID *int64 `json:"transporter_id,omitempty"`

	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
	PaymentMethod  string `json:"payment_method"`
	RequiresRefund bool   `json:"requires_refund"`

	SubTotal       decimal.Decimal `json:"sub_total"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	Shipping ShippingOutput `json:"shipping"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	TrackingURL       string     `json:"tracking_url,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	Items []OrderItemOutput `json:"items"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	out := OrderOutput{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		BuyerID:        o.BuyerID,
		FarmerID:       o.FarmerID,
		VendorID:       o.VendorID,
		TransporterID:  o.TransporterID,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		PaymentMethod:  string(o.PaymentMethod),
		RequiresRefund: o.RequiresRefund(),
		SubTotal:       o.SubTotal,
		TaxAmount:      o.TaxAmount,
		ShippingCost:   o.ShippingCost,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		Shipping: ShippingOutput{
			Name:       o.ShippingName,
			Phone:      o.ShippingPhone,
			Address:    o.ShippingAddress,
			City:       o.ShippingCity,
			Region:     o.ShippingRegion,
			PostalCode: o.ShippingPostalCode,
		},
		EstimatedDelivery: o.EstimatedDelivery,
		ActualDelivery:    o.ActualDelivery,
		TrackingNumber:    o.TrackingNumber,
		TrackingURL:       o.TrackingURL,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		CancelledAt:       o.CancelledAt,
		CancelReason:      o.CancelReason,
		Items:             make([]OrderItemOutput, 0, len(items)),
	}

	for _, it := range items {
		out.Items = append(out.Items, OrderItemOutput{
			ProductID:    it.ProductID,
			Name:         it.ProductName,
			Image:        it.ProductImage,
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
			Unit:         it.Unit,
			TotalPrice:   it.TotalPrice,
			QualityGrade: it.QualityGrade,
			Organic:      it.Organic,
			HarvestDate:  it.HarvestDate,
		})
	}
	return out
}
