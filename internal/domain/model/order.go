package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusInTransit  OrderStatus = "in_transit"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// 全ステータス（CHECK制約と入力チェックで使う）
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// 終端（ここから先の遷移はない）
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func ParseOrderStatus(v string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range OrderStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", v)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

func ParsePaymentStatus(v string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range PaymentStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown payment status %q", v)
}

type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodMobileMoney    PaymentMethod = "mobile_money"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
)

var PaymentMethods = []PaymentMethod{
	PaymentMethodCashOnDelivery,
	PaymentMethodMobileMoney,
	PaymentMethodCard,
	PaymentMethodBankTransfer,
}

func ParsePaymentMethod(v string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range PaymentMethods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q", v)
}

// 金額はすべて作成時に計算済み（あとから個別に編集しない）
type Order struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber   string `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	BuyerID       int64  `gorm:"not null;index" json:"buyer_id"`
	FarmerID      int64  `gorm:"not null;index" json:"farmer_id"`
	VendorID      *int64 `gorm:"index" json:"vendor_id,omitempty"`
	TransporterID *int64 `gorm:"index" json:"transporter_id,omitempty"`

	SubTotal       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"sub_total"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"tax_amount"`
	ShippingCost   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"shipping_cost"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`

	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(30);not null" json:"payment_method"`

	// 配送先（注文時点でコピー）
	ShippingName       string `gorm:"type:varchar(255);not null" json:"shipping_name"`
	ShippingPhone      string `gorm:"type:varchar(40);not null" json:"shipping_phone"`
	ShippingAddress    string `gorm:"type:varchar(500);not null" json:"shipping_address"`
	ShippingCity       string `gorm:"type:varchar(120);not null" json:"shipping_city"`
	ShippingRegion     string `gorm:"type:varchar(120)" json:"shipping_region"`
	ShippingPostalCode string `gorm:"type:varchar(20)" json:"shipping_postal_code"`

	// 同じキーなら同じ注文を返す（空なら使わない）
	IdempotencyKey *string `gorm:"type:varchar(255)" json:"-"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
	TrackingNumber    string     `gorm:"type:varchar(100)" json:"tracking_number"`
	TrackingURL       string     `gorm:"type:varchar(500)" json:"tracking_url"`

	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `gorm:"type:varchar(500)" json:"cancel_reason,omitempty"`
}

// キャンセル済みで支払い済みなら外部で返金が必要
func (o Order) RequiresRefund() bool {
	return o.Status == OrderStatusCancelled && o.PaymentStatus == PaymentStatusPaid
}
