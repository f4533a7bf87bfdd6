package usecase

import (
	"github.com/shopspring/decimal"
)

// 金額の小数桁
const moneyPlaces = 2

type PricingLine struct {
	ProductID int64
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

type PricedLine struct {
	PricingLine
	Total decimal.Decimal
}

type Quote struct {
	Lines    []PricedLine
	SubTotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

type TaxPolicy interface {
	Tax(subTotal decimal.Decimal) decimal.Decimal
}

type ShippingPolicy interface {
	Shipping(lines []PricedLine, subTotal decimal.Decimal) decimal.Decimal
}

type DiscountPolicy interface {
	Discount(lines []PricedLine, subTotal decimal.Decimal) decimal.Decimal
}

// 税率をかけるだけ（0なら非課税）
type FlatRateTax struct {
	Rate decimal.Decimal
}

func (t FlatRateTax) Tax(subTotal decimal.Decimal) decimal.Decimal {
	return subTotal.Mul(t.Rate)
}

// 一律送料。FreeOver以上なら無料（0なら無効）
type FlatShipping struct {
	Fee      decimal.Decimal
	FreeOver decimal.Decimal
}

func (s FlatShipping) Shipping(_ []PricedLine, subTotal decimal.Decimal) decimal.Decimal {
	if s.FreeOver.IsPositive() && subTotal.GreaterThanOrEqual(s.FreeOver) {
		return decimal.Zero
	}
	return s.Fee
}

type NoDiscount struct{}

func (NoDiscount) Discount([]PricedLine, decimal.Decimal) decimal.Decimal { return decimal.Zero }

// OrderPricer は入力だけから金額を決める（I/Oなし）
type OrderPricer struct {
	tax      TaxPolicy
	shipping ShippingPolicy
	discount DiscountPolicy
}

// nilのポリシーは 0 扱い
func NewOrderPricer(tax TaxPolicy, shipping ShippingPolicy, discount DiscountPolicy) *OrderPricer {
	if tax == nil {
		tax = FlatRateTax{}
	}
	if shipping == nil {
		shipping = FlatShipping{}
	}
	if discount == nil {
		discount = NoDiscount{}
	}
	return &OrderPricer{tax: tax, shipping: shipping, discount: discount}
}

// 各金額は足す前に丸めるので total = subTotal + tax + shipping - discount がちょうど成り立つ
func (p *OrderPricer) Price(lines []PricingLine) Quote {
	q := Quote{
		Lines:    make([]PricedLine, 0, len(lines)),
		SubTotal: decimal.Zero,
	}

	for _, l := range lines {
		total := roundMoney(l.UnitPrice.Mul(l.Quantity))
		q.Lines = append(q.Lines, PricedLine{PricingLine: l, Total: total})
		q.SubTotal = q.SubTotal.Add(total)
	}

	q.Tax = nonNegative(roundMoney(p.tax.Tax(q.SubTotal)))
	q.Shipping = nonNegative(roundMoney(p.shipping.Shipping(q.Lines, q.SubTotal)))

	// 値引きは合計をマイナスにしない
	gross := q.SubTotal.Add(q.Tax).Add(q.Shipping)
	q.Discount = decimal.Min(nonNegative(roundMoney(p.discount.Discount(q.Lines, q.SubTotal))), gross)

	q.Total = gross.Sub(q.Discount)
	return q
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
