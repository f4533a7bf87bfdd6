package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agrimarket/internal/domain/model"
	repo "agrimarket/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 数量の小数桁（kg単位で 0.001 まで）
const quantityPlaces = 3

type CartLine struct {
	ProductID int64
	Quantity  decimal.Decimal
}

type ShippingAddress struct {
	Name       string
	Phone      string
	Address    string
	City       string
	Region     string
	PostalCode string
}

type PlaceOrderInput struct {
	BuyerID        int64
	VendorID       *int64
	Lines          []CartLine
	Shipping       ShippingAddress
	PaymentMethod  string
	IdempotencyKey string
}

type OrderCreatorDeps struct {
	Tx       repo.TransactionManager
	Pricer   *OrderPricer
	Reserver *StockReserver
	Ledger   *TrackingLedger
	Numbers  *OrderNumberGenerator
	Notifier NotificationDispatcher
	Guard    CheckoutGuard // nilなら使わない
	Clock    Clock
	Logger   *zap.Logger
}

// OrderCreator はカートから注文を作る（検証・価格計算・在庫予約・保存を1トランザクションで）
type OrderCreator struct {
	tx       repo.TransactionManager
	pricer   *OrderPricer
	reserver *StockReserver
	ledger   *TrackingLedger
	numbers  *OrderNumberGenerator
	notifier NotificationDispatcher
	guard    CheckoutGuard
	clock    Clock
	log      *zap.Logger
}

func NewOrderCreator(d OrderCreatorDeps) *OrderCreator {
	c := &OrderCreator{
		tx:       d.Tx,
		pricer:   d.Pricer,
		reserver: d.Reserver,
		ledger:   d.Ledger,
		numbers:  d.Numbers,
		notifier: d.Notifier,
		guard:    d.Guard,
		clock:    d.Clock,
		log:      d.Logger,
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.pricer == nil {
		c.pricer = NewOrderPricer(nil, nil, nil)
	}
	if c.reserver == nil {
		c.reserver = NewStockReserver(c.clock)
	}
	if c.ledger == nil {
		c.ledger = NewTrackingLedger(c.clock)
	}
	if c.numbers == nil {
		c.numbers = NewOrderNumberGenerator(c.clock, nil)
	}
	if c.notifier == nil {
		c.notifier = noopDispatcher{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

func (c *OrderCreator) Create(ctx context.Context, in PlaceOrderInput) (OrderOutput, error) {
	method, err := validatePlaceOrder(in)
	if err != nil {
		return OrderOutput{}, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	//同じキーの同時送信を弾く（判定の正はDBのUNIQUE）
	if key != "" && c.guard != nil {
		gk := checkoutGuardKey(in.BuyerID, key)
		token, acquired, err := c.guard.Acquire(ctx, gk)
		if err != nil {
			c.log.Warn("checkout guard unavailable", zap.Int64("buyer_id", in.BuyerID), zap.Error(err))
		} else if !acquired {
			return OrderOutput{}, fmt.Errorf("%w: checkout with this idempotency key is already in progress", ErrConflict)
		} else {
			defer func() {
				if err := c.guard.Release(context.WithoutCancel(ctx), gk, token); err != nil {
					c.log.Warn("checkout guard release failed", zap.Error(err))
				}
			}()
		}
	}

	var (
		out      OrderOutput
		created  model.Order
		replayed bool
	)

	//注文処理はトランザクション
	err = c.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, in.BuyerID, key)
			if err != nil {
				return persistenceErr("find order by idempotency key", err)
			}
			if found {
				items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
				if err != nil {
					return persistenceErr("list order items", err)
				}
				out = toOrderOutput(existing, items)
				replayed = true
				return nil
			}
		}

		//商品の現在値を読んで全部チェックしてから書き込む
		snaps, err := c.loadSnapshots(ctx, r.Products(), in.Lines)
		if err != nil {
			return err
		}

		pricing := make([]PricingLine, 0, len(in.Lines))
		stock := make([]StockLine, 0, len(in.Lines))
		for i, l := range in.Lines {
			pricing = append(pricing, PricingLine{ProductID: l.ProductID, UnitPrice: snaps[i].Price, Quantity: l.Quantity})
			stock = append(stock, StockLine{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		quote := c.pricer.Price(pricing)
		//丸めると0円になる明細は受け付けない（在庫だけ減って請求されない）
		for _, pl := range quote.Lines {
			if !pl.Total.IsPositive() {
				return validationErr("quantity %s of product %d is too small to price", pl.Quantity.String(), pl.ProductID)
			}
		}

		//在庫予約（1つでも足りなければ全部ロールバック）
		if err := c.reserver.ReserveAll(ctx, r.Inventory(), stock); err != nil {
			return err
		}

		number, err := c.numbers.Next()
		if err != nil {
			return err
		}

		now := c.clock.Now()
		order := model.Order{
			OrderNumber:        number,
			BuyerID:            in.BuyerID,
			FarmerID:           snaps[0].FarmerID,
			VendorID:           in.VendorID,
			SubTotal:           quote.SubTotal,
			TaxAmount:          quote.Tax,
			ShippingCost:       quote.Shipping,
			DiscountAmount:     quote.Discount,
			TotalAmount:        quote.Total,
			Status:             model.OrderStatusPending,
			PaymentStatus:      model.PaymentStatusPending,
			PaymentMethod:      method,
			ShippingName:       strings.TrimSpace(in.Shipping.Name),
			ShippingPhone:      strings.TrimSpace(in.Shipping.Phone),
			ShippingAddress:    strings.TrimSpace(in.Shipping.Address),
			ShippingCity:       strings.TrimSpace(in.Shipping.City),
			ShippingRegion:     strings.TrimSpace(in.Shipping.Region),
			ShippingPostalCode: strings.TrimSpace(in.Shipping.PostalCode),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}

		orderID, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) {
			return fmt.Errorf("%w: order number or idempotency key already used, retry", ErrConflict)
		}
		if err != nil {
			return persistenceErr("create order", err)
		}
		order.ID = orderID

		//スナップショット
		items := make([]model.OrderItem, 0, len(quote.Lines))
		for i, pl := range quote.Lines {
			s := snaps[i]
			items = append(items, model.OrderItem{
				ProductID:    s.ProductID,
				ProductName:  s.Name,
				ProductImage: s.ImageURL,
				UnitPrice:    pl.UnitPrice,
				Quantity:     pl.Quantity,
				Unit:         s.Unit,
				TotalPrice:   pl.Total,
				QualityGrade: s.QualityGrade,
				Organic:      s.Organic,
				HarvestDate:  s.HarvestDate,
				CreatedAt:    now,
			})
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return persistenceErr("create order items", err)
		}

		if err := c.reserver.RecordReserved(ctx, r.Inventory(), orderID, stock); err != nil {
			return err
		}

		if _, err := c.ledger.Append(ctx, r.Tracking(), TrackingEntry{
			OrderID: orderID,
			Status:  model.OrderStatusPending,
			Actor:   Actor{UserID: in.BuyerID, Role: model.RoleBuyer},
		}); err != nil {
			return err
		}

		created = order
		out = toOrderOutput(order, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if replayed {
		c.log.Info("order replayed by idempotency key", zap.Int64("order_id", out.ID), zap.Int64("buyer_id", in.BuyerID))
		return out, nil
	}

	c.log.Info("order created",
		zap.Int64("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.Int64("buyer_id", created.BuyerID),
		zap.Int64("farmer_id", created.FarmerID),
		zap.String("total", created.TotalAmount.StringFixed(moneyPlaces)),
	)
	publish(ctx, c.notifier, c.log, newOrderEvent(OrderEventCreated, created, "", Actor{UserID: in.BuyerID, Role: model.RoleBuyer}, c.clock.Now()))
	return out, nil
}

// 行ごとに商品を読み、購入できるか確認する（書き込みはしない）
func (c *OrderCreator) loadSnapshots(ctx context.Context, products repo.ProductSnapshotProvider, lines []CartLine) ([]model.ProductSnapshot, error) {
	snaps := make([]model.ProductSnapshot, 0, len(lines))
	for _, l := range lines {
		s, err := products.Get(ctx, l.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, l.ProductID)
		}
		if err != nil {
			return nil, persistenceErr("load product", err)
		}
		if !s.IsActive {
			return nil, fmt.Errorf("%w: product %d", ErrProductNotActive, l.ProductID)
		}
		if l.Quantity.LessThan(s.MinOrder) {
			return nil, validationErr("quantity %s of product %d is below minimum order %s", l.Quantity.String(), l.ProductID, s.MinOrder.String())
		}
		//1注文=1農家（複数農家のカートは受け付けない）
		if len(snaps) > 0 && snaps[0].FarmerID != s.FarmerID {
			return nil, validationErr("cart contains products from more than one farmer")
		}
		if s.AvailableStock.LessThan(l.Quantity) {
			return nil, fmt.Errorf("%w: product %d, requested %s, available %s", ErrInsufficientStock, l.ProductID, l.Quantity.String(), s.AvailableStock.String())
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

func validatePlaceOrder(in PlaceOrderInput) (model.PaymentMethod, error) {
	if in.BuyerID <= 0 {
		return "", fmt.Errorf("%w: buyer required", ErrUnauthorized)
	}
	if len(in.Lines) == 0 {
		return "", validationErr("cart is empty")
	}

	seen := make(map[int64]struct{}, len(in.Lines))
	for _, l := range in.Lines {
		if l.ProductID <= 0 {
			return "", validationErr("invalid product id")
		}
		if _, dup := seen[l.ProductID]; dup {
			return "", validationErr("product %d appears more than once", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}

		if !l.Quantity.IsPositive() {
			return "", validationErr("quantity of product %d must be positive", l.ProductID)
		}
		if !l.Quantity.Equal(l.Quantity.Truncate(quantityPlaces)) {
			return "", validationErr("quantity of product %d has more than %d decimal places", l.ProductID, quantityPlaces)
		}
	}

	s := in.Shipping
	required := []struct{ field, value string }{
		{"shipping name", s.Name},
		{"shipping phone", s.Phone},
		{"shipping address", s.Address},
		{"shipping city", s.City},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return "", validationErr("%s is required", f.field)
		}
	}

	if in.VendorID != nil && *in.VendorID <= 0 {
		return "", validationErr("invalid vendor id")
	}
	if len(in.IdempotencyKey) > 255 {
		return "", validationErr("idempotency key too long")
	}

	method, err := model.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return "", validationErr("%v", err)
	}
	return method, nil
}
