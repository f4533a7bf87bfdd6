package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"agrimarket/internal/domain/model"
	repo "agrimarket/internal/repository"

	"github.com/shopspring/decimal"
)

// =====================
// in-memory store（トランザクションはエラー時に丸ごと巻き戻す）
// =====================

type memStore struct {
	txMu sync.Mutex // WithinTx を直列にする
	mu   sync.Mutex

	products  map[int64]model.Product
	orders    map[int64]model.Order
	items     map[int64][]model.OrderItem
	events    []model.TrackingEvent
	movements []model.StockMovement
	audits    []model.AuditLog

	nextOrderID int64
	nextEventID int64
	nextAuditID int64

	// テスト用の差し込み
	casLoses       bool  // CompareAndSetStatus を常に負けさせる
	orderCreateErr error // Orders().Create が返すエラー
}

func newMemStore(products ...model.Product) *memStore {
	s := &memStore{
		products: map[int64]model.Product{},
		orders:   map[int64]model.Order{},
		items:    map[int64][]model.OrderItem{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

type memSnapshot struct {
	products  map[int64]model.Product
	orders    map[int64]model.Order
	items     map[int64][]model.OrderItem
	events    []model.TrackingEvent
	movements []model.StockMovement
	audits    []model.AuditLog
	ids       [3]int64
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memSnapshot{
		products:  make(map[int64]model.Product, len(s.products)),
		orders:    make(map[int64]model.Order, len(s.orders)),
		items:     make(map[int64][]model.OrderItem, len(s.items)),
		events:    append([]model.TrackingEvent(nil), s.events...),
		movements: append([]model.StockMovement(nil), s.movements...),
		audits:    append([]model.AuditLog(nil), s.audits...),
		ids:       [3]int64{s.nextOrderID, s.nextEventID, s.nextAuditID},
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.items {
		snap.items[k] = append([]model.OrderItem(nil), v...)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = snap.products
	s.orders = snap.orders
	s.items = snap.items
	s.events = snap.events
	s.movements = snap.movements
	s.audits = snap.audits
	s.nextOrderID, s.nextEventID, s.nextAuditID = snap.ids[0], snap.ids[1], snap.ids[2]
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(memRepos{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) stockOf(productID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}

func (s *memStore) order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) eventsOf(orderID int64) []model.TrackingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TrackingEvent
	for _, ev := range s.events {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	return out
}

func (s *memStore) auditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.audits...)
}

func (s *memStore) stockMovements() []model.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StockMovement(nil), s.movements...)
}

type memRepos struct{ s *memStore }

func (r memRepos) Orders() repo.OrderRepository           { return memOrders(r) }
func (r memRepos) OrderItems() repo.OrderItemRepository   { return memItems(r) }
func (r memRepos) Tracking() repo.TrackingEventRepository { return memTracking(r) }
func (r memRepos) Inventory() repo.InventoryRepository    { return memInventory(r) }
func (r memRepos) Products() repo.ProductSnapshotProvider { return memProducts(r) }
func (r memRepos) AuditLogs() repo.AuditLogRepository     { return memAudit(r) }

// ---- products ----

type memProducts struct{ s *memStore }

func (p memProducts) Get(ctx context.Context, productID int64) (model.ProductSnapshot, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	prod, ok := p.s.products[productID]
	if !ok {
		return model.ProductSnapshot{}, repo.ErrNotFound
	}
	return prod.Snapshot(), nil
}

// ---- inventory ----

type memInventory struct{ s *memStore }

func (i memInventory) Reserve(ctx context.Context, productID int64, qty decimal.Decimal) (bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	p, ok := i.s.products[productID]
	if !ok || p.Stock.LessThan(qty) {
		return false, nil
	}
	p.Stock = p.Stock.Sub(qty)
	i.s.products[productID] = p
	return true, nil
}

func (i memInventory) Release(ctx context.Context, productID int64, qty decimal.Decimal) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	p, ok := i.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock = p.Stock.Add(qty)
	i.s.products[productID] = p
	return nil
}

func (i memInventory) CreateMovements(ctx context.Context, movements []model.StockMovement) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	i.s.movements = append(i.s.movements, movements...)
	return nil
}

// ---- orders ----

type memOrders struct{ s *memStore }

func (o memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	ord, ok := o.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return ord, nil
}

func (o memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if o.s.orderCreateErr != nil {
		return 0, o.s.orderCreateErr
	}
	for _, existing := range o.s.orders {
		if existing.OrderNumber == order.OrderNumber {
			return 0, repo.ErrDuplicate
		}
		if order.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
			existing.BuyerID == order.BuyerID && *existing.IdempotencyKey == *order.IdempotencyKey {
			return 0, repo.ErrDuplicate
		}
	}
	o.s.nextOrderID++
	order.ID = o.s.nextOrderID
	o.s.orders[order.ID] = order
	return order.ID, nil
}

func (o memOrders) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	match := func(ord model.Order) bool {
		if f.Status != nil && ord.Status != *f.Status {
			return false
		}
		if f.BuyerID != nil && ord.BuyerID != *f.BuyerID {
			return false
		}
		if f.FarmerID != nil && ord.FarmerID != *f.FarmerID {
			return false
		}
		if f.VendorID != nil && (ord.VendorID == nil || *ord.VendorID != *f.VendorID) {
			return false
		}
		if f.TransporterID != nil && (ord.TransporterID == nil || *ord.TransporterID != *f.TransporterID) {
			return false
		}
		if f.From != nil && ord.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && ord.CreatedAt.After(*f.To) {
			return false
		}
		return true
	}

	var all []model.Order
	for _, ord := range o.s.orders {
		if match(ord) {
			all = append(all, ord)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	start := (f.Page - 1) * f.Limit
	if start >= len(all) {
		return []model.Order{}, total, nil
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (o memOrders) FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for _, ord := range o.s.orders {
		if ord.BuyerID == buyerID && ord.IdempotencyKey != nil && *ord.IdempotencyKey == key {
			return ord, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (o memOrders) CompareAndSetStatus(ctx context.Context, orderID int64, c repo.StatusChange) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	ord, ok := o.s.orders[orderID]
	if !ok || ord.Status != c.From || o.s.casLoses {
		return false, nil
	}
	applyStatusChange(&ord, c)
	o.s.orders[orderID] = ord
	return true, nil
}

func (o memOrders) CompareAndSetPaymentStatus(ctx context.Context, orderID int64, from, to model.PaymentStatus, now time.Time) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	ord, ok := o.s.orders[orderID]
	if !ok || ord.PaymentStatus != from {
		return false, nil
	}
	ord.PaymentStatus = to
	ord.UpdatedAt = now
	o.s.orders[orderID] = ord
	return true, nil
}

func (o memOrders) AssignTransporter(ctx context.Context, orderID int64, status model.OrderStatus, transporterID int64, now time.Time) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	ord, ok := o.s.orders[orderID]
	if !ok || ord.Status != status {
		return false, nil
	}
	ord.TransporterID = &transporterID
	ord.UpdatedAt = now
	o.s.orders[orderID] = ord
	return true, nil
}

// ---- order items ----

type memItems struct{ s *memStore }

func (i memItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	for k := range items {
		items[k].OrderID = orderID
		items[k].ID = int64(len(i.s.items[orderID]) + k + 1)
	}
	i.s.items[orderID] = append(i.s.items[orderID], items...)
	return nil
}

func (i memItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	return append([]model.OrderItem(nil), i.s.items[orderID]...), nil
}

// ---- tracking ----

type memTracking struct{ s *memStore }

func (t memTracking) Append(ctx context.Context, ev model.TrackingEvent) (model.TrackingEvent, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.nextEventID++
	ev.ID = t.s.nextEventID
	t.s.events = append(t.s.events, ev)
	return ev, nil
}

func (t memTracking) ListByOrderID(ctx context.Context, orderID int64) ([]model.TrackingEvent, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.TrackingEvent
	for _, ev := range t.s.events {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t memTracking) Latest(ctx context.Context, orderID int64) (model.TrackingEvent, bool, error) {
	list, _ := t.ListByOrderID(ctx, orderID)
	if len(list) == 0 {
		return model.TrackingEvent{}, false, nil
	}
	return list[len(list)-1], true, nil
}

// ---- audit ----

type memAudit struct{ s *memStore }

func (a memAudit) Create(ctx context.Context, log model.AuditLog) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.nextAuditID++
	log.ID = a.s.nextAuditID
	a.s.audits = append(a.s.audits, log)
	return nil
}

func (a memAudit) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var out []model.AuditLog
	for _, l := range a.s.audits {
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// =====================
// clock / notifier / guard
// =====================

// 呼ばれるたびに step だけ進む時計
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	return &stepClock{now: start, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (n *recordingNotifier) Dispatch(ctx context.Context, ev OrderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) all() []OrderEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]OrderEvent(nil), n.events...)
}

type fakeGuard struct {
	mu       sync.Mutex
	held     map[string]string // key -> token
	seq      int
	err      error
	released []string
}

func (g *fakeGuard) Acquire(ctx context.Context, key string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", false, g.err
	}
	if g.held == nil {
		g.held = map[string]string{}
	}
	if _, ok := g.held[key]; ok {
		return "", false, nil
	}
	g.seq++
	token := fmt.Sprintf("t%d", g.seq)
	g.held[key] = token
	return token, true, nil
}

func (g *fakeGuard) Release(ctx context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] == token {
		delete(g.held, key)
	}
	g.released = append(g.released, key)
	return nil
}

// =====================
// fixtures
// =====================

var (
	t0       = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	errBoom  = errors.New("boom")
	buyer    = Actor{UserID: 100, Role: model.RoleBuyer}
	farmer   = Actor{UserID: 200, Role: model.RoleFarmer}
	hauler   = Actor{UserID: 300, Role: model.RoleTransporter}
	admin    = Actor{UserID: 1, Role: model.RoleAdmin}
	stranger = Actor{UserID: 999, Role: model.RoleBuyer}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// トマト 200/kg（最小2kg）と キャベツ 60/個
func produce() []model.Product {
	return []model.Product{
		{ID: 1, FarmerID: farmer.UserID, Name: "Tomatoes", Price: dec("200"), Unit: "kg", MinOrder: dec("2"), Stock: dec("50"), IsActive: true},
		{ID: 2, FarmerID: farmer.UserID, Name: "Cabbage", Price: dec("60"), Unit: "head", MinOrder: dec("1"), Stock: dec("40"), IsActive: true},
		{ID: 3, FarmerID: 201, Name: "Maize", Price: dec("30"), Unit: "kg", MinOrder: dec("1"), Stock: dec("500"), IsActive: true},
		{ID: 4, FarmerID: farmer.UserID, Name: "Kale", Price: dec("25"), Unit: "bunch", MinOrder: dec("1"), Stock: dec("10"), IsActive: false},
	}
}

func validShipping() ShippingAddress {
	return ShippingAddress{Name: "Amina", Phone: "+254700000000", Address: "Plot 12", City: "Nakuru"}
}

func basicOrderInput(key string) PlaceOrderInput {
	return PlaceOrderInput{
		BuyerID: buyer.UserID,
		Lines: []CartLine{
			{ProductID: 1, Quantity: dec("2.5")},
			{ProductID: 2, Quantity: dec("10")},
		},
		Shipping:       validShipping(),
		PaymentMethod:  "mobile_money",
		IdempotencyKey: key,
	}
}

type testEnv struct {
	store    *memStore
	clock    *stepClock
	notifier *recordingNotifier
	creator  *OrderCreator
	machine  *OrderStateMachine
	svc      *OrderService
}

func newTestEnv(allowLate bool) *testEnv {
	store := newMemStore(produce()...)
	clock := newStepClock(t0, time.Second)
	notifier := &recordingNotifier{}

	creator := NewOrderCreator(OrderCreatorDeps{Tx: store, Notifier: notifier, Clock: clock})
	machine := NewOrderStateMachine(StateMachineDeps{Tx: store, Notifier: notifier, Clock: clock, AllowLateCancellation: allowLate})
	svc := NewOrderService(OrderServiceDeps{Tx: store, Creator: creator, StateMachine: machine, Clock: clock})

	return &testEnv{store: store, clock: clock, notifier: notifier, creator: creator, machine: machine, svc: svc}
}

// 2.5kg のトマトと 10個 のキャベツの注文を作る
func (e *testEnv) placeBasicOrder(t testing.TB) OrderOutput {
	t.Helper()
	out, err := e.svc.PlaceOrder(context.Background(), buyer, basicOrderInput(""))
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	return out
}
