package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agrimarket/internal/domain/model"
	repo "agrimarket/internal/repository"

	"go.uber.org/zap"
)

type statusEdge struct {
	from model.OrderStatus
	to   model.OrderStatus
}

// 正常系は一直線
var forwardEdges = map[model.OrderStatus]model.OrderStatus{
	model.OrderStatusPending:    model.OrderStatusConfirmed,
	model.OrderStatusConfirmed:  model.OrderStatusProcessing,
	model.OrderStatusProcessing: model.OrderStatusShipped,
	model.OrderStatusShipped:    model.OrderStatusInTransit,
	model.OrderStatusInTransit:  model.OrderStatusDelivered,
}

var earlyCancellable = map[model.OrderStatus]bool{
	model.OrderStatusPending:   true,
	model.OrderStatusConfirmed: true,
}

// ALLOW_LATE_CANCELLATION のときだけ
var lateCancellable = map[model.OrderStatus]bool{
	model.OrderStatusProcessing: true,
	model.OrderStatusShipped:    true,
	model.OrderStatusInTransit:  true,
}

// ロールごとに通ってよい辺（ADMINは全部）
var roleEdges = map[model.Role]map[statusEdge]bool{
	model.RoleFarmer: {
		{model.OrderStatusPending, model.OrderStatusConfirmed}:    true,
		{model.OrderStatusConfirmed, model.OrderStatusProcessing}: true,
		{model.OrderStatusProcessing, model.OrderStatusShipped}:   true,
	},
	model.RoleTransporter: {
		{model.OrderStatusShipped, model.OrderStatusInTransit}:   true,
		{model.OrderStatusInTransit, model.OrderStatusDelivered}: true,
	},
}

type TransitionDetails struct {
	Location     string
	Description  string
	Notes        string
	CancelReason string

	// shipped のときだけ使う
	TrackingNumber    string
	TrackingURL       string
	EstimatedDelivery *time.Time
}

type TransitionInput struct {
	OrderID int64
	Actor   Actor
	Target  string
	Details TransitionDetails

	// 読み込んだ注文に対する所有者チェック（nilなら無し）
	Authorize func(o model.Order) error
}

type StateMachineDeps struct {
	Tx                    repo.TransactionManager
	Reserver              *StockReserver
	Ledger                *TrackingLedger
	Notifier              NotificationDispatcher
	Clock                 Clock
	Logger                *zap.Logger
	AllowLateCancellation bool
}

// OrderStateMachine は注文ステータスと支払いステータスの遷移を決める唯一の場所
type OrderStateMachine struct {
	tx        repo.TransactionManager
	reserver  *StockReserver
	ledger    *TrackingLedger
	notifier  NotificationDispatcher
	clock     Clock
	log       *zap.Logger
	allowLate bool
}

func NewOrderStateMachine(d StateMachineDeps) *OrderStateMachine {
	m := &OrderStateMachine{
		tx:        d.Tx,
		reserver:  d.Reserver,
		ledger:    d.Ledger,
		notifier:  d.Notifier,
		clock:     d.Clock,
		log:       d.Logger,
		allowLate: d.AllowLateCancellation,
	}
	if m.clock == nil {
		m.clock = systemClock{}
	}
	if m.reserver == nil {
		m.reserver = NewStockReserver(m.clock)
	}
	if m.ledger == nil {
		m.ledger = NewTrackingLedger(m.clock)
	}
	if m.notifier == nil {
		m.notifier = noopDispatcher{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

func (m *OrderStateMachine) edgeExists(from, to model.OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if forwardEdges[from] == to {
		return true
	}
	if to == model.OrderStatusCancelled {
		return earlyCancellable[from] || (m.allowLate && lateCancellable[from])
	}
	return false
}

// 辺がなければ ErrInvalidTransition、辺はあるがロールが違えば ErrUnauthorized
func (m *OrderStateMachine) CanTransition(role model.Role, from, to model.OrderStatus) error {
	// ADMINの強制キャンセルは終端以外ならどこからでも
	if role == model.RoleAdmin && to == model.OrderStatusCancelled && !from.IsTerminal() {
		return nil
	}
	if !m.edgeExists(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	switch role {
	case model.RoleAdmin:
		return nil
	case model.RoleBuyer:
		if to == model.OrderStatusCancelled {
			return nil
		}
	default:
		if roleEdges[role][statusEdge{from, to}] {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot move order %s -> %s", ErrUnauthorized, role, from, to)
}

func (m *OrderStateMachine) Transition(ctx context.Context, in TransitionInput) (OrderOutput, error) {
	if in.OrderID <= 0 {
		return OrderOutput{}, validationErr("invalid order id")
	}
	if !in.Actor.valid() {
		return OrderOutput{}, fmt.Errorf("%w: actor required", ErrUnauthorized)
	}
	target, err := model.ParseOrderStatus(in.Target)
	if err != nil {
		return OrderOutput{}, validationErr("%v", err)
	}

	var (
		out     OrderOutput
		updated model.Order
		from    model.OrderStatus
	)

	err = m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: order %d", ErrNotFound, in.OrderID)
		}
		if err != nil {
			return persistenceErr("load order", err)
		}

		if in.Authorize != nil {
			if err := in.Authorize(o); err != nil {
				return err
			}
		}

		//不正な遷移なら何も書かない
		if err := m.CanTransition(in.Actor.Role, o.Status, target); err != nil {
			return err
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return persistenceErr("list order items", err)
		}

		//キャンセルなら先に在庫を戻す（ステータス更新と同じトランザクション）
		if target == model.OrderStatusCancelled {
			if err := m.reserver.ReleaseAll(ctx, r.Inventory(), o.ID, stockLinesFromItems(items)); err != nil {
				return err
			}
		}

		now := m.clock.Now()
		change := buildStatusChange(o.Status, target, now, in.Details)

		//読んだときのステータスのままなら更新（先を越されたら Conflict）
		ok, err := r.Orders().CompareAndSetStatus(ctx, o.ID, change)
		if err != nil {
			return persistenceErr("update order status", err)
		}
		if !ok {
			return fmt.Errorf("%w: order %d is no longer %s", ErrConflict, o.ID, o.Status)
		}

		from = o.Status
		applyStatusChange(&o, change)

		if _, err := m.ledger.Append(ctx, r.Tracking(), TrackingEntry{
			OrderID:     o.ID,
			Status:      target,
			Location:    in.Details.Location,
			Description: in.Details.Description,
			Notes:       in.Details.Notes,
			Actor:       in.Actor,
		}); err != nil {
			return err
		}

		//管理者操作は監査ログにも残す
		if in.Actor.Role == model.RoleAdmin {
			if err := writeAudit(ctx, r.AuditLogs(), in.Actor.UserID, model.AuditActionUpdateOrderStatus, o.ID, now,
				map[string]any{"status": from},
				map[string]any{"status": target, "reason": in.Details.CancelReason},
			); err != nil {
				return err
			}
		}

		updated = o
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	m.log.Info("order status changed",
		zap.Int64("order_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_role", string(in.Actor.Role)),
		zap.Int64("actor_id", in.Actor.UserID),
	)
	if updated.RequiresRefund() {
		m.log.Warn("cancelled order was already paid, refund required", zap.Int64("order_id", updated.ID))
	}
	publish(ctx, m.notifier, m.log, newOrderEvent(OrderEventStatusChanged, updated, from, in.Actor, m.clock.Now()))
	return out, nil
}

// 遷移先に応じて一緒に書く項目
func buildStatusChange(from, to model.OrderStatus, now time.Time, d TransitionDetails) repo.StatusChange {
	c := repo.StatusChange{From: from, To: to, UpdatedAt: now}
	switch to {
	case model.OrderStatusCancelled:
		c.CancelledAt = &now
		c.CancelReason = strings.TrimSpace(d.CancelReason)
	case model.OrderStatusDelivered:
		c.ActualDelivery = &now
	case model.OrderStatusShipped:
		c.TrackingNumber = strings.TrimSpace(d.TrackingNumber)
		c.TrackingURL = strings.TrimSpace(d.TrackingURL)
		c.EstimatedDelivery = d.EstimatedDelivery
	}
	return c
}

func applyStatusChange(o *model.Order, c repo.StatusChange) {
	o.Status = c.To
	o.UpdatedAt = c.UpdatedAt
	if c.CancelledAt != nil {
		o.CancelledAt = c.CancelledAt
		o.CancelReason = c.CancelReason
	}
	if c.ActualDelivery != nil {
		o.ActualDelivery = c.ActualDelivery
	}
	if c.TrackingNumber != "" {
		o.TrackingNumber = c.TrackingNumber
	}
	if c.TrackingURL != "" {
		o.TrackingURL = c.TrackingURL
	}
	if c.EstimatedDelivery != nil {
		o.EstimatedDelivery = c.EstimatedDelivery
	}
}

func writeAudit(ctx context.Context, logs repo.AuditLogRepository, actorID int64, action model.AuditAction, orderID int64, now time.Time, before, after any) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}
	if err := logs.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   orderID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    now,
	}); err != nil {
		return persistenceErr("write audit log", err)
	}
	return nil
}
