package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrimarket/internal/domain/model"
	repo "agrimarket/internal/repository"

	"go.uber.org/zap"
)

type OrderServiceDeps struct {
	Tx           repo.TransactionManager
	Creator      *OrderCreator
	StateMachine *OrderStateMachine
	Ledger       *TrackingLedger
	Clock        Clock
	Logger       *zap.Logger
}

// OrderService は外（HTTP）から呼ばれる窓口。所有者チェックはここでやる
type OrderService struct {
	tx      repo.TransactionManager
	creator *OrderCreator
	machine *OrderStateMachine
	ledger  *TrackingLedger
	clock   Clock
	log     *zap.Logger
}

func NewOrderService(d OrderServiceDeps) *OrderService {
	s := &OrderService{
		tx:      d.Tx,
		creator: d.Creator,
		machine: d.StateMachine,
		ledger:  d.Ledger,
		clock:   d.Clock,
		log:     d.Logger,
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.ledger == nil {
		s.ledger = NewTrackingLedger(s.clock)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

type ListOrdersInput struct {
	Page     int
	Limit    int
	Status   string
	BuyerID  *int64 // ADMINのみ
	FarmerID *int64 // ADMINのみ
	From     *time.Time
	To       *time.Time
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 関係者かどうか（ADMINは全部）
func canAccess(a Actor, o model.Order) bool {
	switch a.Role {
	case model.RoleAdmin:
		return true
	case model.RoleBuyer:
		return o.BuyerID == a.UserID
	case model.RoleFarmer:
		return o.FarmerID == a.UserID
	case model.RoleTransporter:
		return o.TransporterID != nil && *o.TransporterID == a.UserID
	case model.RoleVendor:
		return o.VendorID != nil && *o.VendorID == a.UserID
	}
	return false
}

func ownershipCheck(a Actor) func(model.Order) error {
	return func(o model.Order) error {
		if !canAccess(a, o) {
			return fmt.Errorf("%w: order %d does not belong to %s %d", ErrUnauthorized, o.ID, a.Role, a.UserID)
		}
		return nil
	}
}

func requireActor(a Actor) error {
	if !a.valid() {
		return fmt.Errorf("%w: actor required", ErrUnauthorized)
	}
	return nil
}

// 購入者だけ
func (s *OrderService) PlaceOrder(ctx context.Context, actor Actor, in PlaceOrderInput) (OrderOutput, error) {
	if err := requireActor(actor); err != nil {
		return OrderOutput{}, err
	}
	if actor.Role != model.RoleBuyer {
		return OrderOutput{}, fmt.Errorf("%w: only buyers can place orders", ErrUnauthorized)
	}
	in.BuyerID = actor.UserID
	return s.creator.Create(ctx, in)
}

func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	if err := requireActor(actor); err != nil {
		return OrderOutput{}, err
	}
	if orderID <= 0 {
		return OrderOutput{}, validationErr("invalid order id")
	}

	var out OrderOutput
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := s.loadAccessible(ctx, r, actor, orderID)
		if err != nil {
			return err
		}
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return persistenceErr("list order items", err)
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// ADMIN以外は自分の注文だけ
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, in ListOrdersInput) (OrderListOutput, error) {
	if err := requireActor(actor); err != nil {
		return OrderListOutput{}, err
	}
	if in.Page < 1 {
		return OrderListOutput{}, validationErr("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return OrderListOutput{}, validationErr("invalid limit")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return OrderListOutput{}, validationErr("from must not be after to")
	}

	f := repo.OrderListFilter{Page: in.Page, Limit: in.Limit, From: in.From, To: in.To}
	if in.Status != "" {
		st, err := model.ParseOrderStatus(in.Status)
		if err != nil {
			return OrderListOutput{}, validationErr("%v", err)
		}
		f.Status = &st
	}

	self := actor.UserID
	switch actor.Role {
	case model.RoleAdmin:
		f.BuyerID = in.BuyerID
		f.FarmerID = in.FarmerID
	case model.RoleBuyer:
		f.BuyerID = &self
	case model.RoleFarmer:
		f.FarmerID = &self
	case model.RoleTransporter:
		f.TransporterID = &self
	case model.RoleVendor:
		f.VendorID = &self
	}

	out := OrderListOutput{Items: []OrderOutput{}, Page: in.Page, Limit: in.Limit}
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().List(ctx, f)
		if err != nil {
			return persistenceErr("list orders", err)
		}
		out.Total = total
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return persistenceErr("list order items", err)
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (s *OrderService) Transition(ctx context.Context, actor Actor, orderID int64, target string, d TransitionDetails) (OrderOutput, error) {
	if err := requireActor(actor); err != nil {
		return OrderOutput{}, err
	}
	return s.machine.Transition(ctx, TransitionInput{
		OrderID:   orderID,
		Actor:     actor,
		Target:    target,
		Details:   d,
		Authorize: ownershipCheck(actor),
	})
}

// 2回目のキャンセルは ErrInvalidTransition
func (s *OrderService) Cancel(ctx context.Context, actor Actor, orderID int64, reason string) (OrderOutput, error) {
	return s.Transition(ctx, actor, orderID, string(model.OrderStatusCancelled), TransitionDetails{
		CancelReason: reason,
		Notes:        reason,
	})
}

// 配送業者を割り当てられるのは confirmed / processing / shipped の間だけ
var assignableStatuses = map[model.OrderStatus]bool{
	model.OrderStatusConfirmed:  true,
	model.OrderStatusProcessing: true,
	model.OrderStatusShipped:    true,
}

func (s *OrderService) AssignTransporter(ctx context.Context, actor Actor, orderID int64, transporterID int64) (OrderOutput, error) {
	if err := requireActor(actor); err != nil {
		return OrderOutput{}, err
	}
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleFarmer {
		return OrderOutput{}, fmt.Errorf("%w: role %s cannot assign transporters", ErrUnauthorized, actor.Role)
	}
	if orderID <= 0 || transporterID <= 0 {
		return OrderOutput{}, validationErr("invalid order or transporter id")
	}

	var out OrderOutput
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := s.loadAccessible(ctx, r, actor, orderID)
		if err != nil {
			return err
		}
		if !assignableStatuses[o.Status] {
			return fmt.Errorf("%w: cannot assign transporter while order is %s", ErrInvalidTransition, o.Status)
		}

		now := s.clock.Now()
		ok, err := r.Orders().AssignTransporter(ctx, o.ID, o.Status, transporterID, now)
		if err != nil {
			return persistenceErr("assign transporter", err)
		}
		if !ok {
			return fmt.Errorf("%w: order %d is no longer %s", ErrConflict, o.ID, o.Status)
		}

		var before any
		if o.TransporterID != nil {
			before = *o.TransporterID
		}
		if err := writeAudit(ctx, r.AuditLogs(), actor.UserID, model.AuditActionAssignTransporter, o.ID, now,
			map[string]any{"transporter_id": before},
			map[string]any{"transporter_id": transporterID},
		); err != nil {
			return err
		}

		o.TransporterID = &transporterID
		o.UpdatedAt = now
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return persistenceErr("list order items", err)
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	s.log.Info("transporter assigned",
		zap.Int64("order_id", orderID),
		zap.Int64("transporter_id", transporterID),
		zap.Int64("actor_id", actor.UserID),
	)
	return out, nil
}

// 追跡履歴（古い順）
func (s *OrderService) History(ctx context.Context, actor Actor, orderID int64) ([]model.TrackingEvent, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if orderID <= 0 {
		return nil, validationErr("invalid order id")
	}

	var events []model.TrackingEvent
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := s.loadAccessible(ctx, r, actor, orderID); err != nil {
			return err
		}
		list, err := s.ledger.List(ctx, r.Tracking(), orderID)
		if err != nil {
			return err
		}
		events = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// 管理者向け：注文の監査ログ
func (s *OrderService) AuditTrail(ctx context.Context, actor Actor, orderID int64) ([]model.AuditLog, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != model.RoleAdmin {
		return nil, fmt.Errorf("%w: admin only", ErrUnauthorized)
	}
	if orderID <= 0 {
		return nil, validationErr("invalid order id")
	}

	resourceType := model.AuditResourceOrder
	var logs []model.AuditLog
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		list, err := r.AuditLogs().List(ctx, repo.AuditLogFilter{
			ResourceType: &resourceType,
			ResourceID:   &orderID,
			Limit:        200,
		})
		if err != nil {
			return persistenceErr("list audit logs", err)
		}
		logs = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *OrderService) MarkPaymentStatus(ctx context.Context, in PaymentStatusInput) (OrderOutput, error) {
	return s.machine.MarkPaymentStatus(ctx, in)
}

func (s *OrderService) loadAccessible(ctx context.Context, r repo.TxRepos, actor Actor, orderID int64) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return model.Order{}, persistenceErr("load order", err)
	}
	if err := ownershipCheck(actor)(o); err != nil {
		return model.Order{}, err
	}
	return o, nil
}
