package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agrimarket/internal/domain/model"
	repo "agrimarket/internal/repository"

	"go.uber.org/zap"
)

// refunded は paid からだけ
var paymentEdges = map[model.PaymentStatus]map[model.PaymentStatus]bool{
	model.PaymentStatusPending: {model.PaymentStatusPaid: true, model.PaymentStatusFailed: true},
	model.PaymentStatusFailed:  {model.PaymentStatusPaid: true, model.PaymentStatusPending: true},
	model.PaymentStatusPaid:    {model.PaymentStatusRefunded: true},
}

type PaymentStatusInput struct {
	OrderID   int64
	Status    string
	Reference string // 決済側の取引ID（監査ログ用）
}

func CanTransitionPayment(from, to model.PaymentStatus) error {
	if paymentEdges[from][to] {
		return nil
	}
	return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, from, to)
}

// 決済コールバックの唯一の入口。お金は動かさない
// 同じステータスの再送は何もしない
func (m *OrderStateMachine) MarkPaymentStatus(ctx context.Context, in PaymentStatusInput) (OrderOutput, error) {
	if in.OrderID <= 0 {
		return OrderOutput{}, validationErr("invalid order id")
	}
	target, err := model.ParsePaymentStatus(in.Status)
	if err != nil {
		return OrderOutput{}, validationErr("%v", err)
	}
	reference := strings.TrimSpace(in.Reference)

	var (
		out     OrderOutput
		updated model.Order
		from    model.PaymentStatus
		changed bool
	)

	err = m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: order %d", ErrNotFound, in.OrderID)
		}
		if err != nil {
			return persistenceErr("load order", err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return persistenceErr("list order items", err)
		}

		if o.PaymentStatus == target {
			out = toOrderOutput(o, items)
			return nil
		}
		if err := CanTransitionPayment(o.PaymentStatus, target); err != nil {
			return err
		}

		now := m.clock.Now()
		ok, err := r.Orders().CompareAndSetPaymentStatus(ctx, o.ID, o.PaymentStatus, target, now)
		if err != nil {
			return persistenceErr("update payment status", err)
		}
		if !ok {
			return fmt.Errorf("%w: payment status of order %d changed concurrently", ErrConflict, o.ID)
		}

		if err := writeAudit(ctx, r.AuditLogs(), model.SystemActorID, model.AuditActionUpdatePaymentStatus, o.ID, now,
			map[string]any{"payment_status": o.PaymentStatus},
			map[string]any{"payment_status": target, "reference": reference},
		); err != nil {
			return err
		}

		from = o.PaymentStatus
		o.PaymentStatus = target
		o.UpdatedAt = now
		changed = true

		updated = o
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	if !changed {
		return out, nil
	}

	m.log.Info("payment status changed",
		zap.Int64("order_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(updated.PaymentStatus)),
		zap.String("reference", reference),
	)
	if updated.RequiresRefund() {
		m.log.Warn("payment received for cancelled order, refund required", zap.Int64("order_id", updated.ID))
	}

	ev := newOrderEvent(OrderEventPaymentStatusChanged, updated, updated.Status, systemActor, m.clock.Now())
	ev.OldPaymentStatus = from
	publish(ctx, m.notifier, m.log, ev)
	return out, nil
}
