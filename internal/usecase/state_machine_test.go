package usecase

import (
	"context"
	"testing"
	"time"

	"agrimarket/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	m := NewOrderStateMachine(StateMachineDeps{})

	cases := []struct {
		role model.Role
		from model.OrderStatus
		to   model.OrderStatus
		want error
	}{
		{model.RoleFarmer, model.OrderStatusPending, model.OrderStatusConfirmed, nil},
		{model.RoleFarmer, model.OrderStatusConfirmed, model.OrderStatusProcessing, nil},
		{model.RoleFarmer, model.OrderStatusProcessing, model.OrderStatusShipped, nil},
		{model.RoleFarmer, model.OrderStatusShipped, model.OrderStatusInTransit, ErrUnauthorized},
		{model.RoleTransporter, model.OrderStatusShipped, model.OrderStatusInTransit, nil},
		{model.RoleTransporter, model.OrderStatusInTransit, model.OrderStatusDelivered, nil},
		{model.RoleTransporter, model.OrderStatusPending, model.OrderStatusConfirmed, ErrUnauthorized},
		{model.RoleBuyer, model.OrderStatusPending, model.OrderStatusCancelled, nil},
		{model.RoleBuyer, model.OrderStatusConfirmed, model.OrderStatusCancelled, nil},
		{model.RoleBuyer, model.OrderStatusPending, model.OrderStatusConfirmed, ErrUnauthorized},
		{model.RoleBuyer, model.OrderStatusProcessing, model.OrderStatusCancelled, ErrInvalidTransition},
		{model.RoleVendor, model.OrderStatusPending, model.OrderStatusConfirmed, ErrUnauthorized},
		{model.RoleAdmin, model.OrderStatusPending, model.OrderStatusConfirmed, nil},
		{model.RoleAdmin, model.OrderStatusInTransit, model.OrderStatusCancelled, nil},
		{model.RoleAdmin, model.OrderStatusPending, model.OrderStatusShipped, ErrInvalidTransition},
		{model.RoleAdmin, model.OrderStatusDelivered, model.OrderStatusCancelled, ErrInvalidTransition},
		{model.RoleAdmin, model.OrderStatusCancelled, model.OrderStatusPending, ErrInvalidTransition},
		{model.RoleFarmer, model.OrderStatusPending, model.OrderStatusDelivered, ErrInvalidTransition},
		{model.RoleFarmer, model.OrderStatusConfirmed, model.OrderStatusConfirmed, ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(string(tc.role)+"_"+string(tc.from)+"_"+string(tc.to), func(t *testing.T) {
			err := m.CanTransition(tc.role, tc.from, tc.to)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCanTransition_LateCancellation(t *testing.T) {
	strict := NewOrderStateMachine(StateMachineDeps{})
	lenient := NewOrderStateMachine(StateMachineDeps{AllowLateCancellation: true})

	for _, from := range []model.OrderStatus{model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusInTransit} {
		assert.ErrorIs(t, strict.CanTransition(model.RoleBuyer, from, model.OrderStatusCancelled), ErrInvalidTransition)
		assert.NoError(t, lenient.CanTransition(model.RoleBuyer, from, model.OrderStatusCancelled))
	}
	assert.ErrorIs(t, lenient.CanTransition(model.RoleBuyer, model.OrderStatusDelivered, model.OrderStatusCancelled), ErrInvalidTransition)
}

func TestTransition_SkippingStatesIsRejected(t *testing.T) {
	env := newTestEnv(false)
	out := env.placeBasicOrder(t)

	_, err := env.svc.Transition(context.Background(), admin, out.ID, "delivered", TransitionDetails{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, model.OrderStatusPending, env.store.order(out.ID).Status)
	assert.Len(t, env.store.eventsOf(out.ID), 1)
	assert.Len(t, env.notifier.all(), 1, "only the created event")
}

func TestTransition_FullLifecycle(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	out := env.placeBasicOrder(t)
	eta := t0.Add(48 * time.Hour)

	_, err := env.svc.Transition(ctx, farmer, out.ID, "confirmed", TransitionDetails{})
	require.NoError(t, err)
	_, err = env.svc.AssignTransporter(ctx, farmer, out.ID, hauler.UserID)
	require.NoError(t, err)
	_, err = env.svc.Transition(ctx, farmer, out.ID, "processing", TransitionDetails{Notes: "sorting"})
	require.NoError(t, err)
	_, err = env.svc.Transition(ctx, farmer, out.ID, "shipped", TransitionDetails{
		TrackingNumber:    "TRK-1",
		TrackingURL:       "https://track.example/TRK-1",
		EstimatedDelivery: &eta,
	})
	require.NoError(t, err)
	_, err = env.svc.Transition(ctx, hauler, out.ID, "in_transit", TransitionDetails{Location: "Naivasha"})
	require.NoError(t, err)
	final, err := env.svc.Transition(ctx, hauler, out.ID, "delivered", TransitionDetails{Location: "Nakuru"})
	require.NoError(t, err)

	assert.Equal(t, "delivered", final.Status)
	assert.Equal(t, "TRK-1", final.TrackingNumber)
	require.NotNil(t, final.ActualDelivery)
	require.NotNil(t, final.EstimatedDelivery)
	assert.Equal(t, eta, *final.EstimatedDelivery)

	history, err := env.svc.History(ctx, buyer, out.ID)
	require.NoError(t, err)
	require.Len(t, history, 6)

	want := []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusConfirmed,
		model.OrderStatusProcessing,
		model.OrderStatusShipped,
		model.OrderStatusInTransit,
		model.OrderStatusDelivered,
	}
	for i, ev := range history {
		assert.Equal(t, want[i], ev.Status)
		if i > 0 {
			assert.False(t, ev.CreatedAt.Before(history[i-1].CreatedAt))
		}
	}
	assert.Equal(t, "Naivasha", history[4].Location)
	assert.Equal(t, model.RoleTransporter, history[5].ActorRole)

	// 終端からはどこにも行けない
	_, err = env.svc.Transition(ctx, admin, out.ID, "cancelled", TransitionDetails{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// 在庫は予約されたまま
	assert.Equal(t, "47.5", env.store.stockOf(1).String())
}

func TestCancel_ConfirmedOrderRestoresStock(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	out := env.placeBasicOrder(t)

	_, err := env.svc.Transition(ctx, farmer, out.ID, "confirmed", TransitionDetails{})
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(ctx, buyer, out.ID, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, "cancelled", cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)
	assert.False(t, cancelled.RequiresRefund)

	assert.Equal(t, "50", env.store.stockOf(1).String())
	assert.Equal(t, "40", env.store.stockOf(2).String())

	var released []string
	for _, mv := range env.store.stockMovements() {
		if mv.Reason == model.StockMovementRelease {
			released = append(released, mv.Delta.String())
		}
	}
	assert.Equal(t, []string{"2.5", "10"}, released)

	events := env.store.eventsOf(out.ID)
	require.Len(t, events, 3)
	assert.Equal(t, model.OrderStatusCancelled, events[2].Status)
	assert.Equal(t, "changed my mind", events[2].Notes)

	sent := env.notifier.all()
	last := sent[len(sent)-1]
	assert.Equal(t, OrderEventStatusChanged, last.Type)
	assert.Equal(t, model.OrderStatusConfirmed, last.OldStatus)
	assert.Equal(t, model.OrderStatusCancelled, last.NewStatus)
}

func TestCancel_TwiceIsInvalidAndReleasesOnce(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	out := env.placeBasicOrder(t)

	_, err := env.svc.Cancel(ctx, buyer, out.ID, "")
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, buyer, out.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, "50", env.store.stockOf(1).String())
	assert.Equal(t, "40", env.store.stockOf(2).String())
}

func TestCancel_LateCancellationPolicy(t *testing.T) {
	for _, allow := range []bool{false, true} {
		env := newTestEnv(allow)
		ctx := context.Background()
		out := env.placeBasicOrder(t)

		_, err := env.svc.Transition(ctx, farmer, out.ID, "confirmed", TransitionDetails{})
		require.NoError(t, err)
		_, err = env.svc.Transition(ctx, farmer, out.ID, "processing", TransitionDetails{})
		require.NoError(t, err)

		_, err = env.svc.Cancel(ctx, buyer, out.ID, "too slow")
		if allow {
			require.NoError(t, err)
			assert.Equal(t, "50", env.store.stockOf(1).String())
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, "47.5", env.store.stockOf(1).String())
		}
	}
}

func TestCancel_AdminForceCancelIsAudited(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	out := env.placeBasicOrder(t)

	for _, st := range []string{"confirmed", "processing", "shipped"} {
		_, err := env.svc.Transition(ctx, farmer, out.ID, st, TransitionDetails{})
		require.NoError(t, err)
	}

	_, err := env.svc.Cancel(ctx, admin, out.ID, "fraud")
	require.NoError(t, err)
	assert.Equal(t, "50", env.store.stockOf(1).String())

	logs, err := env.svc.AuditTrail(ctx, admin, out.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, logs[0].Action)
	assert.Equal(t, admin.UserID, logs[0].ActorUserID)
	assert.JSONEq(t, `{"status":"shipped"}`, logs[0].BeforeJSON)
	assert.JSONEq(t, `{"status":"cancelled","reason":"fraud"}`, logs[0].AfterJSON)
}

func TestTransition_RoleAndOwnership(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	out := env.placeBasicOrder(t)

	// 購入者は確定できない
	_, err := env.svc.Transition(ctx, buyer, out.ID, "confirmed", TransitionDetails{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// 他の農家の注文は触れない
	otherFarmer := Actor{UserID: 201, Role: model.RoleFarmer}
	_, err = env.svc.Transition(ctx, otherFarmer, out.ID, "confirmed", TransitionDetails{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// 他人はキャンセルできない
	_, err = env.svc.Cancel(ctx, stranger, out.ID, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// 割り当てられていない配送業者
	_, err = env.svc.Transition(ctx, hauler, out.ID, "in_transit", TransitionDetails{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, model.OrderStatusPending, env.store.order(out.ID).Status)
	assert.Equal(t, "47.5", env.store.stockOf(1).String())
}

func TestTransition_LostRaceIsConflictAndRollsBack(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	out := env.placeBasicOrder(t)
	env.store.casLoses = true

	_, err := env.svc.Cancel(ctx, buyer, out.ID, "")
	assert.ErrorIs(t, err, ErrConflict)

	// 在庫戻しも巻き戻る
	assert.Equal(t, "47.5", env.store.stockOf(1).String())
	assert.Len(t, env.store.eventsOf(out.ID), 1)
}

func TestTransition_UnknownOrderAndStatus(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()

	_, err := env.svc.Transition(ctx, admin, 404, "confirmed", TransitionDetails{})
	assert.ErrorIs(t, err, ErrNotFound)

	out := env.placeBasicOrder(t)
	_, err = env.svc.Transition(ctx, admin, out.ID, "teleported", TransitionDetails{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransition_NotifierFailureKeepsTransition(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	out := env.placeBasicOrder(t)
	env.notifier.err = errBoom

	got, err := env.svc.Transition(ctx, farmer, out.ID, "confirmed", TransitionDetails{})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, model.OrderStatusConfirmed, env.store.order(out.ID).Status)
}
