package usecase

import (
	"context"
	"testing"
	"time"

	"agrimarket/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingLedger_AppendFillsDefaults(t *testing.T) {
	store := newMemStore()
	l := NewTrackingLedger(newStepClock(t0, 0))

	ev, err := l.Append(context.Background(), memTracking{store}, TrackingEntry{
		OrderID: 5,
		Status:  model.OrderStatusConfirmed,
		Actor:   farmer,
	})
	require.NoError(t, err)
	assert.Equal(t, "Order confirmed by farmer", ev.Description)
	assert.Equal(t, farmer.UserID, ev.ActorUserID)
	assert.Equal(t, model.RoleFarmer, ev.ActorRole)
	assert.Equal(t, t0, ev.CreatedAt)
}

// 時計が戻っても履歴の時刻は逆転しない
func TestTrackingLedger_ClampsBackwardClock(t *testing.T) {
	store := newMemStore()
	clock := newStepClock(t0, 0)
	l := NewTrackingLedger(clock)
	ctx := context.Background()

	_, err := l.Append(ctx, memTracking{store}, TrackingEntry{OrderID: 1, Status: model.OrderStatusPending, Actor: buyer})
	require.NoError(t, err)

	clock.Set(t0.Add(-time.Minute))
	ev, err := l.Append(ctx, memTracking{store}, TrackingEntry{OrderID: 1, Status: model.OrderStatusConfirmed, Actor: farmer})
	require.NoError(t, err)
	assert.Equal(t, t0, ev.CreatedAt)

	list, err := l.List(ctx, memTracking{store}, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.OrderStatusPending, list[0].Status)
	assert.Equal(t, model.OrderStatusConfirmed, list[1].Status)
}

func TestTrackingLedger_RejectsUnknownStatus(t *testing.T) {
	l := NewTrackingLedger(nil)

	_, err := l.Append(context.Background(), memTracking{newMemStore()}, TrackingEntry{OrderID: 1, Status: "lost", Actor: admin})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTrackingLedger_ListInvalidOrder(t *testing.T) {
	l := NewTrackingLedger(nil)

	_, err := l.List(context.Background(), memTracking{newMemStore()}, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTrackingLedger_ListIsPerOrder(t *testing.T) {
	store := newMemStore()
	l := NewTrackingLedger(newStepClock(t0, time.Second))
	ctx := context.Background()

	for _, id := range []int64{1, 2, 1} {
		_, err := l.Append(ctx, memTracking{store}, TrackingEntry{OrderID: id, Status: model.OrderStatusPending, Actor: buyer})
		require.NoError(t, err)
	}

	list, err := l.List(ctx, memTracking{store}, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, ev := range list {
		assert.Equal(t, int64(1), ev.OrderID)
	}
}
