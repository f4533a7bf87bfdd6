package repository

import (
	"context"

	"agrimarket/internal/domain/model"

	"gorm.io/gorm"
)

type TrackingEventGormRepository struct {
	db *gorm.DB
}

func NewTrackingEventGormRepository(db *gorm.DB) *TrackingEventGormRepository {
	return &TrackingEventGormRepository{db: db}
}

func (r *TrackingEventGormRepository) Append(ctx context.Context, ev model.TrackingEvent) (model.TrackingEvent, error) {
	ev.ID = 0
	if err := r.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return model.TrackingEvent{}, err
	}
	return ev, nil
}

// 古い順（同時刻はid順）
func (r *TrackingEventGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.TrackingEvent, error) {
	var events []model.TrackingEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Order("id asc").
		Find(&events).Error
	if err != nil {
		return []model.TrackingEvent{}, err
	}
	return events, nil
}

func (r *TrackingEventGormRepository) Latest(ctx context.Context, orderID int64) (model.TrackingEvent, bool, error) {
	var ev model.TrackingEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at desc").
		Order("id desc").
		First(&ev).Error
	if isNotFound(err) {
		return model.TrackingEvent{}, false, nil
	}
	if err != nil {
		return model.TrackingEvent{}, false, err
	}
	return ev, true, nil
}
