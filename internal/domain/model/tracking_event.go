package model

import "time"

// 注文ステータスの履歴。追記のみ（更新・削除しない）
type TrackingEvent struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64       `gorm:"not null;index:idx_tracking_order_created,priority:1" json:"order_id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null" json:"status"`
	Location    string      `gorm:"type:varchar(255)" json:"location"`
	Description string      `gorm:"type:varchar(500);not null" json:"description"`
	Notes       string      `gorm:"type:text" json:"notes"`
	ActorUserID int64       `gorm:"not null" json:"actor_user_id"`
	ActorRole   Role        `gorm:"type:varchar(20);not null" json:"actor_role"`
	CreatedAt   time.Time   `gorm:"not null;index:idx_tracking_order_created,priority:2" json:"created_at"`
}
