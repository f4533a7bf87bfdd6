package repository

import (
	"context"

	"agrimarket/internal/domain/model"
)

// 注文ごとの監査ログを引くための条件
type AuditLogFilter struct {
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	Action       *model.AuditAction
	Limit        int // 0なら50、最大200
}

// 監査ログは追記のみ
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error

	// 古い順
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}
