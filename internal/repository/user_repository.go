package repository

import (
	"context"

	"agrimarket/internal/domain/model"
)

// ユーザーは読むだけ（作成・更新は認証サービス）
type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
