package repository

import (
	"context"

	"agrimarket/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 在庫を書き換えるのはここだけ
type InventoryRepository interface {
	// 在庫が足りるときだけ減算（足りなければ false）
	Reserve(ctx context.Context, productID int64, qty decimal.Decimal) (bool, error)

	// 在庫戻し（キャンセル）
	Release(ctx context.Context, productID int64, qty decimal.Decimal) error

	// 増減履歴作成
	CreateMovements(ctx context.Context, movements []model.StockMovement) error
}
