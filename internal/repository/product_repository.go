package repository

import (
	"context"
	"errors"

	"agrimarket/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一意制約違反（注文番号・冪等キーの重複など）
var ErrDuplicate = errors.New("duplicate")

// デッドロック・直列化失敗でDBがトランザクションを打ち切った（やり直せば通る）
var ErrConcurrentUpdate = errors.New("concurrent update")

// 注文作成時に商品の現在値を読む約束。在庫と同じトランザクションで読む
type ProductSnapshotProvider interface {
	Get(ctx context.Context, productID int64) (model.ProductSnapshot, error)
}

// 商品の保存（開発用の投入）と取得
type ProductRepository interface {
	ProductSnapshotProvider
	Create(ctx context.Context, p model.Product) (model.Product, error)
}
