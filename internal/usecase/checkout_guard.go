package usecase

import (
	"context"
	"fmt"
)

// 同じ冪等キーの注文が同時に走らないようにする（Redisなど）
// Release は Acquire で受け取った token が一致するときだけ鍵を消す
type CheckoutGuard interface {
	Acquire(ctx context.Context, key string) (token string, acquired bool, err error)
	Release(ctx context.Context, key, token string) error
}

func checkoutGuardKey(buyerID int64, idempotencyKey string) string {
	return fmt.Sprintf("checkout:%d:%s", buyerID, idempotencyKey)
}
