package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 自分が置いた token のときだけ消す（TTL切れ後に別リクエストが取った鍵は残す）
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 同じ冪等キーの注文作成を同時に1つだけ通す
type RedisCheckoutGuard struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisCheckoutGuard(addr, password string, db int, ttl time.Duration, log *zap.Logger) (*RedisCheckoutGuard, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("redis connected", zap.String("addr", addr))
	return NewRedisCheckoutGuardFromClient(rdb, ttl, log), nil
}

func NewRedisCheckoutGuardFromClient(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCheckoutGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCheckoutGuard{client: rdb, ttl: ttl, log: log}
}

// acquired=false なら他のリクエストが処理中
func (g *RedisCheckoutGuard) Acquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (g *RedisCheckoutGuard) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, g.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	if n == 0 {
		g.log.Debug("checkout guard already expired or taken over", zap.String("key", key))
	}
	return nil
}

func (g *RedisCheckoutGuard) Close() error {
	return g.client.Close()
}
