// Package redisclient は設定からRedisクライアントを生成する。
package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fernandoxavier02/AccountingNews/internal/config"
)

// New は設定からRedisクライアントを生成する。接続は試行しない。
func New(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Connect はクライアントを生成し、PINGで疎通を確認する。
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := New(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗しました（%s）: %w", cfg.Addr, err)
	}
	return rdb, nil
}
