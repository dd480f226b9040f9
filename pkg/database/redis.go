package database

import (
	"context"
	"time"

	"seorocket/pkg/log"

	"github.com/go-redis/redis/v8"
)

// RDB 全局 Redis 客户端。未配置或连接失败时为 nil：
// 登出黑名单与多实例实时通知会被跳过，其余功能照常。
var RDB *redis.Client

func InitRedis(addr, password string, db int) {
	if addr == "" {
		log.Warn("redis addr not configured, realtime fan-out and token blacklist disabled")
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis, continuing without it", err)
		_ = client.Close()
		return
	}

	RDB = client
	log.Info("Redis client connected successfully")
}
