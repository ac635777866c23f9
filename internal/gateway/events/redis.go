package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"optwatch/internal/logger"

	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisPublisher 以 JSON 形式发布到指定频道。
type RedisPublisher struct {
	client  redisClient
	channel string
}

var _ Publisher = (*RedisPublisher)(nil)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// NewRedisPublisher 连接失败时返回错误，由调用方决定是否降级。
func NewRedisPublisher(ctx context.Context, opts RedisOptions) (*RedisPublisher, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	logger.Infof("redis publisher connected addr=%s channel=%s", addr, opts.Channel)
	return &RedisPublisher{client: client, channel: opts.Channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, raw).Err()
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
