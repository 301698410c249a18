package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

// StopRequest asks whichever instance holds a chat's live stream to cancel
// it. Published on every /chat/stop call so stop works across replicas.
type StopRequest struct {
	ChatID string `json:"chatId"`
}

type StopBus interface {
	Publish(ctx context.Context, req StopRequest) error
	StartForwarder(ctx context.Context, onStop func(req StopRequest)) error
	Close() error
}

type stopBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewStopBus(log *logger.Logger) (StopBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_STOP_CHANNEL"))
	if ch == "" {
		ch = "chat-stop"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &stopBus{
		log:     log.With("service", "RedisStopBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *stopBus) Publish(ctx context.Context, req StopRequest) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis stop bus not initialized")
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *stopBus) StartForwarder(ctx context.Context, onStop func(req StopRequest)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis stop bus not initialized")
	}
	if onStop == nil {
		return fmt.Errorf("onStop callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var req StopRequest
				if err := json.Unmarshal([]byte(m.Payload), &req); err != nil {
					b.log.Warn("bad redis stop payload", "error", err)
					continue
				}
				if strings.TrimSpace(req.ChatID) == "" {
					continue
				}
				onStop(req)
			}
		}
	}()

	return nil
}

func (b *stopBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
