package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PubSub 桥接需要的 redis 客户端方法
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string, handler func(payload string)) error
}

type envelope[T any] struct {
	Origin  string `json:"origin"`
	Payload T      `json:"payload"`
}

// RedisBridge 把本地总线镜像到 redis 频道，让另一个进程里的桌面歌词跟随播放端。
// 从 redis 收到的事件只在本地发布，不会再发回去。
type RedisBridge[T any] struct {
	bus     *Bus[T]
	ps      PubSub
	channel string
	origin  string

	mu    sync.Mutex
	subID uuid.UUID
}

// NewRedisBridge 通过 ps 把总线接到 channel
func NewRedisBridge[T any](b *Bus[T], ps PubSub, channel string) *RedisBridge[T] {
	return &RedisBridge[T]{
		bus:     b,
		ps:      ps,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

// Run 开始转发本地事件并订阅频道，订阅生效后返回，ctx 结束时停止转发
func (r *RedisBridge[T]) Run(ctx context.Context) error {
	id, unsubscribe := r.bus.subscribe(func(event T) {
		r.forward(ctx, event)
	})
	r.mu.Lock()
	r.subID = id
	r.mu.Unlock()

	if err := r.ps.Subscribe(ctx, r.channel, r.receive); err != nil {
		unsubscribe()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	log.Info().Str("channel", r.channel).Str("origin", r.origin).Msg("Redis bridge running")
	return nil
}

func (r *RedisBridge[T]) forward(ctx context.Context, event T) {
	data, err := json.Marshal(envelope[T]{Origin: r.origin, Payload: event})
	if err != nil {
		log.Error().Err(err).Str("channel", r.channel).Msg("Failed to encode event")
		return
	}
	if err := r.ps.Publish(ctx, r.channel, string(data)); err != nil {
		log.Warn().Err(err).Str("channel", r.channel).Msg("Failed to publish event")
	}
}

func (r *RedisBridge[T]) receive(payload string) {
	var env envelope[T]
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Warn().Err(err).Str("channel", r.channel).Msg("Dropping malformed event")
		return
	}
	if env.Origin == r.origin {
		return
	}

	r.mu.Lock()
	skip := r.subID
	r.mu.Unlock()
	r.bus.publishExcept(skip, env.Payload)
}
