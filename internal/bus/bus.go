// Package bus 在播放端和桌面歌词之间传递歌词状态，用发布/订阅代替共享的全局变量
package bus

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"lyrics-desktop/internal/lyrics"
)

// LyricsEvent 新歌的歌词序列，整体替换旧序列，发布后不再修改
type LyricsEvent struct {
	Song  string          `json:"song"`
	Lines lyrics.Sequence `json:"lines"`
}

// ProgressEvent Song 的播放位置（秒）
type ProgressEvent struct {
	Song string  `json:"song"`
	Time float64 `json:"time"`
}

type subscription[T any] struct {
	id      uuid.UUID
	handler func(T)
}

// Bus 同步的类型化事件总线，handler 在发布者的 goroutine 里按订阅顺序执行
type Bus[T any] struct {
	mu   sync.RWMutex
	subs []subscription[T]
}

// New 创建空的总线
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe 注册 handler，返回取消订阅的函数，可以重复调用
func (b *Bus[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	_, unsubscribe = b.subscribe(handler)
	return unsubscribe
}

func (b *Bus[T]) subscribe(handler func(T)) (uuid.UUID, func()) {
	id := uuid.New()
	b.mu.Lock()
	b.subs = append(b.subs, subscription[T]{id: id, handler: handler})
	b.mu.Unlock()

	return id, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription[T]) bool { return s.id == id })
	}
}

// Publish 把事件交给当前所有订阅者，handler 里增删订阅从下一次 Publish 开始生效
func (b *Bus[T]) Publish(event T) {
	b.publishExcept(uuid.Nil, event)
}

// publishExcept 跳过 id 对应的订阅者
func (b *Bus[T]) publishExcept(skip uuid.UUID, event T) {
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.id == skip {
			continue
		}
		s.handler(event)
	}
}

// Len 订阅者数量
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
