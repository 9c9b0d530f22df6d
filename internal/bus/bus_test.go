package bus

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"lyrics-desktop/internal/lyrics"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New[int]()
	var got []string

	b.Subscribe(func(v int) { got = append(got, "first") })
	b.Subscribe(func(v int) { got = append(got, "second") })
	b.Publish(1)

	if !slices.Equal(got, []string{"first", "second"}) {
		t.Errorf("unexpected delivery order %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New[string]()
	calls := 0
	unsubscribe := b.Subscribe(func(string) { calls++ })

	b.Publish("a")
	unsubscribe()
	unsubscribe()
	b.Publish("b")

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if b.Len() != 0 {
		t.Errorf("expected no subscribers, got %d", b.Len())
	}
}

func TestHandlerMayUnsubscribeItself(t *testing.T) {
	b := New[int]()
	var unsubscribe func()
	calls := 0
	unsubscribe = b.Subscribe(func(int) {
		calls++
		unsubscribe()
	})
	other := 0
	b.Subscribe(func(int) { other++ })

	b.Publish(1)
	b.Publish(2)

	if calls != 1 || other != 2 {
		t.Errorf("expected 1 and 2 calls, got %d and %d", calls, other)
	}
}

// fakeBroker 同步地把消息分发给所有订阅者
type fakeBroker struct {
	mu        sync.Mutex
	handlers  map[string][]func(string)
	published int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: map[string][]func(string){}}
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	f.published++
	handlers := slices.Clone(f.handlers[channel])
	f.mu.Unlock()
	for _, h := range handlers {
		h(message.(string))
	}
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, channel string, handler func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[channel] = append(f.handlers[channel], handler)
	return nil
}

func TestRedisBridgeCrossesProcessBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := newFakeBroker()
	mainBus := New[LyricsEvent]()
	overlayBus := New[LyricsEvent]()

	if err := NewRedisBridge(mainBus, broker, "lyrics:state").Run(ctx); err != nil {
		t.Fatalf("Run main bridge: %v", err)
	}
	if err := NewRedisBridge(overlayBus, broker, "lyrics:state").Run(ctx); err != nil {
		t.Fatalf("Run overlay bridge: %v", err)
	}

	var mainSeen, overlaySeen []LyricsEvent
	mainBus.Subscribe(func(e LyricsEvent) { mainSeen = append(mainSeen, e) })
	overlayBus.Subscribe(func(e LyricsEvent) { overlaySeen = append(overlaySeen, e) })

	event := LyricsEvent{Song: "周杰伦 - 园游会", Lines: lyrics.Sequence{{Time: 32.35, Text: "琥珀色黄昏像糖在很美的远方"}}}
	mainBus.Publish(event)

	if len(overlaySeen) != 1 {
		t.Fatalf("expected overlay to receive 1 event, got %d", len(overlaySeen))
	}
	got := overlaySeen[0]
	if got.Song != event.Song || len(got.Lines) != 1 || got.Lines[0] != event.Lines[0] {
		t.Errorf("event changed crossing the bridge: %+v", got)
	}
	if len(mainSeen) != 1 {
		t.Errorf("expected no echo back to the main bus, got %d events", len(mainSeen))
	}
	if broker.published != 1 {
		t.Errorf("expected exactly one redis publish, got %d", broker.published)
	}
}

func TestRedisBridgeStopsForwardingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	broker := newFakeBroker()
	b := New[ProgressEvent]()
	if err := NewRedisBridge(b, broker, "lyrics:progress").Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("expected bridge subscription, got %d", b.Len())
	}

	cancel()
	// 取消后 goroutine 异步退订
	deadline := time.Now().Add(time.Second)
	for b.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if b.Len() != 0 {
		t.Errorf("bridge still subscribed after cancel")
	}
}
