// Package overlay 让桌面歌词跟随播放进度，只处理总线事件
package overlay

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-desktop/internal/bus"
	"lyrics-desktop/internal/lyrics"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "overlay").Logger()
	return &l
}

// Sink 显示输出，比如桌面歌词窗口或状态栏
type Sink interface {
	Show(d lyrics.Display) error
}

// SinkFunc 把函数当作 Sink
type SinkFunc func(d lyrics.Display) error

func (f SinkFunc) Show(d lyrics.Display) error { return f(d) }

// Overlay 每次进度更新时计算当前句和下一句，有变化才交给 sinks
type Overlay struct {
	mu      sync.Mutex
	sinks   []Sink
	song    string
	cursor  *lyrics.Cursor
	last    lyrics.Display
	hasLast bool
	// gen 每次换歌加一，旧歌算出的显示内容不再输出
	gen uint64

	// 保证 sinks 按顺序收到显示内容
	showMu sync.Mutex
}

// New 创建还没有歌词的 Overlay
func New(sinks ...Sink) *Overlay {
	return &Overlay{
		sinks:  sinks,
		cursor: lyrics.NewCursor(nil),
	}
}

// Attach 订阅两条总线，返回取消订阅的函数
func (o *Overlay) Attach(lyricsBus *bus.Bus[bus.LyricsEvent], progressBus *bus.Bus[bus.ProgressEvent]) (detach func()) {
	unsubLyrics := lyricsBus.Subscribe(o.OnLyrics)
	unsubProgress := progressBus.Subscribe(o.OnProgress)
	return func() {
		unsubLyrics()
		unsubProgress()
	}
}

// OnLyrics 切换到新歌并按 0 秒显示
func (o *Overlay) OnLyrics(e bus.LyricsEvent) {
	o.mu.Lock()
	o.song = e.Song
	o.cursor = lyrics.NewCursor(e.Lines)
	o.hasLast = false
	o.gen++
	gen := o.gen
	d := o.cursor.Resolve(0)
	o.mu.Unlock()

	logger().Info().Str("song", e.Song).Int("lines", len(e.Lines)).Msg("Lyrics loaded")
	o.show(d, gen)
}

// OnProgress 显示内容变化时才输出，其他歌曲的进度直接忽略
func (o *Overlay) OnProgress(e bus.ProgressEvent) {
	o.mu.Lock()
	if e.Song != o.song {
		o.mu.Unlock()
		return
	}
	d := o.cursor.Resolve(e.Time)
	gen := o.gen
	o.mu.Unlock()

	o.show(d, gen)
}

// Current 最后一次交给 sinks 的显示内容
func (o *Overlay) Current() lyrics.Display {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.hasLast {
		return o.cursor.Resolve(0)
	}
	return o.last
}

// show 输出 gen 这一首歌的显示内容，期间已经换歌则丢弃
func (o *Overlay) show(d lyrics.Display, gen uint64) {
	o.showMu.Lock()
	defer o.showMu.Unlock()

	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		logger().Debug().Str("current", d.Current).Msg("Dropping display of previous song")
		return
	}
	if o.hasLast && o.last == d {
		o.mu.Unlock()
		return
	}
	o.last = d
	o.hasLast = true
	o.mu.Unlock()

	logger().Debug().Int("index", d.Index).Str("current", d.Current).Str("next", d.Next).Msg("Display changed")
	for _, s := range o.sinks {
		if err := s.Show(d); err != nil {
			logger().Warn().Err(err).Msg("Sink failed")
		}
	}
}
