package player

import (
	"sync"
	"time"
)

// Clock 模拟的播放时钟，没有真实播放器时（比如直接播放一个 .lrc 文件）提供时间源
type Clock struct {
	mu      sync.Mutex
	now     func() time.Time
	base    float64
	started time.Time
	playing bool
}

// NewClock 创建暂停在 0 秒的时钟
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Play 从当前位置开始走时
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.started = c.now()
	c.playing = true
}

// Pause 停在当前位置
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.base = c.positionLocked()
	c.playing = false
}

// Seek 跳到指定位置，可以往回跳
func (c *Clock) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = seconds
	c.started = c.now()
}

// Playing 是否在走时
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Position 当前位置（秒）
func (c *Clock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clock) positionLocked() float64 {
	if !c.playing {
		return c.base
	}
	return c.base + c.now().Sub(c.started).Seconds()
}

// Static 固定一首歌、用 Clock 计时的播放器
type Static struct {
	Song  Song
	Clock *Clock
	// Length 歌曲时长（秒），未知为 0
	Length float64
}

// CurrentSong 总是返回同一首歌
func (s *Static) CurrentSong() (Song, error) {
	if s.Song == (Song{}) {
		return Song{}, ErrNoPlayer
	}
	return s.Song, nil
}

// Position 时钟的当前位置
func (s *Static) Position() float64 {
	return s.Clock.Position()
}

// Duration 歌曲时长
func (s *Static) Duration() float64 {
	return s.Length
}
