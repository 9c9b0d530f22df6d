package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听目录里音乐文件的增删和改名，debounce 时间内的多次变化只回调一次
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher 开始监听 dirs，无法监听的目录跳过，全部失败时才返回错误
func NewWatcher(dirs []string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	added := 0
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			logger().Warn().Err(err).Str("dir", dir).Msg("Cannot watch directory")
			continue
		}
		added++
	}
	if added == 0 && len(dirs) > 0 {
		fw.Close()
		return nil, fmt.Errorf("none of %d directories could be watched", len(dirs))
	}

	return &Watcher{watcher: fw, debounce: debounce, onChange: onChange}, nil
}

// Run 持续回调直到 ctx 结束，然后关闭 watcher
func (w *Watcher) Run(ctx context.Context) {
	defer w.close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			logger().Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Library changed")
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger().Warn().Err(err).Msg("Watcher error")
		case <-ctx.Done():
			return
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !IsMusicFile(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}
