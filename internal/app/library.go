package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-desktop/internal/config"
	"lyrics-desktop/internal/library"
	"lyrics-desktop/internal/settings"
	"lyrics-desktop/pkg/redis"
)

const libraryDebounce = 500 * time.Millisecond

func newSettingsStore(cfg *config.Config, rc *redis.Client) (settings.Store, error) {
	switch cfg.Settings.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("settings backend redis requires redis.enabled")
		}
		return settings.NewRedisStore(rc, cfg.Redis.ChannelPrefix), nil
	default:
		return settings.NewFileStore(cfg.App.DataDir), nil
	}
}

// OpenSettings 打开配置中的设置存储，返回的 close 释放连接
func OpenSettings(cfg *config.Config) (settings.Store, func(), error) {
	var rc *redis.Client
	if cfg.Settings.Backend == "redis" {
		client, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Redis.Addr, err)
		}
		rc = client
	}
	store, err := newSettingsStore(cfg, rc)
	closeFn := func() {
		if rc != nil {
			rc.Close()
		}
	}
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

// Library 返回最近一次扫描的音乐文件
func (a *App) Library() []library.MusicFile {
	a.libraryMutex.RLock()
	defer a.libraryMutex.RUnlock()
	return a.library
}

func (a *App) rescan(dirs []string) {
	files := library.Scan(dirs)
	a.libraryMutex.Lock()
	a.library = files
	a.libraryMutex.Unlock()
	log.Info().Int("files", len(files)).Int("dirs", len(dirs)).Msg("Music library scanned")
}

// startLibrary 扫描已保存的目录，并在目录变化时重新扫描
func (a *App) startLibrary(ctx context.Context) {
	dirs, err := a.store.LoadDirs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load music directories")
		return
	}
	if len(dirs) == 0 {
		log.Info().Msg("No music directories configured")
		return
	}

	a.rescan(dirs)

	watcher, err := library.NewWatcher(dirs, libraryDebounce, func() { a.rescan(dirs) })
	if err != nil {
		log.Warn().Err(err).Msg("Library changes will not be watched")
		return
	}
	go watcher.Run(ctx)
}
