package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-desktop/internal/bus"
	"lyrics-desktop/internal/config"
	"lyrics-desktop/internal/ipc"
	"lyrics-desktop/internal/library"
	"lyrics-desktop/internal/lyrics"
	"lyrics-desktop/internal/overlay"
	"lyrics-desktop/internal/player"
	"lyrics-desktop/internal/settings"
	"lyrics-desktop/internal/statusbar"
	"lyrics-desktop/pkg/ai"
	"lyrics-desktop/pkg/ai/gemini"
	"lyrics-desktop/pkg/ai/openai"
	"lyrics-desktop/pkg/music"
	"lyrics-desktop/pkg/musiccache"
	"lyrics-desktop/pkg/redis"
)

const identityCacheFile = "music_cache.txt"

// Player 播放时间来源
type Player interface {
	CurrentSong() (player.Song, error)
	Position() float64
	Duration() float64
}

// LyricsSource 按歌曲取 LRC 文本
type LyricsSource interface {
	GetLyrics(ctx context.Context, song player.Song, duration float64) (string, error)
}

type App struct {
	cfg    *config.Config
	player Player
	source LyricsSource
	store  settings.Store
	redis  *redis.Client

	lyricsBus   *bus.Bus[bus.LyricsEvent]
	progressBus *bus.Bus[bus.ProgressEvent]
	overlay     *overlay.Overlay
	ipcServer   *ipc.Server
	notifier    *statusbar.Notifier

	currentSong string
	hasSong     bool
	mutex       sync.Mutex

	// 歌词调度器控制
	schedulerMutex  sync.Mutex
	schedulerCancel context.CancelFunc
	schedulerDone   chan struct{}

	libraryMutex sync.RWMutex
	library      []library.MusicFile
}

// Option 替换默认组件
type Option func(*App)

// WithPlayer 使用指定的播放器代替 playerctl
func WithPlayer(p Player) Option {
	return func(a *App) { a.player = p }
}

// WithLyricsSource 使用指定的歌词来源代替默认的查找链
func WithLyricsSource(s LyricsSource) Option {
	return func(a *App) { a.source = s }
}

// WithSettings 使用指定的设置存储
func WithSettings(s settings.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSinks 替换默认的 ipc / 状态栏输出
func WithSinks(sinks ...overlay.Sink) Option {
	return func(a *App) { a.overlay = overlay.New(sinks...) }
}

// New 按配置组装各个组件
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:         cfg,
		lyricsBus:   bus.New[bus.LyricsEvent](),
		progressBus: bus.New[bus.ProgressEvent](),
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Redis.Addr, err)
		}
		a.redis = client
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to redis")
	}

	if a.player == nil {
		a.player = player.Playerctl{Player: cfg.App.Player}
	}

	if a.store == nil {
		store, err := newSettingsStore(cfg, a.redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}

	if a.source == nil {
		source, err := newLyricsProvider(cfg, a.redis, a)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.source = source
	}

	if a.overlay == nil {
		a.ipcServer = ipc.NewServer(cfg.App.SocketPath, cfg.App.LyricsFile)
		sinks := []overlay.Sink{a.ipcServer}
		if cfg.StatusBar.Enabled {
			a.notifier = statusbar.NewNotifier(cfg.StatusBar.Process, cfg.StatusBar.Signal, cfg.StatusBar.Interval)
			sinks = append(sinks, a.notifier)
		}
		a.overlay = overlay.New(sinks...)
	}

	return a, nil
}

func newLyricsProvider(cfg *config.Config, rc *redis.Client, lib lyrics.Library) (*lyrics.Provider, error) {
	manager, err := music.CreateManager(cfg.Lyrics.Providers, music.Endpoints{
		LRCLib:  cfg.Lyrics.LRCLibURL,
		NetEase: cfg.Lyrics.NetEaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create music manager: %w", err)
	}
	log.Info().Strs("providers", manager.GetProviderNames()).Msg("Lyrics providers ready")

	opts := []lyrics.ProviderOption{lyrics.WithLibrary(lib)}
	if cfg.AI.APIKey != "" {
		client, err := newAIClient(cfg.AI)
		if err != nil {
			return nil, err
		}
		identities, err := musiccache.Open(filepath.Join(cfg.App.DataDir, identityCacheFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open identification cache: %w", err)
		}
		opts = append(opts, lyrics.WithAI(client, identities))
	}
	if rc != nil {
		opts = append(opts, lyrics.WithRedis(rc))
	}

	return lyrics.NewProvider(cfg.App.CacheDir, manager, opts...), nil
}

func newAIClient(cfg config.AIConfig) (ai.AiInterface, error) {
	switch cfg.ModuleName {
	case "openai":
		return openai.NewOpenAi(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "gemini":
		client, err := gemini.NewGemini(context.Background(), cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown AI module: %s", cfg.ModuleName)
	}
}

// Overlay 返回桌面歌词的当前状态
func (a *App) Overlay() *overlay.Overlay {
	return a.overlay
}

// Run 启动所有组件并轮询播放器，直到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.App.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", a.cfg.App.CacheDir, err)
	}
	log.Info().Str("cache_dir", a.cfg.App.CacheDir).Msg("Lyrics cache directory")

	if a.ipcServer != nil {
		if err := a.ipcServer.Start(); err != nil {
			return fmt.Errorf("failed to start IPC server: %w", err)
		}
		defer a.ipcServer.Close()
	}
	if a.notifier != nil {
		if err := a.notifier.Start(); err != nil {
			return err
		}
		defer a.notifier.Stop()
	}

	detach := a.overlay.Attach(a.lyricsBus, a.progressBus)
	defer detach()

	if a.redis != nil {
		if err := a.startBridges(ctx); err != nil {
			return err
		}
	}

	a.startLibrary(ctx)
	defer a.stopLyricScheduler()

	ticker := time.NewTicker(a.cfg.App.CheckInterval)
	defer ticker.Stop()

	log.Info().Msg("Starting player check loop...")
	for {
		a.updateSongInfo(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil
		}
	}
}

func (a *App) startBridges(ctx context.Context) error {
	prefix := a.cfg.Redis.ChannelPrefix
	if err := bus.NewRedisBridge(a.lyricsBus, a.redis, prefix+"lyrics").Run(ctx); err != nil {
		return err
	}
	return bus.NewRedisBridge(a.progressBus, a.redis, prefix+"progress").Run(ctx)
}

// Close 释放 redis 连接
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
		a.redis = nil
	}
}

func (a *App) updateSongInfo(ctx context.Context) {
	song, err := a.player.CurrentSong()
	if err != nil {
		if !errors.Is(err, player.ErrNoPlayer) {
			log.Debug().Err(err).Msg("Failed to query player")
		}
		a.mutex.Lock()
		had := a.hasSong
		a.hasSong = false
		a.currentSong = ""
		a.mutex.Unlock()
		if had {
			log.Info().Msg("No music playing")
			a.stopLyricScheduler()
			a.lyricsBus.Publish(bus.LyricsEvent{})
		}
		return
	}

	songIdentifier := song.Identifier()
	a.mutex.Lock()
	if a.hasSong && songIdentifier == a.currentSong {
		a.mutex.Unlock()
		return
	}
	log.Info().Msg("-----------------------------------------------------")
	log.Info().Str("song", songIdentifier).Msg("New song detected")
	a.currentSong = songIdentifier
	a.hasSong = true
	a.mutex.Unlock()

	a.stopLyricScheduler()

	lyricsText, err := a.source.GetLyrics(ctx, song, a.player.Duration())
	if err != nil {
		log.Error().Err(err).Str("song", songIdentifier).Msg("Failed to get lyrics")
		a.lyricsBus.Publish(bus.LyricsEvent{Song: songIdentifier})
		return
	}

	lines := lyrics.ParseLRC(lyricsText)
	if len(lines) == 0 {
		log.Warn().Str("song", songIdentifier).Msg("No lyrics lines found")
	}
	a.lyricsBus.Publish(bus.LyricsEvent{Song: songIdentifier, Lines: lines})

	if len(lines) > 0 {
		a.startLyricScheduler(ctx, songIdentifier, lines)
	}
}
