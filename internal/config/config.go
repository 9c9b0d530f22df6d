package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath    = "/tmp/lyrics_app.sock"
	DefaultLyricsFile    = "/tmp/lyrics"
	DefaultCheckInterval = 5 * time.Second
	DefaultTickInterval  = 50 * time.Millisecond
	// DefaultLyricOffset 歌词提前显示的秒数
	DefaultLyricOffset = 0.1

	// APIKeyEnv 配置文件里没有 api_key 时从这个环境变量读取
	APIKeyEnv = "LYRICS_AI_API_KEY"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "config").Logger()
	return &l
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, "lyrics")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// 获取不到用户主目录，回退到当前目录
		return "lyrics_" + filepath.Base(fallback)
	}
	return filepath.Join(homeDir, fallback, "lyrics")
}

func getDefaultCacheDir() string { return xdgDir("XDG_CACHE_HOME", ".cache") }

func getDefaultDataDir() string { return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")) }

// DefaultPath 配置文件默认路径
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.toml")
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath    string   `toml:"socket_path"`
		CheckInterval string   `toml:"check_interval"`
		TickInterval  string   `toml:"tick_interval"`
		CacheDir      string   `toml:"cache_dir"`
		DataDir       string   `toml:"data_dir"`
		LyricsFile    *string  `toml:"lyrics_file"`
		LyricOffset   *float64 `toml:"lyric_offset"`
		Player        string   `toml:"player"`
	} `toml:"app"`

	Lyrics struct {
		Providers  []string `toml:"providers"`
		LRCLibURL  string   `toml:"lrclib_url"`
		NetEaseURL string   `toml:"netease_url"`
	} `toml:"lyrics"`

	AI struct {
		ModuleName string `toml:"module_name"`
		Model      string `toml:"model"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Enabled       bool   `toml:"enabled"`
		Addr          string `toml:"addr"`
		Password      string `toml:"password"`
		DB            int    `toml:"db"`
		ChannelPrefix string `toml:"channel_prefix"`
	} `toml:"redis"`

	Settings struct {
		Backend string `toml:"backend"`
	} `toml:"settings"`

	StatusBar struct {
		Enabled  bool   `toml:"enabled"`
		Process  string `toml:"process"`
		Signal   int    `toml:"signal"`
		Interval string `toml:"interval"`
	} `toml:"statusbar"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath    string
	CheckInterval time.Duration
	TickInterval  time.Duration
	CacheDir      string
	DataDir       string
	// LyricsFile 当前歌词行的镜像文件，空表示不写
	LyricsFile  string
	LyricOffset float64
	// Player playerctl --player 参数
	Player string
}

// LyricsConfig 远程歌词库
type LyricsConfig struct {
	Providers  []string
	LRCLibURL  string
	NetEaseURL string
}

// AIConfig AI配置
type AIConfig struct {
	ModuleName string
	Model      string
	APIKey     string
	BaseURL    string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// SettingsConfig 音乐目录的存放位置: "file" 或 "redis"
type SettingsConfig struct {
	Backend string
}

// StatusBarConfig 状态栏刷新
type StatusBarConfig struct {
	Enabled  bool
	Process  string
	Signal   int
	Interval time.Duration
}

// Config 主配置结构
type Config struct {
	App       AppConfig
	Lyrics    LyricsConfig
	AI        AIConfig
	Redis     RedisConfig
	Settings  SettingsConfig
	StatusBar StatusBarConfig
}

// Default 返回全部默认值
func Default() *Config {
	return &Config{
		App: AppConfig{
			SocketPath:    DefaultSocketPath,
			CheckInterval: DefaultCheckInterval,
			TickInterval:  DefaultTickInterval,
			CacheDir:      getDefaultCacheDir(),
			DataDir:       getDefaultDataDir(),
			LyricsFile:    DefaultLyricsFile,
			LyricOffset:   DefaultLyricOffset,
		},
		Lyrics: LyricsConfig{
			Providers: []string{"lrclib", "netease"},
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			ChannelPrefix: "lyrics:",
		},
		Settings: SettingsConfig{
			Backend: "file",
		},
		StatusBar: StatusBarConfig{
			Process:  "i3blocks",
			Signal:   55,
			Interval: 10 * time.Second,
		},
	}
}

// LoadFrom 读取 path 的配置，文件不存在时使用默认值。
// 同目录下的 .env 会先被加载到环境变量。
func LoadFrom(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	loadDotEnv(".env")

	var tc TomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		logger().Info().Str("path", path).Msg("Config file not found, using defaults")
	} else {
		logger().Info().Str("path", path).Msg("Loaded config")
	}

	cfg := Default()
	if err := cfg.apply(&tc); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = os.Getenv(APIKeyEnv)
	}
	return cfg, nil
}

// Load 读取配置，出错时记录日志并使用默认值
func Load(path string) *Config {
	if path == "" {
		path = DefaultPath()
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		logger().Error().Err(err).Msg("Failed to load config file, using default configuration")
		cfg = Default()
		cfg.AI.APIKey = os.Getenv(APIKeyEnv)
	}

	if cfg.AI.APIKey == "" {
		logger().Warn().
			Str("path", path).
			Str("env", APIKeyEnv).
			Msg("No AI API key configured, songs without title/artist metadata cannot be identified")
	}
	return cfg
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger().Warn().Err(err).Str("path", path).Msg("Failed to load .env")
		}
		return
	}
	logger().Debug().Str("path", path).Msg("Loaded .env")
}

func parseDuration(name, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", name, value)
	}
	*dst = d
	return nil
}

// apply 用 TOML 中的非零值覆盖默认值
func (c *Config) apply(tc *TomlConfig) error {
	if tc.App.SocketPath != "" {
		c.App.SocketPath = tc.App.SocketPath
	}
	if err := parseDuration("app.check_interval", tc.App.CheckInterval, &c.App.CheckInterval); err != nil {
		return err
	}
	if err := parseDuration("app.tick_interval", tc.App.TickInterval, &c.App.TickInterval); err != nil {
		return err
	}
	if tc.App.CacheDir != "" {
		c.App.CacheDir = tc.App.CacheDir
	}
	if tc.App.DataDir != "" {
		c.App.DataDir = tc.App.DataDir
	}
	if tc.App.LyricsFile != nil {
		c.App.LyricsFile = *tc.App.LyricsFile
	}
	if tc.App.LyricOffset != nil {
		c.App.LyricOffset = *tc.App.LyricOffset
	}
	if tc.App.Player != "" {
		c.App.Player = tc.App.Player
	}

	if len(tc.Lyrics.Providers) > 0 {
		c.Lyrics.Providers = tc.Lyrics.Providers
	}
	if tc.Lyrics.LRCLibURL != "" {
		c.Lyrics.LRCLibURL = tc.Lyrics.LRCLibURL
	}
	if tc.Lyrics.NetEaseURL != "" {
		c.Lyrics.NetEaseURL = tc.Lyrics.NetEaseURL
	}

	if tc.AI.ModuleName != "" {
		c.AI.ModuleName = tc.AI.ModuleName
	}
	if tc.AI.Model != "" {
		c.AI.Model = tc.AI.Model
	}
	if tc.AI.BaseURL != "" {
		c.AI.BaseURL = tc.AI.BaseURL
	}
	if tc.AI.APIKey != "" {
		c.AI.APIKey = tc.AI.APIKey
	}
	switch c.AI.ModuleName {
	case "gemini", "openai":
	default:
		return fmt.Errorf("ai.module_name: unknown module %q", c.AI.ModuleName)
	}

	c.Redis.Enabled = tc.Redis.Enabled
	if tc.Redis.Addr != "" {
		c.Redis.Addr = tc.Redis.Addr
	}
	if tc.Redis.Password != "" {
		c.Redis.Password = tc.Redis.Password
	}
	if tc.Redis.DB != 0 {
		c.Redis.DB = tc.Redis.DB
	}
	if tc.Redis.ChannelPrefix != "" {
		c.Redis.ChannelPrefix = tc.Redis.ChannelPrefix
	}

	if tc.Settings.Backend != "" {
		c.Settings.Backend = tc.Settings.Backend
	}
	switch c.Settings.Backend {
	case "file":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("settings.backend: redis backend requires redis.enabled")
		}
	default:
		return fmt.Errorf("settings.backend: unknown backend %q", c.Settings.Backend)
	}

	c.StatusBar.Enabled = tc.StatusBar.Enabled
	if tc.StatusBar.Process != "" {
		c.StatusBar.Process = tc.StatusBar.Process
	}
	if tc.StatusBar.Signal != 0 {
		c.StatusBar.Signal = tc.StatusBar.Signal
	}
	return parseDuration("statusbar.interval", tc.StatusBar.Interval, &c.StatusBar.Interval)
}
