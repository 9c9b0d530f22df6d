package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lyrics-desktop/internal/library"
	"lyrics-desktop/internal/player"
	"lyrics-desktop/pkg/ai"
	"lyrics-desktop/pkg/fileutil"
	"lyrics-desktop/pkg/music"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	redisKeyPrefix = "lyrics:"
	redisTTL       = 30 * 24 * time.Hour
	fetchTimeout   = 20 * time.Second
	maxAIRetries   = 3
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "lyrics").Logger()
	return &l
}

// ErrNotSong 媒体标题被识别为不是歌曲
var ErrNotSong = errors.New("media is not a song")

// SongInfo AI 从媒体标题中提取的歌曲信息
type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}

// IdentityCache 媒体标题到识别结果的缓存
type IdentityCache interface {
	Get(key string) (string, error)
	Add(key, value string) error
}

// RemoteCache 共享的歌词缓存（redis）
type RemoteCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Library 最近一次扫描到的音乐文件
type Library interface {
	Library() []library.MusicFile
}

// Provider 按顺序查找歌词：同目录 .lrc、音乐库里同名歌曲的 .lrc、缓存目录、redis、远程歌词库
type Provider struct {
	cacheDir   string
	remote     music.InfoLookup
	aiClient   ai.AiInterface
	identities IdentityCache
	redis      RemoteCache
	library    Library
}

// ProviderOption 可选组件
type ProviderOption func(*Provider)

// WithAI 标题或歌手缺失时使用 AI 识别
func WithAI(client ai.AiInterface, cache IdentityCache) ProviderOption {
	return func(p *Provider) {
		p.aiClient = client
		p.identities = cache
	}
}

// WithRedis 使用 redis 作为二级缓存
func WithRedis(cache RemoteCache) ProviderOption {
	return func(p *Provider) {
		p.redis = cache
	}
}

// WithLibrary 播放器没有给出文件路径时，按标题和歌手在音乐库里找 .lrc
func WithLibrary(lib Library) ProviderOption {
	return func(p *Provider) {
		p.library = lib
	}
}

// NewProvider 创建歌词提供者，remote 为 nil 时只查本地
func NewProvider(cacheDir string, remote music.InfoLookup, opts ...ProviderOption) *Provider {
	p := &Provider{cacheDir: cacheDir, remote: remote}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetLyrics 获取一首歌的 LRC 文本，duration 为歌曲时长（秒），未知传 0
func (p *Provider) GetLyrics(ctx context.Context, song player.Song, duration float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	if path := song.Path(); path != "" {
		lrcPath := library.LyricsPath(path)
		if data, err := os.ReadFile(lrcPath); err == nil {
			logger().Info().Str("lrc_path", lrcPath).Msg("Using local lyrics file")
			return string(data), nil
		}
	} else if p.library != nil {
		if mf, ok := library.Find(p.library.Library(), song.Title, song.Artist); ok {
			lrcPath := library.LyricsPath(mf.Path)
			if data, err := os.ReadFile(lrcPath); err == nil {
				logger().Info().Str("lrc_path", lrcPath).Str("song", mf.Path).Msg("Using lyrics file from music library")
				return string(data), nil
			}
		}
	}

	info, err := p.identify(ctx, song)
	if err != nil {
		return "", err
	}

	cacheKey := sanitizeFilename(info.Title + "-" + info.Artist)
	cacheFilepath := filepath.Join(p.cacheDir, cacheKey+".lrc")

	if cached, err := os.ReadFile(cacheFilepath); err == nil {
		logger().Info().Str("cache_file", cacheFilepath).Msg("Cache HIT")
		return string(cached), nil
	}

	if p.redis != nil {
		cached, err := p.redis.Get(ctx, redisKeyPrefix+cacheKey)
		if err != nil {
			logger().Warn().Err(err).Msg("Redis lookup failed")
		} else if cached != "" {
			logger().Info().Str("key", redisKeyPrefix+cacheKey).Msg("Redis cache HIT")
			p.writeCacheFile(cacheFilepath, cached)
			return cached, nil
		}
	}

	if p.remote == nil {
		return "", fmt.Errorf("no lyrics found for '%s - %s'", info.Title, info.Artist)
	}
	logger().Info().Str("song", song.Identifier()).Msg("Cache MISS, fetching from API")

	lyrics, err := p.remote.GetLyricsByInfo(ctx, info.Title, info.Artist, duration)
	if err != nil {
		return "", fmt.Errorf("failed to get lyrics for '%s - %s': %w", info.Title, info.Artist, err)
	}

	p.writeCacheFile(cacheFilepath, lyrics)
	if p.redis != nil {
		if err := p.redis.SetWithExpiration(ctx, redisKeyPrefix+cacheKey, lyrics, redisTTL); err != nil {
			logger().Warn().Err(err).Msg("Failed to store lyrics in redis")
		}
	}

	return lyrics, nil
}

func (p *Provider) writeCacheFile(path, lyrics string) {
	if p.cacheDir == "" {
		return
	}
	if err := fileutil.WriteFileOverwrite(path, []byte(lyrics), 0644); err != nil {
		logger().Error().Err(err).Str("cache_file", path).Msg("Failed to write cache file")
	}
}

// identify 补全歌名和歌手；播放器已经给出两者时直接使用
func (p *Provider) identify(ctx context.Context, song player.Song) (SongInfo, error) {
	if song.Title != "" && song.Artist != "" {
		return SongInfo{Title: song.Title, Artist: song.Artist, IsSong: true}, nil
	}

	fallback := SongInfo{Title: song.Title, IsSong: true}
	if fallback.Title == "" {
		fallback.Title = titleFromPath(song.Path())
	}

	if p.aiClient == nil {
		if fallback.Title == "" {
			return SongInfo{}, fmt.Errorf("cannot identify song %q", song.Identifier())
		}
		return fallback, nil
	}

	identifier := song.Identifier()
	if fallback.Title != "" && song.Title == "" {
		identifier = fallback.Title
	}

	if p.identities != nil {
		if cached, err := p.identities.Get(identifier); err == nil {
			if title, artist, ok := strings.Cut(cached, "|"); ok {
				return SongInfo{Title: title, Artist: artist, IsSong: true}, nil
			}
		}
	}

	var raw string
	var err error
	for i := 0; i < maxAIRetries; i++ {
		raw, err = p.aiClient.HandleText(ctx, formatQuerySong(identifier))
		if err == nil {
			break
		}
		logger().Warn().Err(err).Int("attempt", i+1).Str("ai", p.aiClient.Name()).Msg("Failed to query AI")
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return SongInfo{}, ctx.Err()
		}
	}
	if err != nil {
		return SongInfo{}, fmt.Errorf("failed to query %s after %d attempts: %w", p.aiClient.Name(), maxAIRetries, err)
	}

	info, err := parseSongInfo(raw)
	if err != nil {
		return SongInfo{}, err
	}
	if !info.IsSong {
		return SongInfo{}, fmt.Errorf("%w: %q", ErrNotSong, identifier)
	}
	logger().Info().Str("title", info.Title).Str("artist", info.Artist).Msg("AI identified song")

	if p.identities != nil {
		if err := p.identities.Add(identifier, info.Title+"|"+info.Artist); err != nil {
			logger().Warn().Err(err).Msg("Failed to cache identification")
		}
	}
	return info, nil
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。输入是一个媒体标题或文件名，如果其中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。不要使用任何markdown格式。媒体标题是：%s`, title)
}

// parseSongInfo 容忍模型在 JSON 外面包一层 ```json 代码块
func parseSongInfo(raw string) (SongInfo, error) {
	raw = strings.TrimSpace(raw)
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	var info SongInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return SongInfo{}, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if info.IsSong && info.Title == "" {
		return SongInfo{}, errors.New("AI response has no title")
	}
	return info, nil
}

func titleFromPath(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var unsafeFilenameRe = regexp.MustCompile(`[\\/:*?"<>|]`)

func sanitizeFilename(name string) string {
	return unsafeFilenameRe.ReplaceAllString(name, "-")
}
