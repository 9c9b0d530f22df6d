package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "music-manager").Logger()
	return &l
}

// ErrNoProviders 没有配置任何提供商
var ErrNoProviders = errors.New("no music providers available")

// Manager 音乐API管理器，按顺序尝试各提供商
type Manager struct {
	providers []MusicAPI
}

var _ MusicManager = (*Manager)(nil)

// NewManager 创建新的音乐API管理器，第一个提供商为主提供商
func NewManager(providers []MusicAPI) *Manager {
	if len(providers) == 0 {
		logger().Warn().Msg("No music providers configured")
		return &Manager{}
	}

	logger().Info().
		Int("provider_count", len(providers)).
		Str("primary_provider", providers[0].GetProviderName()).
		Msg("Music API Manager initialized")

	return &Manager{providers: providers}
}

// SearchSong 搜索歌曲，支持多提供商回退
func (m *Manager) SearchSong(ctx context.Context, title, artist string) (string, error) {
	if len(m.providers) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for _, provider := range m.providers {
		songID, err := provider.SearchSong(ctx, title, artist)
		if err == nil {
			return songID, nil
		}
		logger().Warn().Str("provider", provider.GetProviderName()).Err(err).Msg("Provider search failed")
		lastErr = err
	}

	return "", fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// GetLyrics 获取歌词，支持多提供商回退
func (m *Manager) GetLyrics(ctx context.Context, songID string) (string, error) {
	if len(m.providers) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for _, provider := range m.providers {
		lyrics, err := provider.GetLyrics(ctx, songID)
		if err == nil {
			return lyrics, nil
		}
		logger().Warn().Str("provider", provider.GetProviderName()).Err(err).Msg("Provider get lyrics failed")
		lastErr = err
	}

	return "", fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// GetLyricsByInfo 根据歌曲信息直接获取歌词（封装搜索+获取歌词）
func (m *Manager) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	if len(m.providers) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for i, provider := range m.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		logger().Info().
			Str("title", title).
			Str("artist", artist).
			Float64("duration", duration).
			Str("provider", provider.GetProviderName()).
			Int("attempt", i+1).
			Int("total_providers", len(m.providers)).
			Msg("Trying to get lyrics")

		lyrics, err := lookup(ctx, provider, title, artist, duration)
		if err != nil {
			logger().Warn().Str("provider", provider.GetProviderName()).Err(err).Msg("Provider failed")
			lastErr = err
			continue
		}

		logger().Info().Str("provider", provider.GetProviderName()).Msg("Successfully got lyrics")
		return lyrics, nil
	}

	return "", fmt.Errorf("all providers failed to get lyrics for '%s - %s', last error: %w", title, artist, lastErr)
}

func lookup(ctx context.Context, provider MusicAPI, title, artist string, duration float64) (string, error) {
	if byInfo, ok := provider.(InfoLookup); ok {
		return byInfo.GetLyricsByInfo(ctx, title, artist, duration)
	}

	songID, err := provider.SearchSong(ctx, title, artist)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	lyrics, err := provider.GetLyrics(ctx, songID)
	if err != nil {
		return "", fmt.Errorf("get lyrics for %s failed: %w", songID, err)
	}
	return lyrics, nil
}

// GetProviderName 获取管理器名称（实现MusicAPI接口）
func (m *Manager) GetProviderName() string {
	if len(m.providers) > 0 {
		return fmt.Sprintf("Manager[Primary: %s]", m.providers[0].GetProviderName())
	}
	return "Manager[No Providers]"
}

// GetProviderNames 获取所有提供商名称
func (m *Manager) GetProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, provider := range m.providers {
		names[i] = provider.GetProviderName()
	}
	return names
}
