package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://lrclib.net/api"
	userAgent      = "lyrics-desktop/1.0"
	// 最大允许的时长误差（秒）
	maxDurationDiff = 3
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "lrclib").Logger()
	return &l
}

// Client LRCLib客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	requestTimeout time.Duration
	maxRetries     int
	retryBackoff   time.Duration
}

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LRCLibSearchResponse LRCLib API搜索响应（列表）
type LRCLibSearchResponse []LRCLibResponse

// NewClient 创建新的LRCLib客户端，baseURL 为空时使用官方地址
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL:        strings.TrimRight(baseURL, "/"),
		requestTimeout: 5 * time.Second,
		maxRetries:     3,
		retryBackoff:   500 * time.Millisecond,
	}
}

// GetProviderName 返回提供商名称
func (c *Client) GetProviderName() string {
	return "LRCLib"
}

// SearchSong LRCLib直接通过参数搜索，不需要单独的搜索步骤，把查询参数编码成"ID"
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	return fmt.Sprintf("%s|%s", title, artist), nil
}

// GetLyrics 获取歌词，songID 为 SearchSong 返回的 title|artist
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	title, artist, ok := strings.Cut(songID, "|")
	if !ok {
		return "", fmt.Errorf("invalid song ID format: %s", songID)
	}
	return c.GetLyricsByInfo(ctx, title, artist, 0)
}

// GetLyricsByInfo 直接通过歌曲信息获取歌词，duration 大于 0 时优先选择时长接近的结果
func (c *Client) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	resp, err := c.doRequestWithRetry(timeoutCtx, searchURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var results LRCLibSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	logger().Info().Int("results", len(results)).Str("title", title).Str("artist", artist).Msg("Search finished")

	if len(results) == 0 {
		return "", fmt.Errorf("no lyrics found for '%s - %s'", title, artist)
	}

	best := findBestMatch(results, title, artist, int(duration))

	// 优先返回同步歌词，如果没有则返回纯文本歌词
	if best.SyncedLyrics != "" {
		logger().Info().
			Str("track", best.TrackName).
			Str("artist", best.ArtistName).
			Float64("duration", best.Duration).
			Msg("Selected synced lyrics")
		return best.SyncedLyrics, nil
	}
	if best.PlainLyrics != "" {
		logger().Info().
			Str("track", best.TrackName).
			Str("artist", best.ArtistName).
			Msg("Selected plain lyrics")
		return best.PlainLyrics, nil
	}

	return "", fmt.Errorf("selected result has no lyrics for '%s - %s'", title, artist)
}

func (c *Client) doRequestWithRetry(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger().Info().Int("attempt", attempt).Int("max_retries", c.maxRetries).Msg("Retrying request")
			select {
			case <-time.After(time.Duration(attempt) * c.retryBackoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logger().Warn().Err(err).Int("attempt", attempt+1).Msg("Request failed")
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		logger().Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("Request returned non-200")
		lastErr = fmt.Errorf("status %d", resp.StatusCode)

		// 4xx 不会因为重试而变好
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}
	return nil, fmt.Errorf("request to lrclib failed: %w", lastErr)
}

// findBestMatch 从搜索结果中找到最佳匹配的歌词
func findBestMatch(responses LRCLibSearchResponse, targetTitle, targetArtist string, targetDuration int) *LRCLibResponse {
	var exactMatches, titleMatches []*LRCLibResponse

	for i := range responses {
		r := &responses[i]
		switch {
		case containsIgnoreCase(r.TrackName, targetTitle) && containsIgnoreCase(r.ArtistName, targetArtist):
			exactMatches = append(exactMatches, r)
		case containsIgnoreCase(r.TrackName, targetTitle):
			titleMatches = append(titleMatches, r)
		}
	}

	// 精确匹配优先，其次只匹配标题，最后使用全部结果
	matchPool := exactMatches
	if len(matchPool) == 0 {
		matchPool = titleMatches
	}
	if len(matchPool) == 0 {
		matchPool = make([]*LRCLibResponse, len(responses))
		for i := range responses {
			matchPool[i] = &responses[i]
		}
	}

	if targetDuration <= 0 {
		return matchPool[0]
	}

	best := matchPool[0]
	minDiff := abs(int(best.Duration) - targetDuration)
	for _, m := range matchPool {
		diff := abs(int(m.Duration) - targetDuration)
		if diff <= maxDurationDiff {
			return m
		}
		if diff < minDiff {
			minDiff = diff
			best = m
		}
	}
	logger().Debug().Int("diff", minDiff).Msg("Using best duration match")
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// containsIgnoreCase 忽略大小写检查包含关系
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
