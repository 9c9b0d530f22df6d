package netease

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://music.163.com"

func logger() *zerolog.Logger {
	l := log.With().Str("component", "netease").Logger()
	return &l
}

// NeteaseSearchResponse 网易云搜索API响应
type NeteaseSearchResponse struct {
	Result struct {
		Songs []struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

// NeteaseLyricResponse 网易云歌词API响应
type NeteaseLyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// Client 网易云音乐客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	cookie         string
	maxRetries     int
	requestTimeout time.Duration
}

// NewClient 创建新的网易云音乐客户端，Cookie 从 NETEASE_COOKIE 环境变量读取
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		baseURL:        strings.TrimRight(baseURL, "/"),
		cookie:         os.Getenv("NETEASE_COOKIE"),
		maxRetries:     2,
		requestTimeout: 10 * time.Second,
	}
}

// GetProviderName 获取提供商名称
func (c *Client) GetProviderName() string {
	return "NetEase Cloud Music"
}

// SearchSong 搜索歌曲
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	keywords := strings.TrimSpace(title + " " + artist)
	searchURL := fmt.Sprintf("%s/api/search/get/web?s=%s&type=1&limit=30", c.baseURL, url.QueryEscape(keywords))
	logger().Debug().Str("url", searchURL).Msg("Searching song")

	req, err := c.newRequest(ctx, searchURL)
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	var searchResp NeteaseSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}

	if len(searchResp.Result.Songs) == 0 {
		return "", fmt.Errorf("no songs found for '%s'", title)
	}

	songID := findBestMatch(searchResp, artist, title)
	if songID == 0 {
		return "", fmt.Errorf("no matching song found for '%s' by '%s'", title, artist)
	}

	return strconv.Itoa(songID), nil
}

// GetLyrics 获取歌词
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	lyricURL := fmt.Sprintf("%s/api/song/lyric?os=pc&id=%s&lv=-1&kv=-1&tv=-1", c.baseURL, url.QueryEscape(songID))
	logger().Debug().Str("url", lyricURL).Msg("Fetching lyrics")

	req, err := c.newRequest(ctx, lyricURL)
	if err != nil {
		return "", fmt.Errorf("failed to create lyric request: %w", err)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", fmt.Errorf("lyric request failed: %w", err)
	}
	defer resp.Body.Close()

	var lyricResp NeteaseLyricResponse
	if err := json.NewDecoder(resp.Body).Decode(&lyricResp); err != nil {
		return "", fmt.Errorf("failed to decode lyric response: %w", err)
	}
	if strings.TrimSpace(lyricResp.Lrc.Lyric) == "" {
		return "", fmt.Errorf("song %s has no lyrics", songID)
	}

	return lyricResp.Lrc.Lyric, nil
}

func (c *Client) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	req.Header.Set("Referer", "https://music.163.com/")
	return req, nil
}

// doRequestWithRetry 对网络错误和 5xx 进行重试，最多请求 maxRetries 次
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * 100 * time.Millisecond):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logger().Warn().Err(err).Int("attempt", attempt).Msg("Request failed")
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		logger().Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("Request returned non-200")
		if resp.StatusCode < 500 {
			break
		}
	}
	return nil, lastErr
}

// findBestMatch 找到最佳匹配的歌曲
func findBestMatch(resp NeteaseSearchResponse, targetArtist, targetTitle string) int {
	for _, song := range resp.Result.Songs {
		if !containsIgnoreCase(song.Name, targetTitle) {
			continue
		}

		// artists 可能有多个，只要一个满足就算
		for _, artist := range song.Artists {
			if containsIgnoreCase(artist.Name, targetArtist) {
				logger().Info().Str("song", song.Name).Str("artist", artist.Name).Int("id", song.ID).Msg("Found matching song")
				return song.ID
			}
		}
	}

	// 如果没有找到完全匹配的，返回第一个匹配标题的
	first := resp.Result.Songs[0]
	if containsIgnoreCase(first.Name, targetTitle) {
		logger().Info().Str("song", first.Name).Int("id", first.ID).Msg("Using first matching song")
		return first.ID
	}

	return 0
}

// normalizeString 标准化字符串（转小写，去空格）
func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// containsIgnoreCase 忽略大小写和空格的双向包含检查，空串不匹配任何东西
func containsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := normalizeString(s1), normalizeString(s2)
	if norm1 == "" || norm2 == "" {
		return false
	}
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}
