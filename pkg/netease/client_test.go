package netease

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestClientRetry 测试重试机制
func TestClientRetry(t *testing.T) {
	requestCount := 0

	// 前两次请求失败，第三次成功
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"result":{"songs":[{"id":123,"name":"Test Song","artists":[{"name":"Test Artist"}]}]}}`))
	}))
	defer server.Close()

	client := &Client{
		httpClient:     &http.Client{Timeout: 1 * time.Second},
		maxRetries:     3,
		requestTimeout: 2 * time.Second,
	}

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("创建请求失败: %v", err)
	}

	resp, err := client.doRequestWithRetry(req)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if requestCount != 3 {
		t.Errorf("预期重试次数为3，实际为%d", requestCount)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("预期状态码200，实际为%d", resp.StatusCode)
	}
}

// TestTimeout 测试超时机制
func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 休眠2秒，超过客户端的超时时间
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &Client{
		httpClient:     &http.Client{Timeout: 1 * time.Second},
		maxRetries:     1,
		requestTimeout: 1 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	if err != nil {
		t.Fatalf("创建请求失败: %v", err)
	}

	if _, err = client.doRequestWithRetry(req); err == nil {
		t.Error("预期请求超时失败，但请求成功了")
	}
}

func TestSearchAndGetLyrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search/get/web", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"songs":[
			{"id":1,"name":"园游会 (Cover)","artists":[{"name":"路人"}]},
			{"id":2,"name":"园游会","artists":[{"name":"周杰伦"}]}
		]}}`))
	})
	mux.HandleFunc("/api/song/lyric", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("id"); id != "2" {
			t.Errorf("expected id 2, got %s", id)
		}
		w.Write([]byte(`{"lrc":{"lyric":"[00:32.35]琥珀色黄昏像糖在很美的远方"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)
	songID, err := client.SearchSong(context.Background(), "园游会", "周杰伦")
	if err != nil {
		t.Fatalf("SearchSong: %v", err)
	}
	if songID != "2" {
		t.Fatalf("expected song id 2, got %s", songID)
	}

	lyrics, err := client.GetLyrics(context.Background(), songID)
	if err != nil {
		t.Fatalf("GetLyrics: %v", err)
	}
	if lyrics != "[00:32.35]琥珀色黄昏像糖在很美的远方" {
		t.Errorf("unexpected lyrics %q", lyrics)
	}
}

func TestFindBestMatchFallsBackToFirstTitle(t *testing.T) {
	var resp NeteaseSearchResponse
	resp.Result.Songs = append(resp.Result.Songs, struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	}{ID: 9, Name: "Hello World"})

	if got := findBestMatch(resp, "unknown", "hello world"); got != 9 {
		t.Errorf("expected fallback id 9, got %d", got)
	}
	if got := findBestMatch(resp, "unknown", "different"); got != 0 {
		t.Errorf("expected 0 for unrelated title, got %d", got)
	}
}
