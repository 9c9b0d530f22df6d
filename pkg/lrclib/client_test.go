package lrclib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFindBestMatch(t *testing.T) {
	results := LRCLibSearchResponse{
		{ID: 1, TrackName: "Other Song", ArtistName: "Someone", Duration: 200},
		{ID: 2, TrackName: "园游会", ArtistName: "Cover Band", Duration: 260},
		{ID: 3, TrackName: "园游会", ArtistName: "周杰伦", Duration: 280},
		{ID: 4, TrackName: "园游会 (Live)", ArtistName: "周杰伦", Duration: 255},
	}

	tests := []struct {
		name     string
		title    string
		artist   string
		duration int
		wantID   int
	}{
		{"exact match without duration", "园游会", "周杰伦", 0, 3},
		{"exact match closest duration", "园游会", "周杰伦", 256, 4},
		{"title match fallback", "园游会", "nobody", 0, 2},
		{"no match uses all results", "missing", "nobody", 0, 1},
		{"duration outside threshold picks closest", "园游会", "周杰伦", 300, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findBestMatch(results, tt.title, tt.artist, tt.duration)
			if got.ID != tt.wantID {
				t.Errorf("expected id %d, got %d", tt.wantID, got.ID)
			}
		})
	}
}

func TestGetLyricsByInfoPrefersSynced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("track_name"); got != "Hello" {
			t.Errorf("unexpected track_name %q", got)
		}
		w.Write([]byte(`[{"id":7,"trackName":"Hello","artistName":"Adele","duration":295,"plainLyrics":"plain","syncedLyrics":"[00:01.00]synced"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	lyrics, err := client.GetLyricsByInfo(context.Background(), "Hello", "Adele", 295)
	if err != nil {
		t.Fatalf("GetLyricsByInfo: %v", err)
	}
	if lyrics != "[00:01.00]synced" {
		t.Errorf("expected synced lyrics, got %q", lyrics)
	}
}

func TestGetLyricsRetriesServerErrors(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"id":1,"trackName":"Song","artistName":"Artist","plainLyrics":"la la"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.retryBackoff = time.Millisecond

	id, _ := client.SearchSong(context.Background(), "Song", "Artist")
	lyrics, err := client.GetLyrics(context.Background(), id)
	if err != nil {
		t.Fatalf("GetLyrics: %v", err)
	}
	if lyrics != "la la" {
		t.Errorf("expected plain lyrics fallback, got %q", lyrics)
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestGetLyricsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).GetLyrics(context.Background(), "a|b"); err == nil {
		t.Error("expected error for empty result")
	}
	if _, err := NewClient(server.URL).GetLyrics(context.Background(), "no-separator"); err == nil {
		t.Error("expected error for malformed song id")
	}
}
