package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lyrics-desktop/internal/config"
	"lyrics-desktop/internal/lyrics"
	"lyrics-desktop/internal/player"
	"lyrics-desktop/internal/settings"
)

const testLRC = "[00:00.00]a\n[00:10.00]b\n[00:20.00]c\n"

type fakePlayer struct {
	mu       sync.Mutex
	song     player.Song
	err      error
	position float64
}

func (p *fakePlayer) CurrentSong() (player.Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.song, p.err
}

func (p *fakePlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) Duration() float64 { return 180 }

func (p *fakePlayer) set(song player.Song, err error, position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.song, p.err, p.position = song, err, position
}

type fakeSource struct {
	mu    sync.Mutex
	calls []string
	lrc   map[string]string
}

func (s *fakeSource) GetLyrics(_ context.Context, song player.Song, _ float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, song.Identifier())
	lrc, ok := s.lrc[song.Identifier()]
	if !ok {
		return "", errors.New("no lyrics")
	}
	return lrc, nil
}

type recorder struct {
	mu    sync.Mutex
	shown []lyrics.Display
}

func (r *recorder) Show(d lyrics.Display) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, d)
	return nil
}

func (r *recorder) waitFor(t *testing.T, want lyrics.Display) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		n := len(r.shown)
		last := lyrics.Display{}
		if n > 0 {
			last = r.shown[n-1]
		}
		r.mu.Unlock()
		if n > 0 && last == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Fatalf("never showed %+v; shown: %+v", want, r.shown)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.App.CacheDir = t.TempDir()
	cfg.App.DataDir = t.TempDir()
	cfg.App.CheckInterval = 10 * time.Millisecond
	cfg.App.TickInterval = 5 * time.Millisecond
	cfg.App.LyricOffset = 0
	return cfg
}

func startApp(t *testing.T, p *fakePlayer, src *fakeSource, rec *recorder) *App {
	t.Helper()
	cfg := testConfig(t)
	a, err := New(cfg,
		WithPlayer(p),
		WithLyricsSource(src),
		WithSettings(settings.NewFileStore(cfg.App.DataDir)),
		WithSinks(rec),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
		a.Close()
	})
	return a
}

func TestApp_FollowsPlayback(t *testing.T) {
	song := player.Song{Title: "Song", Artist: "Artist"}
	p := &fakePlayer{song: song, position: 12}
	src := &fakeSource{lrc: map[string]string{song.Identifier(): testLRC}}
	rec := &recorder{}
	a := startApp(t, p, src, rec)

	rec.waitFor(t, lyrics.Display{Index: 1, Current: "b", Next: "c"})

	p.set(song, nil, 21)
	rec.waitFor(t, lyrics.Display{Index: 2, Current: "c", Next: ""})

	if got := a.Overlay().Current(); got.Current != "c" {
		t.Errorf("overlay current = %+v", got)
	}

	src.mu.Lock()
	calls := len(src.calls)
	src.mu.Unlock()
	if calls != 1 {
		t.Errorf("lyrics fetched %d times for one song, want 1", calls)
	}
}

func TestApp_SongChange(t *testing.T) {
	first := player.Song{Title: "One", Artist: "A"}
	second := player.Song{Title: "Two", Artist: "B"}
	p := &fakePlayer{song: first, position: 1}
	src := &fakeSource{lrc: map[string]string{
		first.Identifier():  testLRC,
		second.Identifier(): "[00:00.50]x\n[00:03.00]y\n",
	}}
	rec := &recorder{}
	startApp(t, p, src, rec)

	rec.waitFor(t, lyrics.Display{Index: 0, Current: "a", Next: "b"})

	p.set(second, nil, 1)
	rec.waitFor(t, lyrics.Display{Index: 0, Current: "x", Next: "y"})
}

func TestApp_LyricsUnavailable(t *testing.T) {
	song := player.Song{Title: "Unknown"}
	p := &fakePlayer{song: song}
	rec := &recorder{}
	startApp(t, p, &fakeSource{}, rec)

	rec.waitFor(t, lyrics.Display{Index: -1, Current: lyrics.NoLyricsText, Next: ""})
}

func TestApp_SeekBackAfterSongEnd(t *testing.T) {
	song := player.Song{Title: "Song", Artist: "Artist"}
	p := &fakePlayer{song: song, position: 26}
	src := &fakeSource{lrc: map[string]string{song.Identifier(): testLRC}}
	rec := &recorder{}
	startApp(t, p, src, rec)

	rec.waitFor(t, lyrics.Display{Index: 2, Current: "c", Next: ""})
	// 让调度器确认歌曲已经结束
	time.Sleep(100 * time.Millisecond)

	p.set(song, nil, 12)
	rec.waitFor(t, lyrics.Display{Index: 1, Current: "b", Next: "c"})

	// 单曲循环从头开始
	p.set(song, nil, 1)
	rec.waitFor(t, lyrics.Display{Index: 0, Current: "a", Next: "b"})

	p.set(song, nil, 30)
	rec.waitFor(t, lyrics.Display{Index: 2, Current: "c", Next: ""})
}

func TestApp_PlayerStops(t *testing.T) {
	song := player.Song{Title: "Song", Artist: "Artist"}
	p := &fakePlayer{song: song, position: 12}
	src := &fakeSource{lrc: map[string]string{song.Identifier(): testLRC}}
	rec := &recorder{}
	startApp(t, p, src, rec)

	rec.waitFor(t, lyrics.Display{Index: 1, Current: "b", Next: "c"})

	p.set(player.Song{}, player.ErrNoPlayer, 0)
	rec.waitFor(t, lyrics.Display{Index: -1, Current: lyrics.NoLyricsText, Next: ""})
}

func TestApp_LyricsFromRescannedLibrary(t *testing.T) {
	cfg := testConfig(t)
	musicDir := t.TempDir()
	store := settings.NewFileStore(cfg.App.DataDir)
	if err := store.SaveDirs(context.Background(), []string{musicDir}); err != nil {
		t.Fatal(err)
	}

	p := &fakePlayer{err: player.ErrNoPlayer, position: 1}
	rec := &recorder{}
	a, err := New(cfg, WithPlayer(p), WithSettings(store), WithSinks(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	defer func() {
		cancel()
		<-done
		a.Close()
	}()

	// 等初次扫描和目录监听就绪
	time.Sleep(200 * time.Millisecond)
	if n := len(a.Library()); n != 0 {
		t.Fatalf("library has %d files before any were added", n)
	}

	lrc := "[00:00.50]from library\n[00:03.00]second\n"
	if err := os.WriteFile(filepath.Join(musicDir, "Track.lrc"), []byte(lrc), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(musicDir, "Track.mp3"), []byte("not really audio"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(a.Library()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("library was not rescanned after a file was added")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// 播放器只报告标题，没有文件路径
	p.set(player.Song{Title: "Track"}, nil, 1)
	rec.waitFor(t, lyrics.Display{Index: 0, Current: "from library", Next: "second"})
}

func TestEndTime(t *testing.T) {
	seq := lyrics.Sequence{{Time: 30, Text: "late"}, {Time: 5, Text: "early"}}
	if got := endTime(seq); got != 30 {
		t.Errorf("endTime = %v, want 30", got)
	}
	if got := endTime(nil); got != 0 {
		t.Errorf("endTime(nil) = %v, want 0", got)
	}
}

func TestOpenSettings_File(t *testing.T) {
	cfg := testConfig(t)
	store, closeFn, err := OpenSettings(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	if _, ok := store.(*settings.FileStore); !ok {
		t.Errorf("store = %T, want *settings.FileStore", store)
	}
}
