package musiccache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCachePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "music_cache.list")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := c.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := c.Add("周杰伦 - 园游会", "园游会|周杰伦"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// 重复写入不覆盖
	if err := c.Add("周杰伦 - 园游会", "other|value"); err != nil {
		t.Fatalf("Add duplicate: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get("周杰伦 - 园游会")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "园游会|周杰伦" {
		t.Errorf("expected first value to win, got %q", got)
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "\n"); n != 1 {
		t.Errorf("expected 1 line in cache file, got %d", n)
	}
}

func TestCacheRejectsMultilineEntries(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.list"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Add("a\nb", "v"); err == nil {
		t.Error("expected error for key containing newline")
	}
	if err := c.Add("a => b", "v"); err == nil {
		t.Error("expected error for key containing separator")
	}
}
