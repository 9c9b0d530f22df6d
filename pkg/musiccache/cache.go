package musiccache

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	kvSep    = " => "
	kvFormat = "%s" + kvSep + "%s\n"
)

// ErrNotFound 缓存中没有该键
var ErrNotFound = errors.New("not found")

// Cache 追加写入文件的键值缓存，每行一条 "key => value"。
// 用来记住媒体标题到歌曲信息的识别结果，避免重复调用 AI。
type Cache struct {
	path    string
	entries sync.Map
	fileMu  sync.Mutex
}

// Open 加载缓存文件，文件不存在时创建
func Open(path string) (*Cache, error) {
	c := &Cache{path: path}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
		created, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache file: %w", err)
		}
		created.Close()
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		kv := strings.SplitN(scanner.Text(), kvSep, 2)
		if len(kv) != 2 {
			continue
		}
		c.entries.Store(kv[0], kv[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return c, nil
}

// Add 写入一条记录，已存在的键不会被覆盖
func (c *Cache) Add(key, value string) error {
	if strings.Contains(key, "\n") || strings.Contains(key, kvSep) || strings.Contains(value, "\n") {
		return fmt.Errorf("invalid cache entry %q", key)
	}
	if _, loaded := c.entries.LoadOrStore(key, value); loaded {
		return nil
	}

	c.fileMu.Lock()
	defer c.fileMu.Unlock()
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, kvFormat, key, value); err != nil {
		return fmt.Errorf("failed to append cache entry: %w", err)
	}
	return nil
}

// Get 读取记录，不存在时返回 ErrNotFound
func (c *Cache) Get(key string) (string, error) {
	v, ok := c.entries.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}
