// Package settings 保存用户选择的音乐目录
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"lyrics-desktop/pkg/fileutil"
)

const (
	// FileName 数据目录下的设置文件
	FileName = "music-settings.json"
	dirsKey  = "music_dirs"
)

// Store 读写音乐目录列表
type Store interface {
	LoadDirs(ctx context.Context) ([]string, error)
	SaveDirs(ctx context.Context, dirs []string) error
}

// FileStore 设置保存在 JSON 文件 {"music_dirs": [...]} 里，保存时保留其他键
type FileStore struct {
	path string
}

// NewFileStore 使用 dataDir/music-settings.json
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{path: filepath.Join(dataDir, FileName)}
}

// Path 设置文件路径
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) readDoc() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode settings %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) LoadDirs(ctx context.Context) ([]string, error) {
	doc, err := s.readDoc()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[dirsKey]
	if !ok {
		return []string{}, nil
	}
	var dirs []string
	if err := json.Unmarshal(raw, &dirs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", dirsKey, err)
	}
	if dirs == nil {
		dirs = []string{}
	}
	return dirs, nil
}

func (s *FileStore) SaveDirs(ctx context.Context, dirs []string) error {
	doc, err := s.readDoc()
	if err != nil {
		return err
	}
	if dirs == nil {
		dirs = []string{}
	}
	raw, err := json.Marshal(dirs)
	if err != nil {
		return err
	}
	doc[dirsKey] = raw

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	return fileutil.WriteFileOverwrite(s.path, data, 0644)
}

// KV RedisStore 需要的 redis 客户端方法
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// RedisStore 目录列表以 JSON 数组存在一个键下，多台机器可以共用
type RedisStore struct {
	kv  KV
	key string
}

// NewRedisStore 键为 prefix + "music_dirs"
func NewRedisStore(kv KV, prefix string) *RedisStore {
	return &RedisStore{kv: kv, key: prefix + dirsKey}
}

func (s *RedisStore) LoadDirs(ctx context.Context) ([]string, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", s.key, err)
	}
	if raw == "" {
		return []string{}, nil
	}
	var dirs []string
	if err := json.Unmarshal([]byte(raw), &dirs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.key, err)
	}
	if dirs == nil {
		dirs = []string{}
	}
	return dirs, nil
}

func (s *RedisStore) SaveDirs(ctx context.Context, dirs []string) error {
	if dirs == nil {
		dirs = []string{}
	}
	raw, err := json.Marshal(dirs)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key, string(raw))
}

// AddDir 追加 dir（转成绝对路径），已存在时不重复添加
func AddDir(ctx context.Context, s Store, dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	dirs, err := s.LoadDirs(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(dirs, abs) {
		return dirs, nil
	}
	dirs = append(dirs, abs)
	return dirs, s.SaveDirs(ctx, dirs)
}

// RemoveDir 从列表中删除 dir，不存在时什么也不做
func RemoveDir(ctx context.Context, s Store, dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	dirs, err := s.LoadDirs(ctx)
	if err != nil {
		return nil, err
	}
	kept := slices.DeleteFunc(slices.Clone(dirs), func(d string) bool {
		return d == abs || d == dir
	})
	if len(kept) == len(dirs) {
		return dirs, nil
	}
	return kept, s.SaveDirs(ctx, kept)
}
