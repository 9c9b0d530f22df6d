// Package library 在用户选择的目录里查找音乐文件
package library

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "library").Logger()
	return &l
}

var musicExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
}

// MusicFile 一个音乐文件，没有标签时 Title 取文件名
type MusicFile struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

// IsMusicFile 扩展名是否是支持的格式
func IsMusicFile(path string) bool {
	return musicExtensions[strings.ToLower(filepath.Ext(path))]
}

// Scan 列出每个目录下的音乐文件（不递归），读不了的目录跳过
func Scan(dirs []string) []MusicFile {
	var files []MusicFile
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger().Warn().Err(err).Str("dir", dir).Msg("Skipping unreadable directory")
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsMusicFile(entry.Name()) {
				continue
			}
			files = append(files, readFile(filepath.Join(dir, entry.Name())))
		}
	}
	logger().Debug().Int("files", len(files)).Int("dirs", len(dirs)).Msg("Scan finished")
	return files
}

func readFile(path string) MusicFile {
	name := filepath.Base(path)
	mf := MusicFile{
		Name:  name,
		Path:  path,
		Title: strings.TrimSuffix(name, filepath.Ext(name)),
	}

	f, err := os.Open(path)
	if err != nil {
		return mf
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return mf
	}
	if title := strings.TrimSpace(meta.Title()); title != "" {
		mf.Title = title
	}
	mf.Artist = strings.TrimSpace(meta.Artist())
	mf.Album = strings.TrimSpace(meta.Album())
	return mf
}

// Find 按标题和歌手查找歌曲，忽略大小写，任一方没有歌手时只比较标题
func Find(files []MusicFile, title, artist string) (MusicFile, bool) {
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if title == "" {
		return MusicFile{}, false
	}
	for _, f := range files {
		if !strings.EqualFold(f.Title, title) {
			continue
		}
		if artist != "" && f.Artist != "" && !strings.EqualFold(f.Artist, artist) {
			continue
		}
		return f, true
	}
	return MusicFile{}, false
}

// LyricsPath 歌曲同目录下的 .lrc 路径
func LyricsPath(songPath string) string {
	ext := filepath.Ext(songPath)
	if strings.EqualFold(ext, ".lrc") {
		return songPath
	}
	return strings.TrimSuffix(songPath, ext) + ".lrc"
}
