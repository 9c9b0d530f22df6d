package player

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoPlayer 没有正在播放的媒体
var ErrNoPlayer = errors.New("no music playing")

// Song 播放器报告的当前歌曲
type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

// Identifier 用于判断是否换歌，也作为自由文本交给歌曲识别
func (s Song) Identifier() string {
	switch {
	case s.Artist != "" && s.Title != "":
		return s.Artist + " - " + s.Title
	case s.Title != "":
		return s.Title
	default:
		return s.URL
	}
}

// Path 本地文件的路径，非 file:// 地址返回空串
func (s Song) Path() string {
	if s.URL == "" {
		return ""
	}
	if !strings.Contains(s.URL, "://") {
		return s.URL
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return u.Path
}

// Playerctl 通过 playerctl 读取 MPRIS 播放器状态
type Playerctl struct {
	// Player 对应 playerctl --player，空表示第一个可用的播放器
	Player string
}

const metadataFormat = "{{artist}}\t{{title}}\t{{xesam:url}}"

func (p Playerctl) command(args ...string) *exec.Cmd {
	if p.Player != "" {
		args = append([]string{"--player", p.Player}, args...)
	}
	return exec.Command("playerctl", args...)
}

// CurrentSong 返回当前歌曲，没有播放器时返回 ErrNoPlayer
func (p Playerctl) CurrentSong() (Song, error) {
	output, err := p.command("metadata", "--format", metadataFormat).Output()
	if err != nil {
		return Song{}, fmt.Errorf("%w: %v", ErrNoPlayer, err)
	}
	song := parseMetadata(string(output))
	if song == (Song{}) {
		return Song{}, ErrNoPlayer
	}
	return song, nil
}

func parseMetadata(out string) Song {
	fields := strings.Split(strings.TrimRight(out, "\r\n"), "\t")
	for len(fields) < 3 {
		fields = append(fields, "")
	}
	return Song{
		Artist: strings.TrimSpace(fields[0]),
		Title:  strings.TrimSpace(fields[1]),
		URL:    strings.TrimSpace(fields[2]),
	}
}

// Position 当前播放位置（秒），读取失败返回 0
func (p Playerctl) Position() float64 {
	out, err := p.command("position").Output()
	if err != nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return seconds
}

// Duration 当前歌曲时长（秒），mpris:length 单位是微秒
func (p Playerctl) Duration() float64 {
	out, err := p.command("metadata", "mpris:length").Output()
	if err != nil {
		return 0
	}
	us, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return us / 1e6
}
