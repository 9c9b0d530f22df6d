package lyrics

import (
	"regexp"
	"strconv"
	"strings"
)

// Line 一行带时间戳的歌词
type Line struct {
	Time float64 `json:"time"` // 距离歌曲开始的秒数，精度 1/100 秒
	Text string  `json:"text"`
}

// Sequence 按源文本顺序排列的歌词行，换歌时整体替换
type Sequence []Line

// 只接受严格的 [MM:SS.hh] 形式，[ar:xxx] 之类的元数据行不会匹配
var timeTagRe = regexp.MustCompile(`\[(\d{2}):(\d{2})\.(\d{2})\]`)

// ParseLRC 解析 LRC 文本。
//
// 每一行只取第一个时间标签，去掉该标签后 trim 得到歌词文本；没有时间标签或文本为空的行被丢弃。
// 输出保持源文本顺序，不排序也不去重，解析永远不会失败。
func ParseLRC(lrc string) Sequence {
	var result Sequence
	for _, raw := range strings.Split(lrc, "\n") {
		line, ok := parseLine(raw)
		if !ok {
			continue
		}
		result = append(result, line)
	}
	return result
}

func parseLine(raw string) (Line, bool) {
	loc := timeTagRe.FindStringSubmatchIndex(raw)
	if loc == nil {
		return Line{}, false
	}

	// 正则已保证三组都是两位十进制数字
	minutes, _ := strconv.Atoi(raw[loc[2]:loc[3]])
	seconds, _ := strconv.Atoi(raw[loc[4]:loc[5]])
	hundredths, _ := strconv.Atoi(raw[loc[6]:loc[7]])

	text := strings.TrimSpace(raw[:loc[0]] + raw[loc[1]:])
	if text == "" {
		return Line{}, false
	}

	return Line{
		Time: float64(minutes*60+seconds) + float64(hundredths)/100,
		Text: text,
	}, true
}

// IsSorted 报告时间是否单调不减
func (s Sequence) IsSorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Time < s[i-1].Time {
			return false
		}
	}
	return true
}
