package lyrics

// NoLyricsText 没有任何歌词时显示的占位文本
const NoLyricsText = "暂无歌词"

// Display 某一时刻应当展示的当前句与下一句
type Display struct {
	Index   int    `json:"index"` // 当前句下标，-1 表示还没有任何一句到达
	Current string `json:"current"`
	Next    string `json:"next"`
}

// ActiveIndex 从头扫描，返回第一个满足
// seq[i].Time <= t 且 (i 是最后一行 或 seq[i+1].Time > t) 的下标；找不到返回 -1。
func ActiveIndex(seq Sequence, t float64) int {
	for i := range seq {
		if isActive(seq, i, t) {
			return i
		}
	}
	return -1
}

func isActive(seq Sequence, i int, t float64) bool {
	if seq[i].Time > t {
		return false
	}
	return i == len(seq)-1 || seq[i+1].Time > t
}

// Resolve 计算播放到 t 秒时的当前句和下一句。
//
// 还没到第一句时仍然显示第一句（下一句为空），歌词为空时显示 NoLyricsText。
func Resolve(seq Sequence, t float64) Display {
	return display(seq, ActiveIndex(seq, t))
}

func display(seq Sequence, idx int) Display {
	if len(seq) == 0 {
		return Display{Index: -1, Current: NoLyricsText}
	}
	if idx < 0 {
		return Display{Index: -1, Current: seq[0].Text}
	}
	d := Display{Index: idx, Current: seq[idx].Text}
	if idx < len(seq)-1 {
		d.Next = seq[idx+1].Text
	}
	return d
}

// Cursor 在同一份歌词上反复查询时记住上一次的位置。
//
// 播放时间通常单调前进，所以先检查上一次的下标及其后一行；任意跳转（包括往回拖动）
// 退回到完整扫描。只有时间单调不减的序列才会使用记忆位置，结果始终与 Resolve 一致。
// Cursor 不是并发安全的。
type Cursor struct {
	lines  Sequence
	sorted bool
	last   int
}

// NewCursor 为一份歌词创建游标，游标只读取 seq，不会修改它
func NewCursor(seq Sequence) *Cursor {
	return &Cursor{
		lines:  seq,
		sorted: seq.IsSorted(),
		last:   -1,
	}
}

// Lines 返回游标使用的歌词
func (c *Cursor) Lines() Sequence {
	return c.lines
}

// Resolve 与包级 Resolve 语义相同
func (c *Cursor) Resolve(t float64) Display {
	return display(c.lines, c.Index(t))
}

// Index 与 ActiveIndex 语义相同
func (c *Cursor) Index(t float64) int {
	if !c.sorted {
		return ActiveIndex(c.lines, t)
	}

	// 单调不减时满足条件的下标至多一个，所以命中记忆位置就是扫描的结果
	if c.last >= 0 {
		for _, i := range [...]int{c.last, c.last + 1} {
			if i < len(c.lines) && isActive(c.lines, i, t) {
				c.last = i
				return i
			}
		}
	}

	idx := ActiveIndex(c.lines, t)
	if idx >= 0 {
		c.last = idx
	}
	return idx
}
