package nav

import (
	"fmt"
	"iter"
	"slices"
)

// Mode 寻路模式.
type Mode uint8

const (
	// Refined 分层寻路后做视线平滑. 默认模式.
	Refined Mode = iota
	// Coarse 只拼接缓存路径, 最快但最不优.
	Coarse
	// AStar 绕过分层, 全图 A*.
	AStar
)

func (m Mode) String() string {
	switch m {
	case Refined:
		return "refined"
	case Coarse:
		return "coarse"
	case AStar:
		return "astar"
	default:
		return "unknown"
	}
}

// ParseMode 是 Mode.String 的逆.
func ParseMode(s string) (Mode, bool) {
	for _, m := range []Mode{Refined, Coarse, AStar} {
		if m.String() == s {
			return m, true
		}
	}
	return Refined, false
}

// Path 有序、有限、可重复遍历的格子序列. 第一个元素是起点之后的第一步,
// 最后一个元素是目标或 partial 时的最近点. Path 创建后不可变.
type Path struct {
	cells   []Point
	cost    int
	mode    Mode
	partial bool
}

// NewPath 用已有格子序列构造 Path.
func NewPath(cells []Point, cost int, mode Mode, partial bool) Path {
	return Path{cells: slices.Clone(cells), cost: cost, mode: mode, partial: partial}
}

func (p Path) Len() int       { return len(p.cells) }
func (p Path) Empty() bool    { return len(p.cells) == 0 }
func (p Path) Cost() int      { return p.cost }
func (p Path) Mode() Mode     { return p.mode }
func (p Path) Partial() bool  { return p.partial }
func (p Path) At(i int) Point { return p.cells[i] }
func (p Path) Cells() []Point { return slices.Clone(p.cells) }

// Contains 判断路径是否经过 c.
func (p Path) Contains(c Point) bool {
	return slices.Contains(p.cells, c)
}

// End 返回路径终点.
func (p Path) End() (Point, bool) {
	if len(p.cells) == 0 {
		return Point{}, false
	}
	return p.cells[len(p.cells)-1], true
}

// All 遍历路径, 每次调用都从头开始.
func (p Path) All() iter.Seq2[int, Point] {
	return func(yield func(int, Point) bool) {
		for i, c := range p.cells {
			if !yield(i, c) {
				return
			}
		}
	}
}

func (p Path) String() string {
	return fmt.Sprintf("Path{mode=%v len=%d cost=%d partial=%v}", p.mode, len(p.cells), p.cost, p.partial)
}
