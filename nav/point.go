package nav

import (
	"fmt"
)

// Point 表示网格中的一个格子. Z 为层号.
type Point struct {
	X, Y, Z int
}

// Pt 是 Point{X: x, Y: y} 的简写, 用于单层网格.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// Pt3 是 Point{X: x, Y: y, Z: z} 的简写.
func Pt3(x, y, z int) Point {
	return Point{X: x, Y: y, Z: z}
}

func (p Point) Add(dx, dy, dz int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// less 是需要确定性遍历时使用的扫描顺序: 先 z, 再 y, 最后 x.
func (p Point) less(o Point) bool {
	if p.Z != o.Z {
		return p.Z < o.Z
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.X < o.X
}

// Rect 是一个轴对齐的长方体. Min inclusive, Max exclusive.
type Rect struct {
	Min, Max Point
}

func (r Rect) Width() int  { return r.Max.X - r.Min.X }
func (r Rect) Height() int { return r.Max.Y - r.Min.Y }
func (r Rect) Depth() int  { return r.Max.Z - r.Min.Z }

// Volume 返回 Rect 包含的格子数.
func (r Rect) Volume() int {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height() * r.Depth()
}

func (r Rect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0 || r.Depth() <= 0
}

// Contains 判断 r 是否包含点 p（Min inclusive, Max exclusive）.
func (r Rect) Contains(p Point) bool {
	return r.Min.X <= p.X && p.X < r.Max.X &&
		r.Min.Y <= p.Y && p.Y < r.Max.Y &&
		r.Min.Z <= p.Z && p.Z < r.Max.Z
}

// Intersect 返回 r 与 o 的交集, 不相交时返回空 Rect.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Min: Point{X: max(r.Min.X, o.Min.X), Y: max(r.Min.Y, o.Min.Y), Z: max(r.Min.Z, o.Min.Z)},
		Max: Point{X: min(r.Max.X, o.Max.X), Y: min(r.Max.Y, o.Max.Y), Z: min(r.Max.Z, o.Max.Z)},
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Around 返回以 p 为中心、半径 radius 的方框（z 方向同样扩展）.
func Around(p Point, radius int) Rect {
	return Rect{
		Min: Point{X: p.X - radius, Y: p.Y - radius, Z: p.Z - radius},
		Max: Point{X: p.X + radius + 1, Y: p.Y + radius + 1, Z: p.Z + radius + 1},
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%v, %v)", r.Min, r.Max)
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

func sign(a int) int {
	if a < 0 {
		return -1
	}
	if a > 0 {
		return 1
	}
	return 0
}
