package nav

import (
	"fmt"
)

// SearchOption 调整单次查询.
type SearchOption func(*searchOptions)

type searchOptions struct {
	blocked func(Point) bool
}

// WithBlocked 把动态阻挡视为不可通行. 缓存路径经过阻挡时该边本次不可用.
func WithBlocked(blocked func(Point) bool) SearchOption {
	return func(o *searchOptions) { o.blocked = blocked }
}

func applySearchOptions(opts []SearchOption) searchOptions {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FindPath 从 start 寻路到 goal.
//
// 找不到路径时: partial 为 true 返回到搜索中遇到的最近点的路径 (Path.Partial() 为 true),
// 起点本身最近时路径为空; 否则返回 ErrNoPathFound.
func (g *Grid) FindPath(start, goal Point, mode Mode, partial bool, opts ...SearchOption) (Path, error) {
	if !g.bounds.Contains(start) || !g.bounds.Contains(goal) {
		return Path{}, fmt.Errorf("%w: %v -> %v", ErrOutOfBounds, start, goal)
	}
	o := applySearchOptions(opts)

	g.rlockSynced()
	defer g.mu.RUnlock()

	if start == goal {
		return Path{mode: mode}, nil
	}

	var res searchResult
	switch mode {
	case AStar:
		res = g.searchCells(start, goal, g.bounds, o.blocked, partial)
	case Coarse:
		res = g.planHierarchical(start, goal, o.blocked, partial)
	default:
		res = g.planHierarchical(start, goal, o.blocked, partial)
		res.cells, res.cost = g.smooth(start, res.cells, o.blocked)
	}
	if !res.found && !partial {
		return Path{}, fmt.Errorf("%w: %v -> %v (%v)", ErrNoPathFound, start, goal, mode)
	}
	return Path{cells: res.cells, cost: res.cost, mode: mode, partial: !res.found}, nil
}

// LocalPath 在以 start 为中心、半径 radius 的范围内做格子级 A*.
// 用于局部避让, 代价与 radius 成正比而与网格大小无关.
func (g *Grid) LocalPath(start, goal Point, radius int, opts ...SearchOption) (Path, error) {
	if !g.bounds.Contains(start) || !g.bounds.Contains(goal) {
		return Path{}, fmt.Errorf("%w: %v -> %v", ErrOutOfBounds, start, goal)
	}
	o := applySearchOptions(opts)
	bounds := Around(start, radius).Intersect(g.bounds)
	if !bounds.Contains(goal) {
		return Path{}, fmt.Errorf("%w: %v outside radius %d of %v", ErrNoPathFound, goal, radius, start)
	}

	g.rlockSynced()
	defer g.mu.RUnlock()

	if start == goal {
		return Path{mode: AStar}, nil
	}
	res := g.searchCells(start, goal, bounds, o.blocked, false)
	if !res.found {
		return Path{}, fmt.Errorf("%w: %v -> %v within %d", ErrNoPathFound, start, goal, radius)
	}
	return Path{cells: res.cells, cost: res.cost, mode: AStar}, nil
}

// PathCost 校验 cells 是从 start 出发的一串合法移动, 并返回其代价.
func (g *Grid) PathCost(start Point, cells []Point, opts ...SearchOption) (int, bool) {
	if !g.bounds.Contains(start) {
		return 0, false
	}
	o := applySearchOptions(opts)

	g.rlockSynced()
	defer g.mu.RUnlock()

	cost := 0
	cur := start
	for _, c := range cells {
		off := offset{c.X - cur.X, c.Y - cur.Y, c.Z - cur.Z}
		if abs(off.dx) > 1 || abs(off.dy) > 1 || abs(off.dz) > 1 || !g.inNeighborhood(off) {
			return 0, false
		}
		if _, ok := g.canStep(cur, off, o.blocked); !ok {
			return 0, false
		}
		cost += int(g.cellAt(c).Cost)
		cur = c
	}
	return cost, true
}

func (g *Grid) inNeighborhood(o offset) bool {
	for _, n := range g.settings.Neighborhood.offsets() {
		if n == o {
			return true
		}
	}
	return false
}
