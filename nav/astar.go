package nav

import (
	"container/heap"
)

// node A* 搜索节点, 格子级与抽象图搜索共用.
type node struct {
	p       Point
	g, h, f int
	parent  *node
	via     []Point // 抽象图: 从 parent 走到 p 的格子序列
	seq     uint64  // 入堆序号
	openIdx int     // heap 索引, -1 表示不在堆中
	closed  bool
}

// openHeap 按 f 排序; f 相同时后入堆者优先 (LIFO).
type openHeap []*node

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].f == h[j].f {
		return h[i].seq > h[j].seq
	}
	return h[i].f < h[j].f
}
func (h openHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].openIdx, h[j].openIdx = i, j
}
func (h *openHeap) Push(x any) {
	n := x.(*node)
	n.openIdx = len(*h)
	*h = append(*h, n)
}
func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	x.openIdx = -1
	*h = old[:n-1]
	return x
}

// closer 判断 a 是否比 b 更接近目标: h 更小, 其次 g 更小.
func closer(a, b *node) bool {
	if a.h != b.h {
		return a.h < b.h
	}
	return a.g < b.g
}

// canStep 判断从 a 沿 o 走一步是否合法, 返回目标格子.
// 斜向移动要求各正交分量格子都可通行, 除非允许擦角.
func (g *Grid) canStep(a Point, o offset, blocked func(Point) bool) (Point, bool) {
	b := a.Add(o.dx, o.dy, o.dz)
	if !g.passable(b, blocked) {
		return b, false
	}
	if !g.cellAt(a).Dirs.Allows(o.dx, o.dy, o.dz) {
		return b, false
	}
	axes := 0
	if o.dx != 0 {
		axes++
	}
	if o.dy != 0 {
		axes++
	}
	if o.dz != 0 {
		axes++
	}
	if axes > 1 && !g.settings.AllowCornerCutting {
		if o.dx != 0 && !g.passable(a.Add(o.dx, 0, 0), blocked) {
			return b, false
		}
		if o.dy != 0 && !g.passable(a.Add(0, o.dy, 0), blocked) {
			return b, false
		}
		if o.dz != 0 && !g.passable(a.Add(0, 0, o.dz), blocked) {
			return b, false
		}
	}
	return b, true
}

// searchResult 一次搜索的结果. found 为 false 且 cells 非空时为 partial 结果.
type searchResult struct {
	cells []Point
	cost  int
	found bool
}

// searchCells 在 bounds 内做格子级 A*. partial 时找不到目标则返回到最近点的路径.
// 调用方需持有读锁.
func (g *Grid) searchCells(start, goal Point, bounds Rect, blocked func(Point) bool, partial bool) searchResult {
	g.stats.searches.Add(1)
	offsets := g.settings.Neighborhood.offsets()

	var seq uint64
	st := &node{p: start, h: g.heuristic(start, goal)}
	st.f = st.h
	open := &openHeap{}
	heap.Push(open, st)
	vis := map[int]*node{g.index(start): st}
	best := st

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		cur.closed = true
		if cur.p == goal {
			return searchResult{cells: reconstructCells(cur), cost: cur.g, found: true}
		}
		if closer(cur, best) {
			best = cur
		}
		for _, o := range offsets {
			np, ok := g.canStep(cur.p, o, blocked)
			if !ok || !bounds.Contains(np) {
				continue
			}
			ng := cur.g + int(g.cellAt(np).Cost)
			key := g.index(np)
			if old, ok := vis[key]; ok {
				if old.closed || ng >= old.g {
					continue
				}
				old.g = ng
				old.f = ng + old.h
				old.parent = cur
				seq++
				old.seq = seq
				heap.Fix(open, old.openIdx)
				continue
			}
			seq++
			nn := &node{p: np, g: ng, h: g.heuristic(np, goal), parent: cur, seq: seq}
			nn.f = ng + nn.h
			vis[key] = nn
			heap.Push(open, nn)
		}
	}
	if !partial {
		return searchResult{}
	}
	return searchResult{cells: reconstructCells(best), cost: best.g}
}

// reconstructCells 回溯父节点, 返回不含起点的格子序列.
func reconstructCells(n *node) []Point {
	var rev []Point
	for ; n != nil && n.parent != nil; n = n.parent {
		rev = append(rev, n.p)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}
