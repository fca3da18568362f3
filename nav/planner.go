package nav

import (
	"container/heap"
	"slices"
)

// abstractSearch 一次分层查询的临时起点/终点节点.
type abstractSearch struct {
	g       *Grid
	start   Point
	goal    Point
	blocked func(Point) bool

	startEdges []Edge
	goalEdges  map[Point]Edge
}

// planHierarchical 在入口图上做 A*, 返回抽象路径各段格子序列的拼接 (即 Coarse 结果).
// 抽象图无解且需要 partial 结果, 或存在动态阻挡时, 改用格子级搜索:
// 缓存边只要经过阻挡就整条不可用, 抽象图上的无解不代表格子级不可达.
// 调用方需持有读锁.
func (g *Grid) planHierarchical(start, goal Point, blocked func(Point) bool, partial bool) searchResult {
	g.stats.searches.Add(1)
	s := &abstractSearch{g: g, start: start, goal: goal, blocked: blocked}
	s.connectStart()
	s.connectGoal()

	var seq uint64
	st := &node{p: start, h: g.heuristic(start, goal)}
	st.f = st.h
	open := &openHeap{}
	heap.Push(open, st)
	vis := map[Point]*node{start: st}

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		cur.closed = true
		if cur.p == goal {
			return searchResult{cells: reconstructVia(cur), cost: cur.g, found: true}
		}
		for _, e := range s.neighbors(cur.p) {
			ng := cur.g + e.Cost
			if old, ok := vis[e.To]; ok {
				if old.closed || ng >= old.g {
					continue
				}
				old.g = ng
				old.f = ng + old.h
				old.parent = cur
				old.via = e.Path
				seq++
				old.seq = seq
				heap.Fix(open, old.openIdx)
				continue
			}
			seq++
			nn := &node{p: e.To, g: ng, h: g.heuristic(e.To, goal), parent: cur, via: e.Path, seq: seq}
			nn.f = ng + nn.h
			vis[e.To] = nn
			heap.Push(open, nn)
		}
	}

	if !partial && blocked == nil {
		return searchResult{}
	}
	return g.searchCells(start, goal, g.bounds, blocked, partial)
}

// connectStart 泛洪起点分块, 把起点连到块内所有可达的入口节点;
// 目标在同一分块时也直接连到目标.
func (s *abstractSearch) connectStart() {
	g := s.g
	ch := g.chunks[g.chunkIndexOf(s.start)]
	f := g.flood(s.start, ch.Bounds, s.blocked, false)
	defer f.release()

	for _, n := range ch.nodes {
		if n == s.start {
			continue
		}
		if d, ok := f.dist(n); ok {
			s.startEdges = append(s.startEdges, Edge{To: n, Cost: d, Path: f.pathTo(n)})
		}
	}
	if d, ok := f.dist(s.goal); ok && s.goal != s.start {
		s.startEdges = append(s.startEdges, Edge{To: s.goal, Cost: d, Path: f.pathTo(s.goal)})
	}
}

// connectGoal 在目标分块内反向泛洪, 块内能走到目标的入口节点各得到一条到目标的边.
func (s *abstractSearch) connectGoal() {
	g := s.g
	s.goalEdges = make(map[Point]Edge)
	if !g.passable(s.goal, s.blocked) {
		return
	}
	ch := g.chunks[g.chunkIndexOf(s.goal)]
	f := g.flood(s.goal, ch.Bounds, s.blocked, true)
	defer f.release()

	for _, n := range ch.nodes {
		if n == s.goal {
			continue
		}
		if d, ok := f.dist(n); ok {
			s.goalEdges[n] = Edge{To: s.goal, Cost: d, Path: f.pathTo(n)}
		}
	}
}

// neighbors 按固定顺序列出 p 的出边: 起点边, 跨块边, 缓存的块内边, 目标边.
func (s *abstractSearch) neighbors(p Point) []Edge {
	g := s.g
	var out []Edge
	if p == s.start {
		out = append(out, s.startEdges...)
	}
	if g.isNode(p) {
		for _, e := range g.sides[p] {
			other := e.Other(p)
			o := offset{other.X - p.X, other.Y - p.Y, other.Z - p.Z}
			if _, ok := g.canStep(p, o, s.blocked); !ok {
				continue
			}
			out = append(out, Edge{To: other, Cost: int(g.cellAt(other).Cost), Path: []Point{other}})
		}
		for _, e := range g.edgesOf(g.chunkIndexOf(p)).out[p] {
			if s.blocked != nil && slices.ContainsFunc(e.Path, s.blocked) {
				continue
			}
			out = append(out, e)
		}
	}
	if e, ok := s.goalEdges[p]; ok {
		out = append(out, e)
	}
	return out
}

// reconstructVia 从起点到 n 依次拼接各条边的格子序列.
func reconstructVia(n *node) []Point {
	var segs [][]Point
	for ; n != nil && n.parent != nil; n = n.parent {
		segs = append(segs, n.via)
	}
	var out []Point
	for i := len(segs) - 1; i >= 0; i-- {
		out = append(out, segs[i]...)
	}
	return out
}
