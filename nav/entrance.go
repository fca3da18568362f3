package nav

import (
	"slices"
	"sort"
)

// Entrance 相邻两个分块共享边界上一段连通的可通行格子对.
type Entrance struct {
	ID int
	// Chunks[0] 为坐标较小的分块.
	Chunks [2]int
	// Sides 代表格子对, Sides[i] 位于 Chunks[i].
	Sides [2]Point
	// Pairs 入口包含的全部格子对, 按扫描顺序.
	Pairs [][2]Point
}

// Other 返回 p 对面的代表格子.
func (e *Entrance) Other(p Point) Point {
	if e.Sides[0] == p {
		return e.Sides[1]
	}
	return e.Sides[0]
}

func (e *Entrance) samePairs(o *Entrance) bool {
	return slices.Equal(e.Pairs, o.Pairs)
}

type faceKey struct{ lo, hi int }

func mkFace(a, b int) faceKey {
	if a > b {
		a, b = b, a
	}
	return faceKey{lo: a, hi: b}
}

// faceAxis 返回两个相邻分块之间的跨越方向 (lo -> hi).
func (g *Grid) faceAxis(k faceKey) offset {
	ax, ay, az := g.chunkCoords(k.lo)
	bx, by, bz := g.chunkCoords(k.hi)
	return offset{bx - ax, by - ay, bz - az}
}

// scanFace 扫描分块 lo 与 hi 之间的共享面, 把连通的可通行格子对归并为入口.
// 面内按 4 连通划分, 2D 网格的面退化为一条线, 即最长连续段.
// 对 z 方向的面, u/v 为 x/y; 其余面的 v 为 z.
func (g *Grid) scanFace(k faceKey) []*Entrance {
	axis := g.faceAxis(k)
	if axis.dz != 0 && !g.settings.Neighborhood.vertical() {
		return nil
	}
	lo := g.chunks[k.lo].Bounds

	// 面上的 (u, v) 坐标映射到 lo 一侧的格子.
	var (
		uLen, vLen int
		at         func(u, v int) Point
	)
	switch {
	case axis.dx != 0:
		uLen, vLen = lo.Height(), lo.Depth()
		at = func(u, v int) Point { return Point{X: lo.Max.X - 1, Y: lo.Min.Y + u, Z: lo.Min.Z + v} }
	case axis.dy != 0:
		uLen, vLen = lo.Width(), lo.Depth()
		at = func(u, v int) Point { return Point{X: lo.Min.X + u, Y: lo.Max.Y - 1, Z: lo.Min.Z + v} }
	default:
		uLen, vLen = lo.Width(), lo.Height()
		at = func(u, v int) Point { return Point{X: lo.Min.X + u, Y: lo.Min.Y + v, Z: lo.Max.Z - 1} }
	}

	open := make([]bool, uLen*vLen)
	for v := 0; v < vLen; v++ {
		for u := 0; u < uLen; u++ {
			a := at(u, v)
			b := a.Add(axis.dx, axis.dy, axis.dz)
			open[v*uLen+u] = g.crossable(a, b, axis)
		}
	}

	// 平面邻域不能跨层移动, 面内只沿 u 方向连通.
	stepsV := g.settings.Neighborhood.vertical()
	var (
		out   []*Entrance
		seen  = make([]bool, len(open))
		queue []int
	)
	for start := range open {
		if !open[start] || seen[start] {
			continue
		}
		seen[start] = true
		queue = append(queue[:0], start)
		var pairs [][2]Point
		for head := 0; head < len(queue); head++ {
			i := queue[head]
			u, v := i%uLen, i/uLen
			a := at(u, v)
			pairs = append(pairs, [2]Point{a, a.Add(axis.dx, axis.dy, axis.dz)})
			for _, n := range [...][2]int{{u + 1, v}, {u - 1, v}, {u, v + 1}, {u, v - 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= uLen || n[1] >= vLen {
					continue
				}
				if n[1] != v && !stepsV {
					continue
				}
				j := n[1]*uLen + n[0]
				if open[j] && !seen[j] {
					seen[j] = true
					queue = append(queue, j)
				}
			}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i][0].less(pairs[j][0]) })
		rep := pairs[len(pairs)/2]
		out = append(out, &Entrance{
			Chunks: [2]int{k.lo, k.hi},
			Sides:  rep,
			Pairs:  pairs,
		})
	}
	return out
}

// crossable 两侧格子都可行走, 且至少一个方向允许跨越.
func (g *Grid) crossable(a, b Point, axis offset) bool {
	ca, cb := g.cellAt(a), g.cellAt(b)
	if !ca.Walkable || !cb.Walkable {
		return false
	}
	return ca.Dirs.Allows(axis.dx, axis.dy, axis.dz) || cb.Dirs.Allows(-axis.dx, -axis.dy, -axis.dz)
}

// rebuildFace 用新的扫描结果替换一个面上的入口. 格子对完全相同的入口沿用旧 ID.
func (g *Grid) rebuildFace(k faceKey) {
	old := g.faces[k]
	for _, e := range old {
		for _, s := range e.Sides {
			g.sides[s] = slices.DeleteFunc(g.sides[s], func(x *Entrance) bool { return x == e })
			if len(g.sides[s]) == 0 {
				delete(g.sides, s)
			}
		}
	}

	fresh := g.scanFace(k)
	for _, e := range fresh {
		e.ID = -1
		for _, o := range old {
			if o.samePairs(e) {
				e.ID = o.ID
				break
			}
		}
		if e.ID < 0 {
			e.ID = g.nextEntrance
			g.nextEntrance++
		}
		for _, s := range e.Sides {
			g.sides[s] = append(g.sides[s], e)
		}
	}
	if len(fresh) == 0 {
		delete(g.faces, k)
	} else {
		g.faces[k] = fresh
	}
	g.stats.entranceRebuilds.Add(1)
}

// collectNodes 汇总分块 c 所有面上位于 c 一侧的代表格子.
func (g *Grid) collectNodes(c int) []Point {
	var nodes []Point
	for _, n := range g.chunkNeighbors(c) {
		for _, e := range g.faces[mkFace(c, n)] {
			for i, s := range e.Sides {
				if e.Chunks[i] == c {
					nodes = append(nodes, s)
				}
			}
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].less(nodes[j]) })
	return slices.Compact(nodes)
}

// resolveLocked 处理脏分块: 只重建脏分块各个面上的入口.
// 脏分块的缓存一律失效; 相邻分块仅在入口节点集合变化时失效.
func (g *Grid) resolveLocked() {
	if len(g.dirty) == 0 {
		return
	}
	dirty := make([]int, 0, len(g.dirty))
	for c := range g.dirty {
		dirty = append(dirty, c)
	}
	slices.Sort(dirty)

	faces := make(map[faceKey]struct{})
	before := make(map[int][]Point)
	for _, c := range dirty {
		for _, n := range g.chunkNeighbors(c) {
			faces[mkFace(c, n)] = struct{}{}
			if _, isDirty := g.dirty[n]; !isDirty {
				before[n] = g.chunks[n].nodes
			}
		}
	}
	keys := make([]faceKey, 0, len(faces))
	for k := range faces {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lo != keys[j].lo {
			return keys[i].lo < keys[j].lo
		}
		return keys[i].hi < keys[j].hi
	})
	for _, k := range keys {
		g.rebuildFace(k)
	}

	for _, c := range dirty {
		g.chunks[c].nodes = g.collectNodes(c)
		g.invalidate(c)
	}
	touched := 0
	for n, prev := range before {
		g.chunks[n].nodes = g.collectNodes(n)
		if !slices.Equal(prev, g.chunks[n].nodes) {
			g.invalidate(n)
			touched++
		}
	}
	clear(g.dirty)

	g.log.Debug("entrances rebuilt",
		"dirty_chunks", len(dirty),
		"faces", len(keys),
		"neighbors_invalidated", touched,
		"entrances", g.entranceCountLocked(),
	)
}

func (g *Grid) entranceCountLocked() int {
	n := 0
	for _, es := range g.faces {
		n += len(es)
	}
	return n
}

// Entrances 返回当前全部入口的副本, 按 ID 排序.
func (g *Grid) Entrances() []Entrance {
	g.rlockSynced()
	defer g.mu.RUnlock()

	out := make([]Entrance, 0, g.entranceCountLocked())
	for _, es := range g.faces {
		for _, e := range es {
			cp := *e
			cp.Pairs = slices.Clone(e.Pairs)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// isNode 判断 p 是否为入口节点.
func (g *Grid) isNode(p Point) bool {
	return len(g.sides[p]) > 0
}
