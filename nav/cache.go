package nav

import (
	"context"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Edge 抽象图上的一条边. Path 不含起点, 以 To 结尾.
type Edge struct {
	To   Point
	Cost int
	Path []Point
}

// chunkEdges 一个分块内所有入口节点两两之间的最短路径.
type chunkEdges struct {
	gen uint64
	out map[Point][]Edge
}

// edgesOf 返回分块 c 的块内缓存, 缓存过期时重建. 调用方需持有读锁.
// 同一分块的并发重建由 singleflight 合并, 后到者直接复用结果.
func (g *Grid) edgesOf(c int) *chunkEdges {
	gen := g.chunks[c].gen
	if v, ok := g.cache.Load(c); ok {
		if ce := v.(*chunkEdges); ce.gen == gen {
			g.stats.cacheHits.Add(1)
			return ce
		}
	}
	key := strconv.Itoa(c) + ":" + strconv.FormatUint(gen, 10)
	v, _, _ := g.flight.Do(key, func() (any, error) {
		if v, ok := g.cache.Load(c); ok {
			if ce := v.(*chunkEdges); ce.gen == gen {
				return ce, nil
			}
		}
		ce := g.buildChunkEdges(c, gen)
		g.cache.Store(c, ce)
		return ce, nil
	})
	return v.(*chunkEdges)
}

func (g *Grid) buildChunkEdges(c int, gen uint64) *chunkEdges {
	ch := g.chunks[c]
	ce := &chunkEdges{gen: gen, out: make(map[Point][]Edge, len(ch.nodes))}
	for _, from := range ch.nodes {
		f := g.flood(from, ch.Bounds, nil, false)
		for _, to := range ch.nodes {
			if to == from {
				continue
			}
			if d, ok := f.dist(to); ok {
				ce.out[from] = append(ce.out[from], Edge{To: to, Cost: d, Path: f.pathTo(to)})
			}
		}
		f.release()
	}
	g.stats.cacheBuilds.Add(1)
	g.log.Debug("chunk cache built", "chunk", c, "gen", gen, "nodes", len(ch.nodes))
	return ce
}

// invalidate 使分块缓存失效. 调用方需持有写锁.
func (g *Grid) invalidate(c int) {
	g.chunks[c].gen++
	g.cache.Delete(c)
}

// Warm 并行预计算全部分块缓存. workers <= 0 时使用 CPU 数.
func (g *Grid) Warm(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g.rlockSynced()
	defer g.mu.RUnlock()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range g.chunks {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			g.edgesOf(i)
			return nil
		})
	}
	return eg.Wait()
}

// ---- 块内 Dijkstra ----

const unreached = -1

type heapEntry struct {
	idx  int
	dist int
}

type minHeap []heapEntry

func (h *minHeap) push(e heapEntry) {
	*h = append(*h, e)
	i := len(*h) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if (*h)[parent].dist <= (*h)[i].dist {
			break
		}
		(*h)[parent], (*h)[i] = (*h)[i], (*h)[parent]
		i = parent
	}
}

func (h *minHeap) pop() heapEntry {
	old := *h
	n := len(old)
	e := old[0]
	old[0] = old[n-1]
	*h = old[:n-1]

	i := 0
	for {
		left := 2*i + 1
		if left >= len(*h) {
			break
		}
		smallest := left
		if right := left + 1; right < len(*h) && (*h)[right].dist < (*h)[left].dist {
			smallest = right
		}
		if (*h)[i].dist <= (*h)[smallest].dist {
			break
		}
		(*h)[i], (*h)[smallest] = (*h)[smallest], (*h)[i]
		i = smallest
	}
	return e
}

type floodBuf struct {
	dist   []int
	parent []int32
	heap   minHeap
}

var floodPool = sync.Pool{
	New: func() any { return &floodBuf{} },
}

// floodResult 一次限定在 bounds 内的 Dijkstra 结果.
// reverse 为 true 时距离表示从格子走到源点的代价, 父节点指向下一步.
type floodResult struct {
	bounds  Rect
	src     Point
	reverse bool
	buf     *floodBuf
}

func (f *floodResult) local(p Point) int {
	b := f.bounds
	return (p.X - b.Min.X) + (p.Y-b.Min.Y)*b.Width() + (p.Z-b.Min.Z)*b.Width()*b.Height()
}

func (f *floodResult) point(i int) Point {
	b := f.bounds
	w, h := b.Width(), b.Height()
	return Point{X: b.Min.X + i%w, Y: b.Min.Y + (i/w)%h, Z: b.Min.Z + i/(w*h)}
}

func (f *floodResult) dist(p Point) (int, bool) {
	if !f.bounds.Contains(p) {
		return 0, false
	}
	d := f.buf.dist[f.local(p)]
	return d, d != unreached
}

// pathTo 返回源点与 p 之间的格子序列 (不含起点一侧).
// 正向: src 之后到 p; 反向: p 之后到 src.
func (f *floodResult) pathTo(p Point) []Point {
	var out []Point
	i := f.local(p)
	if f.reverse {
		for f.buf.parent[i] >= 0 {
			i = int(f.buf.parent[i])
			out = append(out, f.point(i))
		}
		return out
	}
	for f.buf.parent[i] >= 0 {
		out = append(out, f.point(i))
		i = int(f.buf.parent[i])
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func (f *floodResult) release() {
	if cap(f.buf.dist) > 1<<20 {
		f.buf = &floodBuf{}
	}
	floodPool.Put(f.buf)
	f.buf = nil
}

// flood 从 src 出发在 bounds 内做 Dijkstra. 调用方需持有读锁, 并在用完后调用 release.
func (g *Grid) flood(src Point, bounds Rect, blocked func(Point) bool, reverse bool) *floodResult {
	buf := floodPool.Get().(*floodBuf)
	n := bounds.Volume()
	if cap(buf.dist) < n {
		buf.dist = make([]int, n)
		buf.parent = make([]int32, n)
	}
	buf.dist = buf.dist[:n]
	buf.parent = buf.parent[:n]
	for i := range buf.dist {
		buf.dist[i] = unreached
		buf.parent[i] = -1
	}
	buf.heap = buf.heap[:0]

	f := &floodResult{bounds: bounds, src: src, reverse: reverse, buf: buf}
	if !bounds.Contains(src) {
		return f
	}
	si := f.local(src)
	buf.dist[si] = 0
	buf.heap.push(heapEntry{idx: si, dist: 0})

	offsets := g.settings.Neighborhood.offsets()
	for len(buf.heap) > 0 {
		e := buf.heap.pop()
		if e.dist > buf.dist[e.idx] {
			continue
		}
		cur := f.point(e.idx)
		for _, o := range offsets {
			var next Point
			var step int
			if reverse {
				// cur 的前驱 u 满足 u + o == cur, 代价为进入 cur 的代价.
				next = cur.Add(-o.dx, -o.dy, -o.dz)
				if !bounds.Contains(next) || !g.passable(next, blocked) {
					continue
				}
				if _, ok := g.canStep(next, o, blocked); !ok {
					continue
				}
				step = int(g.cellAt(cur).Cost)
			} else {
				var ok bool
				next, ok = g.canStep(cur, o, blocked)
				if !ok || !bounds.Contains(next) {
					continue
				}
				step = int(g.cellAt(next).Cost)
			}
			ni := f.local(next)
			nd := e.dist + step
			if buf.dist[ni] == unreached || nd < buf.dist[ni] {
				buf.dist[ni] = nd
				buf.parent[ni] = int32(e.idx)
				buf.heap.push(heapEntry{idx: ni, dist: nd})
			}
		}
	}
	return f
}
