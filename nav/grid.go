package nav

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	"golang.org/x/sync/syncmap"

	"hpanav/logging"
)

// Chunk 固定大小的分块. 建网格时创建, 之后只会失效缓存, 不会改变尺寸.
type Chunk struct {
	Index  int
	Bounds Rect

	nodes []Point // 边界上的入口节点, 按扫描顺序排序
	gen   uint64  // 缓存代数, 失效时递增
}

// Nodes 返回分块的入口节点.
func (c *Chunk) Nodes() []Point {
	return slices.Clone(c.nodes)
}

// Stats 导航缓存统计.
type Stats struct {
	CacheHits        uint64
	CacheBuilds      uint64
	EntranceRebuilds uint64
	Searches         uint64
}

type counters struct {
	cacheHits        atomic.Uint64
	cacheBuilds      atomic.Uint64
	entranceRebuilds atomic.Uint64
	searches         atomic.Uint64
}

// Grid 网格导航数据, 以及由它派生的分块、入口图和块内路径缓存.
//
// Grid 是单写者结构: SetNav 持写锁; 所有查询先在写锁下处理脏分块,
// 再在读锁下搜索. 块内路径缓存是读多写少的共享数据, 读锁下按需重建.
type Grid struct {
	mu       sync.RWMutex
	settings Settings
	log      logging.Logger

	bounds  Rect
	cells   []NavCell
	minCost uint32

	chunksX, chunksY, chunksZ int
	chunks                    []*Chunk
	dirty                     map[int]struct{}

	faces        map[faceKey][]*Entrance
	sides        map[Point][]*Entrance
	nextEntrance int

	cache  syncmap.Map // chunk index -> *chunkEdges
	flight singleflight.Group
	stats  counters
}

// NewGrid 按配置创建网格. 所有分块初始为脏, 首次查询时建立入口.
func NewGrid(settings Settings) (*Grid, error) {
	s := settings.withDefaults()
	if err := s.validate(); err != nil {
		return nil, err
	}

	g := &Grid{
		settings: s,
		log:      s.Logger,
		bounds:   Rect{Max: Point{X: s.Width, Y: s.Height, Z: s.Depth}},
		cells:    make([]NavCell, s.Width*s.Height*s.Depth),
		minCost:  s.DefaultCost,
		chunksX:  (s.Width + s.ChunkSize - 1) / s.ChunkSize,
		chunksY:  (s.Height + s.ChunkSize - 1) / s.ChunkSize,
		chunksZ:  (s.Depth + s.ChunkDepth - 1) / s.ChunkDepth,
		dirty:    make(map[int]struct{}),
		faces:    make(map[faceKey][]*Entrance),
		sides:    make(map[Point][]*Entrance),
	}
	for i := range g.cells {
		g.cells[i] = NavCell{Walkable: !s.StartBlocked, Cost: s.DefaultCost, Dirs: AllDirs}
	}

	g.chunks = make([]*Chunk, g.chunksX*g.chunksY*g.chunksZ)
	for i := range g.chunks {
		cx, cy, cz := g.chunkCoords(i)
		lo := Point{X: cx * s.ChunkSize, Y: cy * s.ChunkSize, Z: cz * s.ChunkDepth}
		hi := Point{X: lo.X + s.ChunkSize, Y: lo.Y + s.ChunkSize, Z: lo.Z + s.ChunkDepth}
		g.chunks[i] = &Chunk{
			Index:  i,
			Bounds: Rect{Min: lo, Max: hi}.Intersect(g.bounds),
		}
		g.dirty[i] = struct{}{}
	}
	return g, nil
}

func (g *Grid) Settings() Settings { return g.settings }
func (g *Grid) Bounds() Rect       { return g.bounds }

// InBounds 判断 p 是否在网格内.
func (g *Grid) InBounds(p Point) bool {
	return g.bounds.Contains(p)
}

func (g *Grid) index(p Point) int {
	return p.X + p.Y*g.settings.Width + p.Z*g.settings.Width*g.settings.Height
}

// Cell 读取格子数据.
func (g *Grid) Cell(p Point) (NavCell, bool) {
	if !g.bounds.Contains(p) {
		return NavCell{}, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells[g.index(p)], true
}

// Walkable 判断格子是否可行走, 越界视为不可行走.
func (g *Grid) Walkable(p Point) bool {
	c, ok := g.Cell(p)
	return ok && c.Walkable
}

// SetNav 修改格子的可行走性与代价. cost 为 0 时保持原代价.
// 所属分块被标记为脏, 入口与缓存在下一次读取时重建.
func (g *Grid) SetNav(p Point, walkable bool, cost uint32) error {
	if !g.bounds.Contains(p) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	c := &g.cells[g.index(p)]
	if cost == 0 {
		cost = c.Cost
	}
	if c.Walkable == walkable && c.Cost == cost {
		return nil
	}
	c.Walkable = walkable
	c.Cost = cost
	if cost < g.minCost {
		g.minCost = cost
	}
	g.dirty[g.chunkIndexOf(p)] = struct{}{}
	return nil
}

// SetDirections 修改格子允许的移出方向.
func (g *Grid) SetDirections(p Point, dirs DirMask) error {
	if !g.bounds.Contains(p) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	c := &g.cells[g.index(p)]
	if c.Dirs == dirs {
		return nil
	}
	c.Dirs = dirs
	g.dirty[g.chunkIndexOf(p)] = struct{}{}
	return nil
}

// Dirty 是否存在尚未处理的修改.
func (g *Grid) Dirty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.dirty) > 0
}

// Sync 立即处理所有脏分块: 重建受影响的入口并使相关缓存失效.
// 查询会自动调用 Sync, 宿主可以在一帧的修改结束后显式调用以固定处理时机.
func (g *Grid) Sync() {
	g.mu.RLock()
	n := len(g.dirty)
	g.mu.RUnlock()
	if n == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolveLocked()
}

// rlockSynced 获取读锁, 并保证持锁期间没有未处理的修改.
func (g *Grid) rlockSynced() {
	for {
		g.Sync()
		g.mu.RLock()
		if len(g.dirty) == 0 {
			return
		}
		g.mu.RUnlock()
	}
}

// ---- 分块几何 ----

func (g *Grid) chunkCoords(i int) (cx, cy, cz int) {
	cx = i % g.chunksX
	cy = (i / g.chunksX) % g.chunksY
	cz = i / (g.chunksX * g.chunksY)
	return
}

func (g *Grid) chunkAt(cx, cy, cz int) (int, bool) {
	if cx < 0 || cy < 0 || cz < 0 || cx >= g.chunksX || cy >= g.chunksY || cz >= g.chunksZ {
		return 0, false
	}
	return cx + cy*g.chunksX + cz*g.chunksX*g.chunksY, true
}

func (g *Grid) chunkIndexOf(p Point) int {
	i, _ := g.chunkAt(p.X/g.settings.ChunkSize, p.Y/g.settings.ChunkSize, p.Z/g.settings.ChunkDepth)
	return i
}

// chunkNeighbors 返回与分块 i 共面的分块, 顺序固定: +x -x +y -y +z -z.
func (g *Grid) chunkNeighbors(i int) []int {
	cx, cy, cz := g.chunkCoords(i)
	out := make([]int, 0, 6)
	for _, o := range [...]offset{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}} {
		if n, ok := g.chunkAt(cx+o.dx, cy+o.dy, cz+o.dz); ok {
			out = append(out, n)
		}
	}
	return out
}

// ChunkOf 返回 p 所在分块的副本.
func (g *Grid) ChunkOf(p Point) (Chunk, bool) {
	if !g.bounds.Contains(p) {
		return Chunk{}, false
	}
	g.rlockSynced()
	defer g.mu.RUnlock()
	c := *g.chunks[g.chunkIndexOf(p)]
	c.nodes = slices.Clone(c.nodes)
	return c, true
}

// Chunks 返回全部分块的副本, 按索引排序.
func (g *Grid) Chunks() []Chunk {
	g.rlockSynced()
	defer g.mu.RUnlock()
	out := make([]Chunk, len(g.chunks))
	for i, c := range g.chunks {
		out[i] = *c
		out[i].nodes = slices.Clone(c.nodes)
	}
	return out
}

// ChunkCount 返回分块数量.
func (g *Grid) ChunkCount() int {
	return len(g.chunks)
}

// Stats 返回缓存统计快照.
func (g *Grid) Stats() Stats {
	return Stats{
		CacheHits:        g.stats.cacheHits.Load(),
		CacheBuilds:      g.stats.cacheBuilds.Load(),
		EntranceRebuilds: g.stats.entranceRebuilds.Load(),
		Searches:         g.stats.searches.Load(),
	}
}

// ---- 无锁读取, 调用方需持有锁 ----

func (g *Grid) cellAt(p Point) NavCell {
	return g.cells[g.index(p)]
}

func (g *Grid) passable(p Point, blocked func(Point) bool) bool {
	if !g.bounds.Contains(p) || !g.cells[g.index(p)].Walkable {
		return false
	}
	return blocked == nil || !blocked(p)
}

func (g *Grid) heuristic(a, b Point) int {
	return g.settings.Neighborhood.distance(a, b) * int(g.minCost)
}
