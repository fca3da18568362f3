package nav

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestGrid(t testing.TB, s Settings) *Grid {
	t.Helper()
	g, err := NewGrid(s)
	require.NoError(t, err)
	return g
}

func block(t testing.TB, g *Grid, pts ...Point) {
	t.Helper()
	for _, p := range pts {
		require.NoError(t, g.SetNav(p, false, 0))
	}
}

// wallWithOpening 在 x 列上砌墙, 只留 opening.
func wallWithOpening(t testing.TB, g *Grid, x int, opening Point) {
	t.Helper()
	for y := 0; y < g.Bounds().Height(); y++ {
		if p := Pt(x, y); p != opening {
			block(t, g, p)
		}
	}
}

// randomGrid 随机阻挡约 density 比例的格子, 并给部分格子设置 1..4 的代价.
func randomGrid(t testing.TB, s Settings, seed uint64, density float64) *Grid {
	t.Helper()
	g := newTestGrid(t, s)
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := g.Bounds()
	for z := 0; z < b.Depth(); z++ {
		for y := 0; y < b.Height(); y++ {
			for x := 0; x < b.Width(); x++ {
				p := Pt3(x, y, z)
				switch f := r.Float64(); {
				case f < density:
					require.NoError(t, g.SetNav(p, false, 0))
				case f < density+0.15:
					require.NoError(t, g.SetNav(p, true, uint32(1+r.IntN(4))))
				}
			}
		}
	}
	return g
}

func walkableCells(g *Grid) []Point {
	var out []Point
	b := g.Bounds()
	for z := 0; z < b.Depth(); z++ {
		for y := 0; y < b.Height(); y++ {
			for x := 0; x < b.Width(); x++ {
				if p := Pt3(x, y, z); g.Walkable(p) {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// oracle 全图 Dijkstra (SPFA), 作为最短代价的参照.
func oracle(g *Grid, start Point) map[Point]int {
	g.rlockSynced()
	defer g.mu.RUnlock()

	dist := map[Point]int{start: 0}
	queue := []Point{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, o := range g.settings.Neighborhood.offsets() {
			next, ok := g.canStep(cur, o, nil)
			if !ok {
				continue
			}
			nd := dist[cur] + int(g.cellAt(next).Cost)
			if old, seen := dist[next]; !seen || nd < old {
				dist[next] = nd
				queue = append(queue, next)
			}
		}
	}
	return dist
}
