package nav

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allModes = []Mode{Refined, Coarse, AStar}

func TestFindPathOpenGrid(t *testing.T) {
	tests := []struct {
		n    Neighborhood
		want int
	}{
		{Ordinal, 9},
		{Cardinal, 18},
	}
	for _, tt := range tests {
		t.Run(tt.n.String(), func(t *testing.T) {
			g := newTestGrid(t, Settings{Width: 10, Height: 10, ChunkSize: 5, Neighborhood: tt.n})

			p, err := g.FindPath(Pt(0, 0), Pt(9, 9), AStar, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Len())
			assert.Equal(t, tt.want, p.Cost())
			assert.False(t, p.Partial())
			end, ok := p.End()
			require.True(t, ok)
			assert.Equal(t, Pt(9, 9), end)

			for _, m := range []Mode{Refined, Coarse} {
				hp, err := g.FindPath(Pt(0, 0), Pt(9, 9), m, false)
				require.NoError(t, err, m)
				assert.GreaterOrEqual(t, hp.Cost(), tt.want, m)
				cost, ok := g.PathCost(Pt(0, 0), hp.Cells())
				require.True(t, ok, m)
				assert.Equal(t, hp.Cost(), cost, m)
			}
		})
	}
}

func TestFindPathWallOpening(t *testing.T) {
	g := newTestGrid(t, Settings{Width: 10, Height: 10, ChunkSize: 5})
	wallWithOpening(t, g, 5, Pt(5, 5))

	for _, m := range allModes {
		p, err := g.FindPath(Pt(0, 0), Pt(9, 9), m, false)
		require.NoError(t, err, m)
		assert.True(t, p.Contains(Pt(5, 5)), "%v path %v", m, p.Cells())
		cost, ok := g.PathCost(Pt(0, 0), p.Cells())
		require.True(t, ok, m)
		assert.Equal(t, p.Cost(), cost, m)
	}
}

func TestFindPathBlockedOpening(t *testing.T) {
	g := newTestGrid(t, Settings{Width: 10, Height: 10, ChunkSize: 5})
	wallWithOpening(t, g, 5, Pt(5, 5))
	blocked := WithBlocked(func(p Point) bool { return p == Pt(5, 5) })

	for _, m := range allModes {
		_, err := g.FindPath(Pt(0, 0), Pt(9, 9), m, false, blocked)
		assert.ErrorIs(t, err, ErrNoPathFound, m)
	}
}

func TestFindPathMatchesOracle(t *testing.T) {
	for _, n := range []Neighborhood{Ordinal, Cardinal} {
		for seed := uint64(1); seed <= 4; seed++ {
			t.Run(fmt.Sprintf("%v/seed%d", n, seed), func(t *testing.T) {
				s := Settings{Width: 24, Height: 20, ChunkSize: 6, Neighborhood: n}
				g := randomGrid(t, s, seed, 0.25)
				cells := walkableCells(g)
				require.NotEmpty(t, cells)

				for i := 0; i < 12; i++ {
					start := cells[(i*37)%len(cells)]
					goal := cells[(i*91+13)%len(cells)]
					dist := oracle(g, start)
					want, reachable := dist[goal]

					for _, m := range allModes {
						p, err := g.FindPath(start, goal, m, false)
						if !reachable {
							assert.ErrorIs(t, err, ErrNoPathFound, "%v %v->%v", m, start, goal)
							continue
						}
						require.NoError(t, err, "%v %v->%v", m, start, goal)
						cost, ok := g.PathCost(start, p.Cells())
						require.True(t, ok, "%v %v->%v: illegal path %v", m, start, goal, p.Cells())
						assert.Equal(t, p.Cost(), cost)
						if m == AStar {
							assert.Equal(t, want, p.Cost(), "%v->%v", start, goal)
						} else {
							assert.GreaterOrEqual(t, p.Cost(), want)
							// 每次跨块最多绕到入口中点再回来.
							assert.LessOrEqual(t, p.Cost(), want*(1+2*(s.ChunkSize/2+1)*4))
						}
						if start != goal {
							end, _ := p.End()
							assert.Equal(t, goal, end)
						}
					}
				}
			})
		}
	}
}

func TestRefinedNeverCostlierThanCoarse(t *testing.T) {
	g := randomGrid(t, Settings{Width: 32, Height: 32, ChunkSize: 8}, 7, 0.2)
	cells := walkableCells(g)
	for i := 0; i < 20; i++ {
		start, goal := cells[(i*53)%len(cells)], cells[(i*29+101)%len(cells)]
		coarse, err := g.FindPath(start, goal, Coarse, false)
		if err != nil {
			require.ErrorIs(t, err, ErrNoPathFound)
			continue
		}
		refined, err := g.FindPath(start, goal, Refined, false)
		require.NoError(t, err)
		assert.LessOrEqual(t, refined.Cost(), coarse.Cost())
		assert.LessOrEqual(t, refined.Len(), coarse.Len())
	}
}

func TestFindPathIdempotent(t *testing.T) {
	g := randomGrid(t, Settings{Width: 30, Height: 30, ChunkSize: 10}, 3, 0.2)
	cells := walkableCells(g)
	start, goal := cells[0], cells[len(cells)-1]

	for _, m := range allModes {
		first, err1 := g.FindPath(start, goal, m, true)
		second, err2 := g.FindPath(start, goal, m, true)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, first.Cost(), second.Cost(), m)
		assert.Equal(t, first.Cells(), second.Cells(), m)
	}
}

func TestFindPathCacheCoherence(t *testing.T) {
	g := newTestGrid(t, Settings{Width: 20, Height: 20, ChunkSize: 5})
	start, goal := Pt(0, 10), Pt(19, 10)

	before, err := g.FindPath(start, goal, Coarse, false)
	require.NoError(t, err)
	mid := before.At(before.Len() / 2)
	require.NotEqual(t, goal, mid)

	block(t, g, mid)
	assert.True(t, g.Dirty())

	for _, m := range allModes {
		after, err := g.FindPath(start, goal, m, false)
		require.NoError(t, err, m)
		assert.False(t, after.Contains(mid), m)
		_, ok := g.PathCost(start, after.Cells())
		assert.True(t, ok, m)
	}
	assert.False(t, g.Dirty())
}

func TestFindPathPartial(t *testing.T) {
	g := newTestGrid(t, Settings{Width: 10, Height: 10, ChunkSize: 5})
	goal := Pt(9, 9)
	block(t, g, Pt(8, 8), Pt(8, 9), Pt(9, 8))
	start := Pt(0, 0)
	startH := Ordinal.distance(start, goal)

	for _, m := range allModes {
		_, err := g.FindPath(start, goal, m, false)
		assert.ErrorIs(t, err, ErrNoPathFound, m)

		p, err := g.FindPath(start, goal, m, true)
		require.NoError(t, err, m)
		assert.True(t, p.Partial(), m)
		end, ok := p.End()
		require.True(t, ok, m)
		assert.Less(t, Ordinal.distance(end, goal), startH, m)
		if m == AStar {
			assert.Equal(t, 2, Ordinal.distance(end, goal))
		}
		_, ok = g.PathCost(start, p.Cells())
		assert.True(t, ok, m)
	}
}

func TestFindPathPartialCloserCellInNeighborChunk(t *testing.T) {
	// 目标被围在右下角; 起点分块的入口节点都不比起点更近,
	// 更近的格子在左侧相邻分块内, 要绕过 (5,10) 才能到达.
	g := newTestGrid(t, Settings{Width: 15, Height: 15, ChunkSize: 5})
	for x := 5; x < 15; x++ {
		block(t, g, Pt(x, 10))
	}
	for y := 11; y < 15; y++ {
		block(t, g, Pt(5, y))
	}
	start, goal := Pt(7, 9), Pt(7, 14)
	require.Equal(t, 5, Ordinal.distance(start, goal))

	ref, err := g.FindPath(start, goal, AStar, true)
	require.NoError(t, err)
	refEnd, ok := ref.End()
	require.True(t, ok)
	require.Equal(t, 3, Ordinal.distance(refEnd, goal))

	for _, m := range allModes {
		p, err := g.FindPath(start, goal, m, true)
		require.NoError(t, err, m)
		assert.True(t, p.Partial(), m)
		require.False(t, p.Empty(), m)
		end, _ := p.End()
		assert.Equal(t, refEnd, end, m)
		assert.Equal(t, 3, Ordinal.distance(end, goal), m)
		cost, ok := g.PathCost(start, p.Cells())
		assert.True(t, ok, m)
		assert.Equal(t, p.Cost(), cost, m)
	}

	coarse, err := g.FindPath(start, goal, Coarse, true)
	require.NoError(t, err)
	assert.Equal(t, ref.Cells(), coarse.Cells())
}

func TestFindPathPartialStartClosest(t *testing.T) {
	g := newTestGrid(t, Settings{Width: 10, Height: 10, ChunkSize: 5})
	start := Pt(1, 1)
	for _, o := range ordinalOffsets {
		block(t, g, start.Add(o.dx, o.dy, 0))
	}

	for _, m := range allModes {
		p, err := g.FindPath(start, Pt(8, 8), m, true)
		require.NoError(t, err, m)
		assert.True(t, p.Empty(), m)
		assert.True(t, p.Partial(), m)
	}
}

func TestFindPathErrors(t *testing.T) {
	g := newTestGrid(t, Settings{Width: 8, Height: 8, ChunkSize: 4})

	_, err := g.FindPath(Pt(-1, 0), Pt(3, 3), AStar, false)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = g.FindPath(Pt(0, 0), Pt(8, 3), Refined, true)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	p, err := g.FindPath(Pt(2, 2), Pt(2, 2), Coarse, false)
	require.NoError(t, err)
	assert.True(t, p.Empty())
	assert.False(t, p.Partial())
}

func TestFindPathLayers(t *testing.T) {
	s := Settings{Width: 6, Height: 6, Depth: 3, ChunkSize: 3, Neighborhood: Cardinal3d}
	g := newTestGrid(t, s)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if x != 5 || y != 5 {
				block(t, g, Pt3(x, y, 1))
			}
		}
	}
	start, goal := Pt3(0, 0, 0), Pt3(0, 0, 2)

	for _, m := range allModes {
		p, err := g.FindPath(start, goal, m, false)
		require.NoError(t, err, m)
		assert.True(t, p.Contains(Pt3(5, 5, 1)), m)
		assert.Equal(t, 22, p.Cost(), m)
	}

	require.NoError(t, g.SetDirections(Pt3(5, 5, 0), PlanarDirs))
	for _, m := range allModes {
		_, err := g.FindPath(start, goal, m, false)
		assert.ErrorIs(t, err, ErrNoPathFound, m)
	}
}

func TestFindPathCornerCutting(t *testing.T) {
	// 对角两格之间被两侧阻挡夹住.
	s := Settings{Width: 4, Height: 4, ChunkSize: 2}
	for _, cut := range []bool{false, true} {
		s.AllowCornerCutting = cut
		g := newTestGrid(t, s)
		block(t, g, Pt(1, 0), Pt(0, 1), Pt(2, 0), Pt(0, 2))

		p, err := g.FindPath(Pt(0, 0), Pt(1, 1), AStar, false)
		if cut {
			require.NoError(t, err)
			assert.Equal(t, 1, p.Len())
		} else {
			assert.ErrorIs(t, err, ErrNoPathFound)
		}
	}
}

func TestLocalPath(t *testing.T) {
	g := newTestGrid(t, Settings{Width: 20, Height: 20, ChunkSize: 5})
	block(t, g, Pt(5, 4), Pt(5, 5), Pt(5, 6))

	p, err := g.LocalPath(Pt(4, 5), Pt(6, 5), 3)
	require.NoError(t, err)
	area := Around(Pt(4, 5), 3)
	for _, c := range p.Cells() {
		assert.True(t, area.Contains(c), c)
	}
	end, _ := p.End()
	assert.Equal(t, Pt(6, 5), end)

	_, err = g.LocalPath(Pt(4, 5), Pt(12, 5), 3)
	assert.ErrorIs(t, err, ErrNoPathFound)

	// 半径内绕不过去.
	block(t, g, Pt(5, 2), Pt(5, 3), Pt(5, 7), Pt(5, 8))
	_, err = g.LocalPath(Pt(4, 5), Pt(6, 5), 3)
	assert.ErrorIs(t, err, ErrNoPathFound)
}

func TestPathCostRejectsIllegalSteps(t *testing.T) {
	g := newTestGrid(t, Settings{Width: 8, Height: 8, ChunkSize: 4, Neighborhood: Cardinal})
	block(t, g, Pt(2, 0))

	_, ok := g.PathCost(Pt(0, 0), []Point{Pt(1, 1)})
	assert.False(t, ok, "diagonal step in cardinal grid")
	_, ok = g.PathCost(Pt(0, 0), []Point{Pt(1, 0), Pt(2, 0)})
	assert.False(t, ok, "blocked cell")
	_, ok = g.PathCost(Pt(0, 0), []Point{Pt(2, 1)})
	assert.False(t, ok, "jump")
	cost, ok := g.PathCost(Pt(0, 0), []Point{Pt(0, 1), Pt(1, 1)})
	assert.True(t, ok)
	assert.Equal(t, 2, cost)
}

func BenchmarkFindPath(b *testing.B) {
	g := randomGrid(b, Settings{Width: 256, Height: 256, ChunkSize: 16}, 11, 0.2)
	cells := walkableCells(g)
	start, goal := cells[0], cells[len(cells)-1]
	for _, m := range allModes {
		b.Run(m.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = g.FindPath(start, goal, m, true)
			}
		})
	}
}
