package nav

// smooth 对粗略路径做视线平滑: 若两个路径点之间的直线每一步都合法,
// 且直线代价不高于原路径段, 则用直线替换中间的路径点.
// 调用方需持有读锁.
func (g *Grid) smooth(start Point, cells []Point, blocked func(Point) bool) ([]Point, int) {
	if len(cells) < 2 {
		return cells, g.costOf(cells)
	}
	pts := make([]Point, 0, len(cells)+1)
	pts = append(pts, start)
	pts = append(pts, cells...)

	// prefix[i] 从 start 走到 pts[i] 的代价.
	prefix := make([]int, len(pts))
	for i := 1; i < len(pts); i++ {
		prefix[i] = prefix[i-1] + int(g.cellAt(pts[i]).Cost)
	}

	out := make([]Point, 0, len(cells))
	total := 0
	for i := 0; i < len(pts)-1; {
		bestK := i + 1
		var bestLine []Point
		bestCost := prefix[i+1] - prefix[i]
		for k := i + 2; k < len(pts); k++ {
			line, cost, ok := g.trace(pts[i], pts[k], blocked)
			if !ok {
				break
			}
			if cost <= prefix[k]-prefix[i] {
				bestK, bestLine, bestCost = k, line, cost
			}
		}
		if bestLine == nil {
			bestLine = pts[i+1 : i+2]
		}
		out = append(out, bestLine...)
		total += bestCost
		i = bestK
	}
	return out, total
}

func (g *Grid) costOf(cells []Point) int {
	c := 0
	for _, p := range cells {
		c += int(g.cellAt(p).Cost)
	}
	return c
}

// trace 沿直线从 a 走到 b, 返回不含 a 的格子序列及代价. 任一步不合法时失败.
// 斜向邻域用 Bresenham; 正交邻域每步只改变一个坐标轴.
func (g *Grid) trace(a, b Point, blocked func(Point) bool) ([]Point, int, bool) {
	n := g.settings.Neighborhood
	if a.Z != b.Z && !n.vertical() {
		return nil, 0, false
	}
	var steps []offset
	if n.diagonal() {
		steps = bresenham(a, b)
	} else {
		steps = manhattanWalk(a, b)
	}

	out := make([]Point, 0, len(steps))
	cost := 0
	cur := a
	for _, o := range steps {
		next, ok := g.canStep(cur, o, blocked)
		if !ok {
			return nil, 0, false
		}
		out = append(out, next)
		cost += int(g.cellAt(next).Cost)
		cur = next
	}
	return out, cost, true
}

// bresenham 返回从 a 到 b 的逐步偏移, 每步在每个轴上最多移动一格.
func bresenham(a, b Point) []offset {
	d := [3]int{b.X - a.X, b.Y - a.Y, b.Z - a.Z}
	n := max(abs(d[0]), abs(d[1]), abs(d[2]))
	out := make([]offset, 0, n)
	var prev [3]int
	for k := 1; k <= n; k++ {
		var cur [3]int
		for i := range d {
			cur[i] = roundDiv(d[i]*k, n)
		}
		out = append(out, offset{cur[0] - prev[0], cur[1] - prev[1], cur[2] - prev[2]})
		prev = cur
	}
	return out
}

// manhattanWalk 返回只沿单轴移动的逐步偏移, 每步选择相对进度最落后的轴.
func manhattanWalk(a, b Point) []offset {
	d := [3]int{b.X - a.X, b.Y - a.Y, b.Z - a.Z}
	total := abs(d[0]) + abs(d[1]) + abs(d[2])
	out := make([]offset, 0, total)
	var done [3]int
	for s := 0; s < total; s++ {
		pick := -1
		for i := range d {
			if done[i] == abs(d[i]) {
				continue
			}
			// (2*done[i]+1)/|d[i]| 最小者优先.
			if pick < 0 || (2*done[i]+1)*abs(d[pick]) < (2*done[pick]+1)*abs(d[i]) {
				pick = i
			}
		}
		var o [3]int
		o[pick] = sign(d[pick])
		done[pick]++
		out = append(out, offset{o[0], o[1], o[2]})
	}
	return out
}

// roundDiv 返回 num/den 四舍五入的结果, den > 0.
func roundDiv(num, den int) int {
	return floorDiv(2*num+den, 2*den)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
