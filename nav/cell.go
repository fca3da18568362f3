package nav

// DirMask 是格子允许的移出方向集合. 每一位对应一个三维偏移 (dx,dy,dz) ∈ {-1,0,1}³,
// 位序号 = (dz+1)*9 + (dy+1)*3 + (dx+1), 第 13 位 (0,0,0) 不使用.
type DirMask uint32

const (
	dirCenterBit = 13

	// AllDirs 允许全部 26 个方向.
	AllDirs DirMask = (1<<27 - 1) &^ (1 << dirCenterBit)
	// PlanarDirs 只允许同层移动, 用于禁止层间连通.
	PlanarDirs DirMask = 0x1FF << 9 &^ (1 << dirCenterBit)
)

func dirBit(dx, dy, dz int) uint {
	return uint((dz+1)*9 + (dy+1)*3 + (dx + 1))
}

// DirOf 返回单个方向的掩码.
func DirOf(dx, dy, dz int) DirMask {
	if dx == 0 && dy == 0 && dz == 0 {
		return 0
	}
	return 1 << dirBit(dx, dy, dz)
}

// Allows 判断是否允许沿 (dx,dy,dz) 移出.
func (m DirMask) Allows(dx, dy, dz int) bool {
	return m&(1<<dirBit(dx, dy, dz)) != 0
}

// With 打开一个方向.
func (m DirMask) With(dx, dy, dz int) DirMask {
	return m | DirOf(dx, dy, dz)
}

// Without 关闭一个方向.
func (m DirMask) Without(dx, dy, dz int) DirMask {
	return m &^ DirOf(dx, dy, dz)
}

// NavCell 一个格子的导航数据.
type NavCell struct {
	Walkable bool
	// Cost 进入该格子的代价, 可行走时 >= 1.
	Cost uint32
	// Dirs 允许从该格子移出的方向.
	Dirs DirMask
}

// Neighborhood 决定哪些偏移算作一步移动.
type Neighborhood uint8

const (
	// Ordinal 同层 8 方向移动, 默认值.
	Ordinal Neighborhood = iota
	// Cardinal 同层 4 方向移动.
	Cardinal
	// Cardinal3d 在 Cardinal 基础上允许竖直上下.
	Cardinal3d
	// Ordinal3d 允许全部 26 个偏移.
	Ordinal3d
)

func (n Neighborhood) String() string {
	switch n {
	case Ordinal:
		return "ordinal"
	case Cardinal:
		return "cardinal"
	case Cardinal3d:
		return "cardinal3d"
	case Ordinal3d:
		return "ordinal3d"
	default:
		return "unknown"
	}
}

// ParseNeighborhood 是 Neighborhood.String 的逆.
func ParseNeighborhood(s string) (Neighborhood, bool) {
	for _, n := range []Neighborhood{Ordinal, Cardinal, Cardinal3d, Ordinal3d} {
		if n.String() == s {
			return n, true
		}
	}
	return Ordinal, false
}

func (n Neighborhood) diagonal() bool {
	return n == Ordinal || n == Ordinal3d
}

func (n Neighborhood) vertical() bool {
	return n == Cardinal3d || n == Ordinal3d
}

// offset 一个移动方向.
type offset struct{ dx, dy, dz int }

// 各邻域的邻居顺序固定: 先正交, 再斜向, 最后竖直.
var (
	cardinalOffsets = []offset{
		{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0},
	}
	ordinalOffsets = append(append([]offset{}, cardinalOffsets...),
		offset{1, 1, 0}, offset{-1, 1, 0}, offset{1, -1, 0}, offset{-1, -1, 0},
	)
	cardinal3dOffsets = append(append([]offset{}, cardinalOffsets...),
		offset{0, 0, 1}, offset{0, 0, -1},
	)
	ordinal3dOffsets = buildOrdinal3d()
)

func buildOrdinal3d() []offset {
	out := append([]offset{}, ordinalOffsets...)
	out = append(out, offset{0, 0, 1}, offset{0, 0, -1})
	for dz := -1; dz <= 1; dz += 2 {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				out = append(out, offset{dx, dy, dz})
			}
		}
	}
	return out
}

func (n Neighborhood) offsets() []offset {
	switch n {
	case Cardinal:
		return cardinalOffsets
	case Cardinal3d:
		return cardinal3dOffsets
	case Ordinal3d:
		return ordinal3dOffsets
	default:
		return ordinalOffsets
	}
}

// distance 与邻域匹配的步数度量: 正交邻域用曼哈顿距离, 斜向邻域用切比雪夫距离.
// 平面邻域另加层差, 跨层时估计值仍有限.
func (n Neighborhood) distance(a, b Point) int {
	dx, dy, dz := abs(a.X-b.X), abs(a.Y-b.Y), abs(a.Z-b.Z)
	switch n {
	case Cardinal, Cardinal3d:
		return dx + dy + dz
	case Ordinal3d:
		return max(dx, dy, dz)
	default:
		return max(dx, dy) + dz
	}
}
