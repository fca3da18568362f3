package nav

import (
	"errors"
	"fmt"

	"hpanav/logging"
)

const (
	// DefaultChunkSize 默认分块边长.
	DefaultChunkSize = 16
	// DefaultChunkDepth 默认分块层数.
	DefaultChunkDepth = 1
	// DefaultCost 默认格子代价.
	DefaultCost = 1
)

var (
	// ErrNoPathFound start 与 goal 不连通, 且未请求 partial 或不存在更近的可达点.
	ErrNoPathFound = errors.New("nav: no path found")
	// ErrOutOfBounds 坐标不在网格内.
	ErrOutOfBounds = errors.New("nav: point out of bounds")
	// ErrInvalidSettings 网格配置非法.
	ErrInvalidSettings = errors.New("nav: invalid settings")
)

// Settings 网格配置. 零值字段使用默认值.
type Settings struct {
	// Width, Height, Depth 网格尺寸, Depth 为层数（2D 网格为 1）.
	Width, Height, Depth int

	// ChunkSize 分块在 x/y 方向的边长, 默认 DefaultChunkSize.
	ChunkSize int
	// ChunkDepth 分块在 z 方向的层数, 默认 DefaultChunkDepth.
	ChunkDepth int

	// Neighborhood 移动模型, 默认 Ordinal.
	Neighborhood Neighborhood
	// AllowCornerCutting 允许斜向移动擦过阻挡角.
	AllowCornerCutting bool

	// DefaultCost 初始格子代价, 默认 DefaultCost.
	DefaultCost uint32
	// StartBlocked 初始所有格子不可行走.
	StartBlocked bool

	// Logger 默认 logging.NoOpLogger.
	Logger logging.Logger
}

func (s Settings) withDefaults() Settings {
	if s.Depth == 0 {
		s.Depth = 1
	}
	if s.ChunkSize == 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.ChunkDepth == 0 {
		s.ChunkDepth = DefaultChunkDepth
	}
	if s.DefaultCost == 0 {
		s.DefaultCost = DefaultCost
	}
	if s.Logger == nil {
		s.Logger = logging.NoOpLogger{}
	}
	return s
}

func (s Settings) validate() error {
	switch {
	case s.Width <= 0 || s.Height <= 0 || s.Depth <= 0:
		return fmt.Errorf("%w: dimensions %dx%dx%d", ErrInvalidSettings, s.Width, s.Height, s.Depth)
	case s.ChunkSize <= 0 || s.ChunkDepth <= 0:
		return fmt.Errorf("%w: chunk %dx%d", ErrInvalidSettings, s.ChunkSize, s.ChunkDepth)
	case s.Neighborhood > Ordinal3d:
		return fmt.Errorf("%w: neighborhood %d", ErrInvalidSettings, s.Neighborhood)
	}
	return nil
}
