package agent

import (
	"runtime"

	"hpanav/logging"
)

// 默认上限.
const (
	DefaultAvoidanceRadius      = 3
	DefaultMaxAvoidanceAttempts = 3
	DefaultMaxRerouteAttempts   = 2
	DefaultMaxPathfindRetries   = 3
)

// Config 控制碰撞处理与重新规划的上限. 用 Option 修改默认值.
type Config struct {
	// AvoidanceRadius 局部绕行的搜索半径.
	AvoidanceRadius int
	// MaxAvoidanceAttempts 连续绕行失败多少次后进入 AvoidanceFailed.
	MaxAvoidanceAttempts int
	// MaxRerouteAttempts 全局重新规划失败多少次后进入 RerouteFailed.
	MaxRerouteAttempts int
	// MaxPathfindRetries PathfindingFailed 状态下最多重试的次数.
	MaxPathfindRetries int
	// AutoReroute 关闭时 AvoidanceFailed 为终态, 交给宿主处理.
	AutoReroute bool
	// Workers 每 tick 并行处理 agent 的 goroutine 数.
	Workers int

	Logger logging.Logger
}

// DefaultConfig 返回默认配置.
func DefaultConfig() Config {
	return Config{
		AvoidanceRadius:      DefaultAvoidanceRadius,
		MaxAvoidanceAttempts: DefaultMaxAvoidanceAttempts,
		MaxRerouteAttempts:   DefaultMaxRerouteAttempts,
		MaxPathfindRetries:   DefaultMaxPathfindRetries,
		AutoReroute:          true,
		Workers:              runtime.NumCPU(),
		Logger:               logging.NoOpLogger{},
	}
}

// Option 修改 Config.
type Option func(*Config)

// WithLogger 设置日志. nil 保持默认的 NoOpLogger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithWorkers 设置每 tick 的并行度, n <= 0 时忽略.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}

// WithAvoidanceRadius 设置局部绕行半径, r <= 0 时忽略.
func WithAvoidanceRadius(r int) Option {
	return func(c *Config) {
		if r > 0 {
			c.AvoidanceRadius = r
		}
	}
}

// WithMaxAvoidanceAttempts 设置进入 AvoidanceFailed 前的绕行次数.
func WithMaxAvoidanceAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAvoidanceAttempts = n
		}
	}
}

// WithMaxRerouteAttempts 设置进入 RerouteFailed 前的重新规划次数.
func WithMaxRerouteAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxRerouteAttempts = n
		}
	}
}

// WithMaxPathfindRetries 设置 PathfindingFailed 的重试次数, 0 表示不重试.
func WithMaxPathfindRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxPathfindRetries = n
		}
	}
}

// WithAutoReroute 控制 AvoidanceFailed 后是否自动全局重新规划.
func WithAutoReroute(on bool) Option {
	return func(c *Config) { c.AutoReroute = on }
}
