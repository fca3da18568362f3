package agent

// Status 是 agent 当前导航会话所处的状态. 每个 agent 同一时刻只有一个状态.
type Status uint8

const (
	// Idle 没有导航会话.
	Idle Status = iota
	// Following 沿路径前进.
	Following
	// Blocked 下一格被 Blocking agent 或动态阻挡占据.
	Blocked
	// LocalAvoidance 正在走半径内的绕行路径.
	LocalAvoidance
	// AvoidanceFailed 绕行尝试次数用尽. AutoReroute 打开时下一 tick 会全局重新规划.
	AvoidanceFailed
	// RerouteFailed 重新规划次数用尽, 需要宿主 ClearFailure 后才能再次寻路.
	RerouteFailed
	// PathfindingFailed 找不到路径, 或路径失效后重新规划失败. 每 tick 重试, 次数有限.
	PathfindingFailed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Following:
		return "following"
	case Blocked:
		return "blocked"
	case LocalAvoidance:
		return "local_avoidance"
	case AvoidanceFailed:
		return "avoidance_failed"
	case RerouteFailed:
		return "reroute_failed"
	case PathfindingFailed:
		return "pathfinding_failed"
	default:
		return "unknown"
	}
}

// Failed 是否处于失败状态.
func (s Status) Failed() bool {
	return s == AvoidanceFailed || s == RerouteFailed || s == PathfindingFailed
}
