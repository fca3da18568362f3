package agent

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"hpanav/logging"
	"hpanav/nav"
)

var (
	// ErrPathInvalidated 下一格变为不可行走, 且重新规划失败.
	ErrPathInvalidated = errors.New("agent: path invalidated")
	// ErrAvoidanceFailed 局部绕行尝试次数用尽.
	ErrAvoidanceFailed = errors.New("agent: local avoidance failed")
	// ErrRerouteFailed 全局重新规划次数用尽.
	ErrRerouteFailed = errors.New("agent: reroute failed")
	// ErrUnknownAgent agent ID 不存在.
	ErrUnknownAgent = errors.New("agent: unknown agent")
	// ErrUnknownGrid GridID 不存在.
	ErrUnknownGrid = errors.New("agent: unknown grid")
)

// GridID 是 World 内网格的索引.
type GridID int

type gridEntry struct {
	grid   *nav.Grid
	agents map[uuid.UUID]struct{}
}

// session 一次 RequestPath 建立的导航会话.
type session struct {
	goal    nav.Point
	mode    nav.Mode
	partial bool

	path []nav.Point
	idx  int // path[idx] 是下一步

	status          Status
	avoidAttempts   int
	rerouteAttempts int
	retries         int
	err             error
}

type agentState struct {
	id       uuid.UUID
	grid     GridID
	pos      nav.Point
	blocking bool

	sess    *session
	pending bool // 已发出下一步, 宿主尚未 ClearNextStep
	next    nav.Point
}

// World 是网格与 agent 的容器. 网格的 agent 集合与 agent 的网格索引
// 只通过 attach/detach 修改, 两者始终一致.
type World struct {
	mu     sync.RWMutex
	cfg    Config
	log    logging.Logger
	grids  []*gridEntry
	agents map[uuid.UUID]*agentState
	tick   uint64
}

// NewWorld 创建空的 World.
func NewWorld(opts ...Option) *World {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &World{
		cfg:    cfg,
		log:    cfg.Logger,
		agents: make(map[uuid.UUID]*agentState),
	}
}

// Config 返回生效的配置.
func (w *World) Config() Config { return w.cfg }

// AddGrid 注册一个网格.
func (w *World) AddGrid(g *nav.Grid) GridID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grids = append(w.grids, &gridEntry{grid: g, agents: make(map[uuid.UUID]struct{})})
	return GridID(len(w.grids) - 1)
}

// Grid 返回 id 对应的网格.
func (w *World) Grid(id GridID) (*nav.Grid, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ge, err := w.gridLocked(id)
	if err != nil {
		return nil, err
	}
	return ge.grid, nil
}

func (w *World) gridLocked(id GridID) (*gridEntry, error) {
	if id < 0 || int(id) >= len(w.grids) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGrid, id)
	}
	return w.grids[id], nil
}

func (w *World) agentLocked(id uuid.UUID) (*agentState, error) {
	a, ok := w.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return a, nil
}

func (w *World) attach(a *agentState, gid GridID) {
	w.agents[a.id] = a
	a.grid = gid
	w.grids[gid].agents[a.id] = struct{}{}
}

func (w *World) detach(a *agentState) {
	delete(w.grids[a.grid].agents, a.id)
	delete(w.agents, a.id)
}

// AddAgent 在网格上放置一个 agent. blocking 的 agent 会被其他 agent 视为动态阻挡.
func (w *World) AddAgent(gid GridID, pos nav.Point, blocking bool) (uuid.UUID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ge, err := w.gridLocked(gid)
	if err != nil {
		return uuid.Nil, err
	}
	if !ge.grid.InBounds(pos) {
		return uuid.Nil, fmt.Errorf("add agent: %w: %v", nav.ErrOutOfBounds, pos)
	}
	a := &agentState{id: uuid.New(), pos: pos, blocking: blocking}
	w.attach(a, gid)
	return a.id, nil
}

// RemoveAgent 删除 agent 及其会话.
func (w *World) RemoveAgent(id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return err
	}
	w.detach(a)
	return nil
}

// MoveToGrid 把 agent 移到另一个网格, 当前会话被丢弃.
func (w *World) MoveToGrid(id uuid.UUID, gid GridID, pos nav.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return err
	}
	ge, err := w.gridLocked(gid)
	if err != nil {
		return err
	}
	if !ge.grid.InBounds(pos) {
		return fmt.Errorf("move agent: %w: %v", nav.ErrOutOfBounds, pos)
	}
	w.detach(a)
	a.pos = pos
	a.sess = nil
	a.pending = false
	w.attach(a, gid)
	return nil
}

// Agents 返回网格上的 agent, 按 ID 排序.
func (w *World) Agents(gid GridID) ([]uuid.UUID, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ge, err := w.gridLocked(gid)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(ge.agents))
	for id := range ge.agents {
		out = append(out, id)
	}
	slices.SortFunc(out, compareIDs)
	return out, nil
}

// GridOf 返回 agent 所在网格.
func (w *World) GridOf(id uuid.UUID) (GridID, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return 0, err
	}
	return a.grid, nil
}

// Position 返回 World 记录的 agent 位置.
func (w *World) Position(id uuid.UUID) (nav.Point, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return nav.Point{}, err
	}
	return a.pos, nil
}

// SetPosition 由宿主在移动 agent 后调用.
func (w *World) SetPosition(id uuid.UUID, p nav.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return err
	}
	if !w.grids[a.grid].grid.InBounds(p) {
		return fmt.Errorf("set position: %w: %v", nav.ErrOutOfBounds, p)
	}
	a.pos = p
	return nil
}

// RequestPath 为 agent 规划到 goal 的路径并建立会话, 替换已有会话.
// 找不到路径时会话进入 PathfindingFailed, 之后的 tick 会有限次重试.
// 处于 RerouteFailed 时, 同一 goal 需要先 ClearFailure; 新的 goal 直接替换失败的会话.
func (w *World) RequestPath(id uuid.UUID, goal nav.Point, mode nav.Mode, partial bool) (nav.Path, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return nav.Path{}, err
	}
	if s := a.sess; s != nil && s.status == RerouteFailed && s.goal == goal {
		return nav.Path{}, fmt.Errorf("request path %s to %v: %w", id, goal, ErrRerouteFailed)
	}
	g := w.grids[a.grid].grid
	p, err := g.FindPath(a.pos, goal, mode, partial)
	if err != nil && !errors.Is(err, nav.ErrNoPathFound) {
		return nav.Path{}, err
	}

	s := &session{goal: goal, mode: mode, partial: partial, status: Following}
	if err != nil {
		s.status = PathfindingFailed
		s.err = err
	} else {
		s.path = p.Cells()
	}
	a.sess = s
	a.pending = false
	w.log.Debug("path requested", "agent", id, "goal", goal, "mode", mode, "status", s.status, "len", len(s.path))
	return p, err
}

// CancelPath 丢弃 agent 的会话.
func (w *World) CancelPath(id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return err
	}
	a.sess = nil
	a.pending = false
	return nil
}

// ClearNextStep 确认已处理上一次发出的下一步. 确认前不会发出新的一步.
func (w *World) ClearNextStep(id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return err
	}
	a.pending = false
	return nil
}

// NextStep 返回尚未确认的下一步.
func (w *World) NextStep(id uuid.UUID) (nav.Point, bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return nav.Point{}, false, err
	}
	return a.next, a.pending, nil
}

// ClearFailure 清除失败状态并丢弃会话, 之后可以重新 RequestPath.
// 不处于失败状态时不做任何事.
func (w *World) ClearFailure(id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return err
	}
	if a.sess != nil && a.sess.status.Failed() {
		a.sess = nil
		a.pending = false
	}
	return nil
}

// Status 返回 agent 当前状态.
func (w *World) Status(id uuid.UUID) (Status, error) {
	info, err := w.Info(id)
	return info.Status, err
}

// Info 一个 agent 的只读快照.
type Info struct {
	ID       uuid.UUID
	Grid     GridID
	Position nav.Point
	Blocking bool
	Status   Status
	Goal     nav.Point
	// Err 最近一次失败的原因, 非失败状态时为 nil.
	Err     error
	Next    nav.Point
	Pending bool
}

// Info 返回 agent 的快照.
func (w *World) Info(id uuid.UUID) (Info, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		ID:       a.id,
		Grid:     a.grid,
		Position: a.pos,
		Blocking: a.blocking,
		Next:     a.next,
		Pending:  a.pending,
	}
	if s := a.sess; s != nil {
		info.Status = s.status
		info.Goal = s.goal
		info.Err = s.err
	}
	return info, nil
}

// RemainingPath 返回会话中尚未走过的路径.
func (w *World) RemainingPath(id uuid.UUID) ([]nav.Point, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return nil, err
	}
	if a.sess == nil {
		return nil, nil
	}
	return slices.Clone(a.sess.path[a.sess.idx:]), nil
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
