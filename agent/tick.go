package agent

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hpanav/nav"
)

// Snapshot 宿主在一个 tick 开始时提供的世界状态.
type Snapshot struct {
	// Positions 覆盖 agent 位置, 未列出的 agent 保持原位置.
	Positions map[uuid.UUID]nav.Point
	// Blockers 各网格上不属于 World 的动态阻挡.
	Blockers map[GridID][]nav.Point
}

// Update 一个 agent 在本 tick 的处理结果.
type Update struct {
	Agent  uuid.UUID
	Status Status
	// Next 宿主应把 agent 移到的下一格, HasNext 为 false 时无效.
	Next    nav.Point
	HasNext bool
	// Arrived 路径走完, 会话结束. Partial 表示终点不是 goal.
	Arrived bool
	Partial bool
	Err     error
}

// blockerSet 记录每个格子上的阻挡数量. tick 开始时建立, 之后只读.
type blockerSet map[nav.Point]int

// except 返回把 a 自身排除在外的阻挡判断.
func (bs blockerSet) except(a *agentState) func(nav.Point) bool {
	return func(p nav.Point) bool {
		n := bs[p]
		if a.blocking && p == a.pos {
			n--
		}
		return n > 0
	}
}

// AdvanceTick 推进一个 tick: 应用位置, 建立阻挡快照, 然后并行处理每个有会话的 agent.
// 每个 agent 本 tick 最多做一次碰撞检查和一次规划. 返回有变化的 agent 的 Update, 按 ID 排序.
func (w *World) AdvanceTick(ctx context.Context, snap Snapshot) ([]Update, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick++

	for id, p := range snap.Positions {
		if a, ok := w.agents[id]; ok && w.grids[a.grid].grid.InBounds(p) {
			a.pos = p
		}
	}

	blockers := make([]blockerSet, len(w.grids))
	for i, ge := range w.grids {
		ge.grid.Sync()
		blockers[i] = make(blockerSet)
	}
	for gid, pts := range snap.Blockers {
		if gid < 0 || int(gid) >= len(blockers) {
			return nil, fmt.Errorf("tick %d: %w: %d", w.tick, ErrUnknownGrid, gid)
		}
		for _, p := range pts {
			blockers[gid][p]++
		}
	}

	active := make([]*agentState, 0, len(w.agents))
	for _, a := range w.agents {
		if a.blocking {
			blockers[a.grid][a.pos]++
		}
		if a.sess != nil {
			active = append(active, a)
		}
	}
	slices.SortFunc(active, func(a, b *agentState) int { return compareIDs(a.id, b.id) })

	updates := make([]Update, len(active))
	emitted := make([]bool, len(active))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(w.cfg.Workers, 1))
	for i, a := range active {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			updates[i], emitted[i] = w.step(a, w.grids[a.grid].grid, blockers[a.grid].except(a))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("tick %d: %w", w.tick, err)
	}

	out := updates[:0]
	for i, u := range updates {
		if emitted[i] {
			out = append(out, u)
		}
	}
	return out, nil
}

// step 处理一个 agent. 只修改 a 自身.
func (w *World) step(a *agentState, g *nav.Grid, blocked func(nav.Point) bool) (Update, bool) {
	s := a.sess
	if a.pending || w.terminal(s) {
		return Update{}, false
	}
	u := Update{Agent: a.id}

	if s.idx < len(s.path) && a.pos == s.path[s.idx] {
		s.idx++
	}

	planned := false
	switch s.status {
	case PathfindingFailed:
		planned = true
		if err := w.replan(a, g, blocked); err != nil {
			s.retries++
			if s.err == nil {
				s.err = err
			}
			if s.retries >= w.cfg.MaxPathfindRetries {
				w.log.Warn("pathfinding retries exhausted", "agent", a.id, "goal", s.goal, "retries", s.retries, "err", s.err)
			}
			return w.report(a, u), true
		}
		w.transition(a, Following, nil)
	case AvoidanceFailed:
		planned = true
		if err := w.replan(a, g, blocked); err != nil {
			s.rerouteAttempts++
			if s.rerouteAttempts >= w.cfg.MaxRerouteAttempts {
				w.transition(a, RerouteFailed, fmt.Errorf("%w after %d attempts: %w", ErrRerouteFailed, s.rerouteAttempts, err))
			}
			return w.report(a, u), true
		}
		w.transition(a, Following, nil)
	}

	if s.idx >= len(s.path) {
		return w.arrive(a, u), true
	}

	next := s.path[s.idx]
	if !g.Walkable(next) {
		if planned {
			w.transition(a, PathfindingFailed, fmt.Errorf("%w: %v", ErrPathInvalidated, next))
			return w.report(a, u), true
		}
		planned = true
		if err := w.replan(a, g, blocked); err != nil {
			s.retries = 0
			w.transition(a, PathfindingFailed, fmt.Errorf("%w: %v: %w", ErrPathInvalidated, next, err))
			return w.report(a, u), true
		}
		if s.idx >= len(s.path) {
			return w.arrive(a, u), true
		}
		next = s.path[s.idx]
	}

	if blocked(next) {
		w.transition(a, Blocked, nil)
		if planned {
			return w.report(a, u), true
		}
		w.transition(a, LocalAvoidance, nil)
		if w.avoid(a, g, blocked) {
			return w.emit(a, u, s.path[s.idx]), true
		}
		s.avoidAttempts++
		if s.avoidAttempts >= w.cfg.MaxAvoidanceAttempts {
			w.transition(a, AvoidanceFailed, fmt.Errorf("%w after %d attempts", ErrAvoidanceFailed, s.avoidAttempts))
		}
		return w.report(a, u), true
	}

	if s.status != Following {
		w.transition(a, Following, nil)
		s.avoidAttempts = 0
	}
	return w.emit(a, u, next), true
}

// terminal 会话不会再被 tick 推进, 直到宿主处理.
func (w *World) terminal(s *session) bool {
	switch s.status {
	case RerouteFailed:
		return true
	case AvoidanceFailed:
		return !w.cfg.AutoReroute
	case PathfindingFailed:
		return s.retries >= w.cfg.MaxPathfindRetries
	}
	return false
}

// replan 从当前位置重新规划, 把阻挡视为不可通行. 成功时重置计数.
func (w *World) replan(a *agentState, g *nav.Grid, blocked func(nav.Point) bool) error {
	s := a.sess
	p, err := g.FindPath(a.pos, s.goal, s.mode, s.partial, nav.WithBlocked(blocked))
	if err != nil {
		return err
	}
	s.path = p.Cells()
	s.idx = 0
	s.avoidAttempts = 0
	s.rerouteAttempts = 0
	s.retries = 0
	s.err = nil
	return nil
}

// avoid 在 AvoidanceRadius 内绕过阻挡, 回到原路径上半径内最远的空闲格子.
func (w *World) avoid(a *agentState, g *nav.Grid, blocked func(nav.Point) bool) bool {
	s := a.sess
	r := w.cfg.AvoidanceRadius
	area := nav.Around(a.pos, r)
	target := -1
	for j := s.idx + 1; j < len(s.path); j++ {
		c := s.path[j]
		if !area.Contains(c) {
			break
		}
		if !blocked(c) && g.Walkable(c) {
			target = j
		}
	}
	if target < 0 {
		return false
	}
	p, err := g.LocalPath(a.pos, s.path[target], r, nav.WithBlocked(blocked))
	if err != nil || p.Empty() {
		return false
	}
	s.path = append(p.Cells(), s.path[target+1:]...)
	s.idx = 0
	w.log.Debug("detour", "agent", a.id, "rejoin", p.Cells()[p.Len()-1], "len", p.Len())
	return true
}

func (w *World) transition(a *agentState, to Status, err error) {
	s := a.sess
	from := s.status
	s.status = to
	switch {
	case err != nil:
		s.err = err
	case !to.Failed():
		s.err = nil
	}
	if from == to {
		return
	}
	if w.terminal(s) {
		w.log.Warn("agent failed", "agent", a.id, "status", to, "goal", s.goal, "tick", w.tick, "err", s.err)
		return
	}
	w.log.Debug("agent status", "agent", a.id, "from", from, "to", to, "tick", w.tick)
}

func (w *World) emit(a *agentState, u Update, next nav.Point) Update {
	a.pending = true
	a.next = next
	u.Next = next
	u.HasNext = true
	return w.report(a, u)
}

func (w *World) arrive(a *agentState, u Update) Update {
	s := a.sess
	u.Arrived = true
	u.Partial = a.pos != s.goal
	u.Status = Idle
	w.log.Debug("agent arrived", "agent", a.id, "pos", a.pos, "goal", s.goal, "partial", u.Partial)
	a.sess = nil
	return u
}

func (w *World) report(a *agentState, u Update) Update {
	u.Status = a.sess.status
	if u.Status.Failed() {
		u.Err = a.sess.err
	}
	return u
}
