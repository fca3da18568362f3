package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"hpanav/nav"
)

type logEntry struct {
	level string
	msg   string
	attrs map[string]any
}

// recordLogger 记录所有日志, 用于检查状态转换顺序.
type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordLogger) add(level, msg string, args []any) {
	attrs := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		attrs[fmt.Sprint(args[i])] = args[i+1]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg, attrs: attrs})
}

func (r *recordLogger) Debug(msg string, args ...any) { r.add("debug", msg, args) }
func (r *recordLogger) Info(msg string, args ...any)  { r.add("info", msg, args) }
func (r *recordLogger) Warn(msg string, args ...any)  { r.add("warn", msg, args) }
func (r *recordLogger) Error(msg string, args ...any) { r.add("error", msg, args) }

// transitions 返回 agent 的 "from->to" 序列.
func (r *recordLogger) transitions(id uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.msg == "agent status" && e.attrs["agent"] == id {
			out = append(out, fmt.Sprintf("%v->%v", e.attrs["from"], e.attrs["to"]))
		}
	}
	return out
}

func (r *recordLogger) count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func (r *recordLogger) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// corridor 返回只有 y=row 一行可走的网格.
func corridor(t *testing.T, width, height, row int) *nav.Grid {
	t.Helper()
	g, err := nav.NewGrid(nav.Settings{Width: width, Height: height, ChunkSize: 4, StartBlocked: true})
	require.NoError(t, err)
	for x := 0; x < width; x++ {
		require.NoError(t, g.SetNav(nav.Pt(x, row), true, 0))
	}
	return g
}

func openGrid(t *testing.T, w, h int) *nav.Grid {
	t.Helper()
	g, err := nav.NewGrid(nav.Settings{Width: w, Height: h, ChunkSize: 5})
	require.NoError(t, err)
	return g
}

// tick 推进一个 tick 并返回 id 的 Update.
func tick(t *testing.T, w *World, id uuid.UUID) (Update, bool) {
	t.Helper()
	ups, err := w.AdvanceTick(context.Background(), Snapshot{})
	require.NoError(t, err)
	for _, u := range ups {
		if u.Agent == id {
			return u, true
		}
	}
	return Update{}, false
}

// move 模拟宿主执行已发出的一步.
func move(t *testing.T, w *World, u Update) {
	t.Helper()
	require.True(t, u.HasNext)
	require.NoError(t, w.SetPosition(u.Agent, u.Next))
	require.NoError(t, w.ClearNextStep(u.Agent))
}
