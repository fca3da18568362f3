// navsim 在随机地图上运行一群 agent, 用于观察寻路与碰撞处理.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"hpanav/agent"
	"hpanav/logging"
	"hpanav/nav"
)

var (
	width        = flag.Int("width", 128, "Grid width")
	height       = flag.Int("height", 128, "Grid height")
	chunk        = flag.Int("chunk", nav.DefaultChunkSize, "Chunk size")
	density      = flag.Float64("density", 0.2, "Fraction of blocked cells")
	agents       = flag.Int("agents", 64, "Number of agents")
	ticks        = flag.Int("ticks", 500, "Ticks to simulate")
	seed         = flag.Uint64("seed", 1, "Random seed")
	modeName     = flag.String("mode", "refined", "Path mode: refined|coarse|astar")
	neighborhood = flag.String("neighborhood", "ordinal", "Movement: ordinal|cardinal")
	blocking     = flag.Bool("blocking", true, "Agents block each other")
	churn        = flag.Int("churn", 50, "Toggle random walls every N ticks (0 disables)")
	workers      = flag.Int("workers", 0, "Tick workers (0 = NumCPU)")
	logLevel     = flag.String("log", "info", "Log level: debug|info|warn|error")
	logFormat    = flag.String("format", "text", "Log format: text|json")
)

func main() {
	flag.Parse()

	level, ok := logging.ParseLogLevel(*logLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", *logLevel)
		os.Exit(2)
	}
	log := logging.NewLogger(&logging.LoggerConfig{Level: level, Format: *logFormat, Output: os.Stderr, Component: "navsim"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("simulation failed", "err", err)
		os.Exit(1)
	}
}

type sim struct {
	log   logging.Logger
	rng   *rand.Rand
	grid  *nav.Grid
	world *agent.World
	gid   agent.GridID
	mode  nav.Mode
	open  []nav.Point

	arrived, partial, steps, failures int
}

func run(ctx context.Context, log logging.Logger) error {
	mode, ok := nav.ParseMode(*modeName)
	if !ok {
		return fmt.Errorf("unknown mode %q", *modeName)
	}
	nb, ok := nav.ParseNeighborhood(*neighborhood)
	if !ok {
		return fmt.Errorf("unknown neighborhood %q", *neighborhood)
	}

	grid, err := nav.NewGrid(nav.Settings{
		Width:        *width,
		Height:       *height,
		ChunkSize:    *chunk,
		Neighborhood: nb,
		Logger:       logging.With(log, "grid", 0),
	})
	if err != nil {
		return err
	}

	s := &sim{
		log:  log,
		rng:  rand.New(rand.NewPCG(*seed, *seed+1)),
		grid: grid,
		mode: mode,
	}
	if err := s.buildMap(); err != nil {
		return err
	}

	t0 := time.Now()
	if err := grid.Warm(ctx, *workers); err != nil {
		return err
	}
	log.Info("grid ready",
		"size", fmt.Sprintf("%dx%d", *width, *height),
		"chunks", grid.ChunkCount(),
		"entrances", len(grid.Entrances()),
		"warm", time.Since(t0),
	)

	opts := []agent.Option{agent.WithLogger(log)}
	if *workers > 0 {
		opts = append(opts, agent.WithWorkers(*workers))
	}
	s.world = agent.NewWorld(opts...)
	s.gid = s.world.AddGrid(grid)

	for i := 0; i < *agents; i++ {
		id, err := s.world.AddAgent(s.gid, s.randomOpen(), *blocking)
		if err != nil {
			return err
		}
		s.assignGoal(id)
	}

	t0 = time.Now()
	for tk := 1; tk <= *ticks; tk++ {
		if *churn > 0 && tk%*churn == 0 {
			if err := s.toggleWalls(8); err != nil {
				return err
			}
		}
		ups, err := s.world.AdvanceTick(ctx, agent.Snapshot{})
		if err != nil {
			return err
		}
		for _, u := range ups {
			if err := s.apply(u); err != nil {
				return err
			}
		}
	}

	st := grid.Stats()
	log.Info("simulation done",
		"ticks", *ticks,
		"elapsed", time.Since(t0),
		"steps", s.steps,
		"arrived", s.arrived,
		"partial", s.partial,
		"failures", s.failures,
		"searches", st.Searches,
		"cache_hits", st.CacheHits,
		"cache_builds", st.CacheBuilds,
		"entrance_rebuilds", st.EntranceRebuilds,
	)
	return nil
}

func (s *sim) buildMap() error {
	for y := 0; y < *height; y++ {
		for x := 0; x < *width; x++ {
			p := nav.Pt(x, y)
			if s.rng.Float64() < *density {
				if err := s.grid.SetNav(p, false, 0); err != nil {
					return err
				}
				continue
			}
			s.open = append(s.open, p)
		}
	}
	if len(s.open) == 0 {
		return errors.New("map has no walkable cells")
	}
	return nil
}

func (s *sim) randomOpen() nav.Point {
	return s.open[s.rng.IntN(len(s.open))]
}

// toggleWalls 翻转 n 个随机格子的可行走性, 触发分块重建.
func (s *sim) toggleWalls(n int) error {
	for i := 0; i < n; i++ {
		p := nav.Pt(s.rng.IntN(*width), s.rng.IntN(*height))
		c, _ := s.grid.Cell(p)
		if err := s.grid.SetNav(p, !c.Walkable, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *sim) assignGoal(id uuid.UUID) {
	goal := s.randomOpen()
	if _, err := s.world.RequestPath(id, goal, s.mode, true); err != nil {
		s.log.Debug("request path failed", "agent", id, "goal", goal, "err", err)
	}
}

func (s *sim) apply(u agent.Update) error {
	switch {
	case u.Arrived:
		s.arrived++
		if u.Partial {
			s.partial++
		}
		s.assignGoal(u.Agent)
	case u.HasNext:
		s.steps++
		if err := s.world.SetPosition(u.Agent, u.Next); err != nil {
			return err
		}
		return s.world.ClearNextStep(u.Agent)
	case u.Status == agent.RerouteFailed || u.Status == agent.PathfindingFailed:
		s.failures++
		if err := s.world.ClearFailure(u.Agent); err != nil {
			return err
		}
		s.assignGoal(u.Agent)
	}
	return nil
}
