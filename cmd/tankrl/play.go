package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/milk9111/tankrl/arena"
	"github.com/milk9111/tankrl/common"
	"github.com/milk9111/tankrl/env"
	"github.com/milk9111/tankrl/policy"
	"github.com/milk9111/tankrl/prefabs"
	"github.com/milk9111/tankrl/trainer"
	"github.com/spf13/cobra"
)

// Terminals only report key presses, never releases; a press holds the
// control for this long.
const holdWindow = 180 * time.Millisecond

const statusLines = 3

func newPlayCmd() *cobra.Command {
	var (
		script string
		seed   int64
		dt     float64
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Watch and steer an episode in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("seed") {
				seed = -1
			}
			return play(cmd.Context(), script, seed, dt)
		},
	}
	cmd.Flags().StringVar(&script, "policy", envOr("TANKRL_POLICY", "heuristic"), "script that drives the tank while you are not steering")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the arena spawn seed")
	cmd.Flags().Float64Var(&dt, "dt", 1.0/30, "tick length in seconds, also the frame interval")
	return cmd
}

// termInput turns key presses into a held axis and trigger.
type termInput struct {
	now       func() time.Time
	move      float64
	moveUntil time.Time
	fireUntil time.Time
}

func newTermInput(now func() time.Time) *termInput {
	if now == nil {
		now = time.Now
	}
	return &termInput{now: now}
}

func (t *termInput) steer(v float64) {
	t.move = v
	t.moveUntil = t.now().Add(holdWindow)
}

func (t *termInput) trigger() {
	t.fireUntil = t.now().Add(holdWindow)
}

func (t *termInput) Axis() (float64, bool) {
	if t.now().Before(t.moveUntil) {
		return t.move, true
	}
	return 0, false
}

func (t *termInput) Firing() bool {
	return t.now().Before(t.fireUntil)
}

type session struct {
	screen tcell.Screen
	runner *trainer.Runner
	input  *termInput
	paused bool
}

func play(ctx context.Context, script string, seed int64, dt float64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := prefabs.LoadEnvConfig()
	if err != nil {
		return err
	}
	spec, err := prefabs.LoadArenaSpec()
	if err != nil {
		return err
	}
	if seed >= 0 {
		spec.Seed = seed
	}
	a, err := arena.New(spec, cfg.Spawn)
	if err != nil {
		return err
	}
	base, err := policy.LoadScript(script, 1)
	if err != nil {
		return err
	}

	input := newTermInput(nil)
	runner, err := trainer.NewRunner(cfg, a, &policy.Manual{Axis: input, Fire: input, Policy: base},
		trainer.WithDT(dt),
		trainer.WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("play: screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("play: init screen: %w", err)
	}
	defer screen.Fini()

	s := &session{screen: screen, runner: runner, input: input}
	return s.run(ctx, dt)
}

func (s *session) run(ctx context.Context, dt float64) error {
	ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := s.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok || !s.handle(ev) {
				return nil
			}
		case <-ticker.C:
			if !s.paused {
				if _, err := s.runner.Tick(ctx); err != nil {
					return err
				}
			}
			s.draw()
		}
	}
}

func (s *session) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			s.input.steer(-1)
		case tcell.KeyRight:
			s.input.steer(1)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'a':
				s.input.steer(-1)
			case 'd':
				s.input.steer(1)
			case ' ':
				s.input.trigger()
			case 'p':
				s.paused = !s.paused
			case 'r':
				s.runner.Reset()
			}
		}
	case *tcell.EventResize:
		s.screen.Sync()
	}
	return true
}

func (s *session) draw() {
	s.screen.Clear()
	w, h := s.screen.Size()
	a := s.runner.Arena()
	cfg := s.runner.Env().Config()
	g := newGrid(cfg, a.Spec(), w, h-statusLines)

	edge := tcell.StyleDefault.Foreground(tcell.ColorGray)
	for row := 0; row < g.rows; row++ {
		s.screen.SetContent(g.col(-cfg.BoundX), row, '|', nil, edge)
		s.screen.SetContent(g.col(cfg.BoundX), row, '|', nil, edge)
	}
	agent := a.AgentPosition()
	line := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	for x := g.col(-cfg.BoundX) + 1; x < g.col(cfg.BoundX); x++ {
		s.screen.SetContent(x, g.row(agent.Z), '-', nil, line)
	}

	s.plot(g, a.Entities(env.Hostile), 'H', tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true))
	s.plot(g, a.Entities(env.Friendly), 'F', tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true))
	ax, ay := g.cell(agent)
	s.screen.SetContent(ax, ay, 'A', nil, tcell.StyleDefault.Foreground(tcell.ColorBlue).Bold(true))

	snap := s.runner.Snapshot()
	mode := "policy"
	if _, engaged := s.input.Axis(); engaged {
		mode = "manual"
	}
	status := []string{
		fmt.Sprintf("episode %d  tick %d  score %d  reward %.3f  %s  %s", snap.Episode, snap.Tick, snap.Score, snap.EpisodeReward, snap.State, mode),
		fmt.Sprintf("success %d/%d  rate %s  avg time %s", snap.Stats.SuccessfulEpisodes, snap.Stats.TotalEpisodes,
			orDash(snap.Stats.SuccessRate(), "%.2f"), orDash(snap.Stats.AverageTimeToTarget(), "%.1fs")),
		"a/d or arrows: steer  space: fire  p: pause  r: reset  q: quit",
	}
	for i, text := range status {
		s.print(0, h-statusLines+i, text, tcell.StyleDefault)
	}
	s.screen.Show()
}

func (s *session) plot(g grid, ents []env.Entity, r rune, style tcell.Style) {
	for _, e := range ents {
		x, y := g.cell(e.Position)
		s.screen.SetContent(x, y, r, nil, style)
	}
}

func (s *session) print(x, y int, text string, style tcell.Style) {
	for i, r := range text {
		s.screen.SetContent(x+i, y, r, nil, style)
	}
}

// grid maps the arena's x/z plane onto terminal cells, far line at the top.
type grid struct {
	minX, maxX float64
	minZ, maxZ float64
	cols, rows int
}

func newGrid(cfg env.Config, spec *prefabs.ArenaSpec, cols, rows int) grid {
	return grid{
		minX: -cfg.BoundX - 1,
		maxX: cfg.BoundX + 1,
		minZ: math.Min(cfg.Spawn.Z, spec.SpawnZ) - 1,
		maxZ: math.Max(cfg.Spawn.Z, spec.SpawnZ) + 1,
		cols: max(cols, 1),
		rows: max(rows, 1),
	}
}

func (g grid) col(x float64) int {
	return clampCell(int(math.Round((x-g.minX)/(g.maxX-g.minX)*float64(g.cols-1))), g.cols)
}

func (g grid) row(z float64) int {
	return clampCell(int(math.Round((g.maxZ-z)/(g.maxZ-g.minZ)*float64(g.rows-1))), g.rows)
}

func (g grid) cell(p common.Vec3) (int, int) {
	return g.col(p.X), g.row(p.Z)
}

func clampCell(v, n int) int {
	return min(max(v, 0), n-1)
}
