package main

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/milk9111/tankrl/arena"
	"github.com/milk9111/tankrl/env"
	"github.com/milk9111/tankrl/policy"
	"github.com/milk9111/tankrl/prefabs"
	"github.com/milk9111/tankrl/trainer"
	"golang.org/x/image/colornames"
)

const (
	baseWidth  = 1280
	baseHeight = 720

	fieldMargin = 5.0
	maxSpeed    = 16
)

type Game struct {
	frames int
	speed  int
	paused bool
	help   bool

	input   *Input
	runner  *trainer.Runner
	watcher *prefabs.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewGame(script string, seed int64, watch bool) (*Game, error) {
	cfg, err := prefabs.LoadEnvConfig()
	if err != nil {
		return nil, err
	}
	spec, err := prefabs.LoadArenaSpec()
	if err != nil {
		return nil, err
	}
	if seed >= 0 {
		spec.Seed = seed
	}

	a, err := arena.New(spec, cfg.Spawn)
	if err != nil {
		return nil, err
	}
	base, err := policy.LoadScript(script, 1)
	if err != nil {
		return nil, err
	}

	input := NewInput()
	manual := &policy.Manual{Axis: input, Fire: input, Policy: base}
	runner, err := trainer.NewRunner(cfg, a, manual, trainer.WithDT(1.0/float64(ebiten.DefaultTPS)))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Game{
		speed:  1,
		help:   true,
		input:  input,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}

	if watch {
		w, err := prefabs.NewWatcher(prefabs.Dir())
		if err != nil {
			log.Printf("viewer: watch disabled: %v", err)
		} else {
			g.watcher = w
		}
	}
	return g, nil
}

func (g *Game) Close() {
	g.cancel()
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
}

func (g *Game) Update() error {
	g.frames++
	g.input.Update()
	g.pollReload()

	switch {
	case g.input.Quit:
		return ebiten.Termination
	case g.input.Pause:
		g.paused = !g.paused
	case g.input.Reset:
		g.runner.Reset()
	case g.input.SpeedUp:
		g.speed = min(g.speed*2, maxSpeed)
	case g.input.SpeedDown:
		g.speed = max(g.speed/2, 1)
	case g.input.ToggleHelp:
		g.help = !g.help
	}

	if g.paused {
		return nil
	}
	for i := 0; i < g.speed; i++ {
		if _, err := g.runner.Tick(g.ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) pollReload() {
	if g.watcher == nil {
		return
	}
	select {
	case name, ok := <-g.watcher.Events:
		if !ok || !prefabs.IsFile(name, prefabs.ArenaFile) {
			return
		}
		spec, err := prefabs.LoadArenaSpec()
		if err != nil {
			log.Printf("viewer: reload %s: %v", name, err)
			return
		}
		g.runner.ApplySpec(spec)
	default:
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Darkslategray)

	e := g.runner.Env()
	a := g.runner.Arena()
	cfg := e.Config()
	view := newViewport(cfg, a.Spec())

	// Field edges and the defended line.
	agent := a.AgentPosition()
	lx, top := view.toScreen(-cfg.BoundX, view.maxZ)
	_, bottom := view.toScreen(-cfg.BoundX, view.minZ)
	rx, _ := view.toScreen(cfg.BoundX, view.maxZ)
	vector.StrokeLine(screen, lx, top, lx, bottom, 2, colornames.Lightgrey, true)
	vector.StrokeLine(screen, rx, top, rx, bottom, 2, colornames.Lightgrey, true)
	_, lineY := view.toScreen(0, agent.Z)
	vector.StrokeLine(screen, lx, lineY, rx, lineY, 1, colornames.Gold, true)

	// Shooting lane.
	ax, ay := view.toScreen(agent.X, agent.Z)
	tip := agent.Add(cfg.Forward.Scale(cfg.ShootRange))
	fx, fy := view.toScreen(tip.X, tip.Z)
	vector.StrokeLine(screen, ax, ay, fx, fy, 1, color.RGBA{R: 255, G: 255, B: 255, A: 64}, true)

	g.drawTanks(screen, view, a, env.Hostile, colornames.Crimson)
	g.drawTanks(screen, view, a, env.Friendly, colornames.Limegreen)
	vector.FillCircle(screen, ax, ay, view.scale32(a.Radius(0)), colornames.Royalblue, true)

	g.drawOverlay(screen)
}

func (g *Game) drawTanks(screen *ebiten.Image, view viewport, a *arena.Arena, c env.Category, clr color.Color) {
	r := view.scale32(a.Radius(c))
	for _, t := range a.Entities(c) {
		x, y := view.toScreen(t.Position.X, t.Position.Z)
		vector.FillCircle(screen, x, y, r, clr, true)
	}
}

func (g *Game) drawOverlay(screen *ebiten.Image) {
	snap := g.runner.Snapshot()
	stats := snap.Stats
	mode := "policy"
	if _, engaged := g.input.Axis(); engaged {
		mode = "manual"
	}
	status := ""
	if g.paused {
		status = "  [paused]"
	}

	msg := fmt.Sprintf("FPS: %.1f  speed x%d%s\nepisode %d  tick %d  score %d  reward %.3f  (%s)\nsuccess %d/%d  rate %s  avg time %s",
		ebiten.ActualFPS(), g.speed, status,
		snap.Episode, snap.Tick, snap.Score, snap.EpisodeReward, mode,
		stats.SuccessfulEpisodes, stats.TotalEpisodes,
		formatMetric(stats.SuccessRate(), "%.2f"), formatMetric(stats.AverageTimeToTarget(), "%.1fs"))
	if g.help {
		msg += "\n\nA/D or arrows: steer   space: fire   P: pause   R: reset   +/-: speed   H: help   Esc: quit"
	}
	ebitenutil.DebugPrint(screen, msg)
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}

// viewport maps the arena's x/z plane to the screen with +z pointing up.
type viewport struct {
	minX, maxX float64
	minZ, maxZ float64
	scale      float64
	offX, offY float64
}

func newViewport(cfg env.Config, spec *prefabs.ArenaSpec) viewport {
	v := viewport{
		minX: -cfg.BoundX - fieldMargin,
		maxX: cfg.BoundX + fieldMargin,
		minZ: math.Min(cfg.Spawn.Z, spec.SpawnZ) - fieldMargin,
		maxZ: math.Max(cfg.Spawn.Z, spec.SpawnZ) + fieldMargin,
	}
	v.scale = math.Min(baseWidth/(v.maxX-v.minX), baseHeight/(v.maxZ-v.minZ))
	v.offX = (baseWidth - (v.maxX-v.minX)*v.scale) / 2
	v.offY = (baseHeight - (v.maxZ-v.minZ)*v.scale) / 2
	return v
}

func (v viewport) toScreen(x, z float64) (float32, float32) {
	sx := v.offX + (x-v.minX)*v.scale
	sy := v.offY + (v.maxZ-z)*v.scale
	return float32(sx), float32(sy)
}

func (v viewport) scale32(d float64) float32 {
	return float32(d * v.scale)
}

func formatMetric(v float64, format string) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}
