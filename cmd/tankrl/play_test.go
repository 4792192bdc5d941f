package main

import (
	"testing"
	"time"

	"github.com/milk9111/tankrl/common"
	"github.com/milk9111/tankrl/env"
	"github.com/milk9111/tankrl/prefabs"
)

func TestTermInputHold(t *testing.T) {
	now := time.Unix(0, 0)
	in := newTermInput(func() time.Time { return now })

	if _, engaged := in.Axis(); engaged {
		t.Fatalf("axis engaged before any key")
	}
	if in.Firing() {
		t.Fatalf("firing before any key")
	}

	in.steer(-1)
	in.trigger()
	now = now.Add(holdWindow / 2)
	if v, engaged := in.Axis(); !engaged || v != -1 {
		t.Fatalf("Axis() = %v, %v; want -1, true", v, engaged)
	}
	if !in.Firing() {
		t.Fatalf("expected trigger held")
	}

	now = now.Add(holdWindow)
	if _, engaged := in.Axis(); engaged {
		t.Fatalf("axis still engaged after hold window")
	}
	if in.Firing() {
		t.Fatalf("trigger still held after hold window")
	}
}

func TestGridCells(t *testing.T) {
	cfg := env.DefaultConfig()
	spec := &prefabs.ArenaSpec{SpawnZ: 10}
	cfg.BoundX = 9
	cfg.Spawn = common.Vec3{Z: -10}
	g := newGrid(cfg, spec, 21, 23)

	tests := []struct {
		name string
		p    common.Vec3
		col  int
		row  int
	}{
		{"centre", common.Vec3{}, 10, 11},
		{"far left edge", common.Vec3{X: -10, Z: 11}, 0, 0},
		{"near right edge", common.Vec3{X: 10, Z: -11}, 20, 22},
		{"clamped", common.Vec3{X: 100, Z: -100}, 20, 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, row := g.cell(tt.p)
			if col != tt.col || row != tt.row {
				t.Fatalf("cell(%v) = (%d, %d); want (%d, %d)", tt.p, col, row, tt.col, tt.row)
			}
		})
	}
}
