package ecs

import (
	"math"
	"testing"
)

func TestProbeHitsNearestTank(t *testing.T) {
	pw := NewPhysicsWorld()
	w := NewWorld()
	agent := CreateEntity(w)
	near := CreateEntity(w)
	far := CreateEntity(w)

	pw.SetAgent(agent, 0, -35, 1.5)
	pw.AddTank(far, 0, -15, 1.5, 0, true)
	pw.AddTank(near, 0, -25, 1.5, 0, false)

	hit, dist, ok := pw.Probe(0, -35, 0, 1, 30)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit != near {
		t.Fatalf("expected nearest tank %v, got %v", near, hit)
	}
	if math.Abs(dist-8.5) > 1e-6 {
		t.Fatalf("expected hit distance 8.5, got %v", dist)
	}
}

func TestProbeRespectsRange(t *testing.T) {
	pw := NewPhysicsWorld()
	w := NewWorld()
	pw.SetAgent(CreateEntity(w), 0, -35, 1.5)
	pw.AddTank(CreateEntity(w), 0, 10, 1.5, 0, true)

	if _, _, ok := pw.Probe(0, -35, 0, 1, 30); ok {
		t.Fatal("tank 45 units away should be out of range")
	}
}

func TestProbeMissesOffAxisTank(t *testing.T) {
	pw := NewPhysicsWorld()
	w := NewWorld()
	pw.SetAgent(CreateEntity(w), 0, -35, 1.5)
	pw.AddTank(CreateEntity(w), 10, -25, 1.5, 0, true)

	if _, _, ok := pw.Probe(0, -35, 0, 1, 30); ok {
		t.Fatal("off-axis tank should not be hit")
	}
}

func TestRemovedTankIsNotProbed(t *testing.T) {
	pw := NewPhysicsWorld()
	w := NewWorld()
	pw.SetAgent(CreateEntity(w), 0, -35, 1.5)
	body := pw.AddTank(CreateEntity(w), 0, -25, 1.5, 0, true)
	pw.Remove(body)

	if _, _, ok := pw.Probe(0, -35, 0, 1, 30); ok {
		t.Fatal("removed tank should not be hit")
	}
}
