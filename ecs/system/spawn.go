package system

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/milk9111/tankrl/ecs"
	"github.com/milk9111/tankrl/ecs/component"
	"github.com/milk9111/tankrl/prefabs"
)

// SpawnSystem drops hostile and friendly tanks on the far line at the
// intervals of the arena spec, up to each side's live cap.
type SpawnSystem struct {
	spec *prefabs.ArenaSpec
	rng  *rand.Rand

	hostileTimer  float64
	friendlyTimer float64
}

func NewSpawnSystem(spec *prefabs.ArenaSpec) *SpawnSystem {
	s := &SpawnSystem{spec: spec}
	var seed int64
	if spec != nil {
		seed = spec.Seed
	}
	s.Reseed(seed)
	return s
}

// SetSpec swaps spawn parameters. Pending timers carry over.
func (s *SpawnSystem) SetSpec(spec *prefabs.ArenaSpec) {
	if s == nil || spec == nil {
		return
	}
	s.spec = spec
}

func (s *SpawnSystem) Spec() *prefabs.ArenaSpec {
	if s == nil {
		return nil
	}
	return s.spec
}

func (s *SpawnSystem) Reseed(seed int64) {
	if s == nil {
		return
	}
	s.rng = rand.New(rand.NewSource(seed))
}

// Reset restarts both spawn timers.
func (s *SpawnSystem) Reset() {
	if s == nil {
		return
	}
	s.hostileTimer = 0
	s.friendlyTimer = 0
}

func (s *SpawnSystem) Update(w *ecs.World) {
	if s == nil || w == nil || s.spec == nil {
		return
	}
	dt := w.DeltaTime()
	if dt <= 0 {
		return
	}

	s.hostileTimer = s.tick(w, s.hostileTimer+dt, s.spec.Hostile, true)
	s.friendlyTimer = s.tick(w, s.friendlyTimer+dt, s.spec.Friendly, false)
}

func (s *SpawnSystem) tick(w *ecs.World, timer float64, tank prefabs.TankSpec, hostile bool) float64 {
	if tank.SpawnInterval <= 0 {
		return 0
	}
	for timer >= tank.SpawnInterval {
		timer -= tank.SpawnInterval
		if live(w, hostile) >= tank.MaxLive {
			continue
		}
		x := between(s.rng, s.spec.SpawnX)
		speed := between(s.rng, tank.Speed)
		if _, err := SpawnTank(w, x, s.spec.SpawnZ, tank.Radius, speed, hostile); err != nil {
			log.Printf("spawn: %v", err)
		}
	}
	return timer
}

// SpawnTank creates one marching tank at (x, z).
func SpawnTank(w *ecs.World, x, z, radius, speed float64, hostile bool) (ecs.Entity, error) {
	e := ecs.CreateEntity(w)
	if err := addTank(w, e, x, z, radius, speed, hostile); err != nil {
		if body, ok := ecs.Get(w, e, component.PhysicsBodyComponent.Kind()); ok {
			w.PhysicsWorld().Remove(body)
		}
		ecs.DestroyEntity(w, e)
		return 0, fmt.Errorf("spawn: tank: %w", err)
	}
	return e, nil
}

func addTank(w *ecs.World, e ecs.Entity, x, z, radius, speed float64, hostile bool) error {
	if err := ecs.Add(w, e, component.TransformComponent.Kind(), &component.Transform{X: x, Z: z}); err != nil {
		return err
	}
	if err := ecs.Add(w, e, component.MarchComponent.Kind(), &component.March{Speed: speed}); err != nil {
		return err
	}

	var err error
	if hostile {
		err = ecs.Add(w, e, component.HostileTagComponent.Kind(), &component.HostileTag{})
	} else {
		err = ecs.Add(w, e, component.FriendlyTagComponent.Kind(), &component.FriendlyTag{})
	}
	if err != nil {
		return err
	}

	if pw := w.PhysicsWorld(); pw != nil {
		body := pw.AddTank(e, x, z, radius, speed, hostile)
		if err := ecs.Add(w, e, component.PhysicsBodyComponent.Kind(), body); err != nil {
			return err
		}
	}
	return nil
}

func live(w *ecs.World, hostile bool) int {
	if hostile {
		return len(w.Query(component.HostileTagComponent.Kind().ID()))
	}
	return len(w.Query(component.FriendlyTagComponent.Kind().ID()))
}

func between(rng *rand.Rand, r prefabs.RangeSpec) float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Float64()*(r.Max-r.Min)
}
