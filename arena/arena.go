// Package arena hosts the tank battlefield: an ECS world with a Chipmunk
// space, a spawner on the far line and the agent's body. It is the world
// and probe the env package talks to.
package arena

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/milk9111/tankrl/common"
	"github.com/milk9111/tankrl/ecs"
	"github.com/milk9111/tankrl/ecs/component"
	"github.com/milk9111/tankrl/ecs/system"
	"github.com/milk9111/tankrl/env"
	"github.com/milk9111/tankrl/prefabs"
)

var ErrNilSpec = errors.New("arena: nil spec")

type Arena struct {
	world     *ecs.World
	physics   *ecs.PhysicsWorld
	scheduler *ecs.Scheduler
	spawner   *system.SpawnSystem

	spec  *prefabs.ArenaSpec
	agent ecs.Entity
}

var (
	_ env.World = (*Arena)(nil)
	_ env.Probe = (*Arena)(nil)
)

// New builds an arena from spec with the agent at spawn.
func New(spec *prefabs.ArenaSpec, spawn common.Vec3) (*Arena, error) {
	if spec == nil {
		return nil, ErrNilSpec
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	world := ecs.NewWorld()
	physics := ecs.NewPhysicsWorld()
	world.SetPhysicsWorld(physics)

	spawner := system.NewSpawnSystem(spec)
	a := &Arena{
		world:     world,
		physics:   physics,
		scheduler: ecs.NewScheduler(spawner, system.NewPhysicsSystem()),
		spawner:   spawner,
		spec:      spec,
	}

	a.agent = ecs.CreateEntity(world)
	if err := ecs.Add(world, a.agent, component.AgentTagComponent.Kind(), &component.AgentTag{}); err != nil {
		return nil, fmt.Errorf("arena: agent: %w", err)
	}
	if err := ecs.Add(world, a.agent, component.TransformComponent.Kind(), &component.Transform{X: spawn.X, Y: spawn.Y, Z: spawn.Z}); err != nil {
		return nil, fmt.Errorf("arena: agent: %w", err)
	}
	body := physics.SetAgent(a.agent, spawn.X, spawn.Z, spec.AgentRadius)
	if err := ecs.Add(world, a.agent, component.PhysicsBodyComponent.Kind(), body); err != nil {
		return nil, fmt.Errorf("arena: agent: %w", err)
	}
	return a, nil
}

// Update advances spawning and physics by dt seconds and returns the agent
// contacts that started during the step.
func (a *Arena) Update(dt float64) []env.Collision {
	a.scheduler.Update(a.world, dt)

	var out []env.Collision
	for _, ev := range a.world.Events().Drain() {
		if ev.Type != ecs.EventCollision {
			continue
		}
		c, ok := ev.Data.(ecs.CollisionEvent)
		if !ok || !ecs.IsAlive(a.world, c.Entity) {
			continue
		}
		cat := env.Hostile
		if c.Kind == ecs.CollisionEventFriendly {
			cat = env.Friendly
		}
		out = append(out, env.Collision{Handle: env.Handle(c.Entity), Category: cat})
	}
	return out
}

// Entities lists the live tanks of one category, nearest to the defended
// line first.
func (a *Arena) Entities(c env.Category) []env.Entity {
	tag := a.tagID(c)
	if tag == 0 {
		return nil
	}
	ents := a.world.Query(tag, component.TransformComponent.Kind().ID())
	out := make([]env.Entity, 0, len(ents))
	for _, e := range ents {
		t, ok := ecs.Get(a.world, e, component.TransformComponent.Kind())
		if !ok {
			continue
		}
		out = append(out, env.Entity{
			Handle:   env.Handle(e),
			Category: c,
			Position: common.Vec3{X: t.X, Y: t.Y, Z: t.Z},
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position.Z != out[j].Position.Z {
			return out[i].Position.Z < out[j].Position.Z
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

// Destroy removes a tank. The agent cannot be destroyed through a handle.
func (a *Arena) Destroy(h env.Handle) bool {
	e := ecs.Entity(h)
	if e == a.agent || !ecs.IsAlive(a.world, e) {
		return false
	}
	if pb, ok := ecs.Get(a.world, e, component.PhysicsBodyComponent.Kind()); ok {
		a.physics.Remove(pb)
	}
	return ecs.DestroyEntity(a.world, e)
}

func (a *Arena) PlaceAgent(pos common.Vec3) {
	if t, ok := ecs.Get(a.world, a.agent, component.TransformComponent.Kind()); ok {
		t.X, t.Y, t.Z = pos.X, pos.Y, pos.Z
	}
	a.physics.MoveAgent(pos.X, pos.Z)
}

// Cast probes along dir on the x/z plane. The y components are ignored.
func (a *Arena) Cast(origin, dir common.Vec3, maxDistance float64) (env.Hit, bool) {
	e, dist, ok := a.physics.Probe(origin.X, origin.Z, dir.X, dir.Z, maxDistance)
	if !ok || !ecs.IsAlive(a.world, e) {
		return env.Hit{}, false
	}
	cat, ok := a.category(e)
	if !ok {
		return env.Hit{}, false
	}
	return env.Hit{Handle: env.Handle(e), Category: cat, Distance: dist}, true
}

// Clear removes every tank and restarts the spawn timers.
func (a *Arena) Clear() {
	removed := 0
	for _, c := range []env.Category{env.Hostile, env.Friendly} {
		for _, ent := range a.Entities(c) {
			if a.Destroy(ent.Handle) {
				removed++
			}
		}
	}
	a.spawner.Reset()
	if removed > 0 {
		log.Printf("arena: cleared %d tanks", removed)
	}
}

// ApplySpec swaps the spawn parameters. Radii of tanks already on the field
// are left alone.
func (a *Arena) ApplySpec(spec *prefabs.ArenaSpec) error {
	if spec == nil {
		return ErrNilSpec
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	a.spec = spec
	a.spawner.SetSpec(spec)
	log.Printf("arena: applied spec %q", spec.Name)
	return nil
}

func (a *Arena) Reseed(seed int64) {
	a.spawner.Reseed(seed)
}

func (a *Arena) Spec() *prefabs.ArenaSpec {
	return a.spec
}

// Spawn places a tank directly, bypassing the spawn timers.
func (a *Arena) Spawn(c env.Category, x, z, speed float64) (env.Handle, error) {
	tank := a.spec.Hostile
	if c == env.Friendly {
		tank = a.spec.Friendly
	}
	e, err := system.SpawnTank(a.world, x, z, tank.Radius, speed, c == env.Hostile)
	if err != nil {
		return 0, fmt.Errorf("arena: spawn %s: %w", c, err)
	}
	return env.Handle(e), nil
}

// Live counts the tanks of one category.
func (a *Arena) Live(c env.Category) int {
	tag := a.tagID(c)
	if tag == 0 {
		return 0
	}
	return len(a.world.Query(tag))
}

// Radius is the body radius used for new tanks of c.
func (a *Arena) Radius(c env.Category) float64 {
	switch c {
	case env.Hostile:
		return a.spec.Hostile.Radius
	case env.Friendly:
		return a.spec.Friendly.Radius
	default:
		return a.spec.AgentRadius
	}
}

func (a *Arena) AgentPosition() common.Vec3 {
	t, ok := ecs.Get(a.world, a.agent, component.TransformComponent.Kind())
	if !ok {
		return common.Vec3{}
	}
	return common.Vec3{X: t.X, Y: t.Y, Z: t.Z}
}

func (a *Arena) tagID(c env.Category) component.ComponentID {
	switch c {
	case env.Hostile:
		return component.HostileTagComponent.Kind().ID()
	case env.Friendly:
		return component.FriendlyTagComponent.Kind().ID()
	default:
		return 0
	}
}

func (a *Arena) category(e ecs.Entity) (env.Category, bool) {
	if ecs.Has(a.world, e, component.HostileTagComponent.Kind()) {
		return env.Hostile, true
	}
	if ecs.Has(a.world, e, component.FriendlyTagComponent.Kind()) {
		return env.Friendly, true
	}
	return 0, false
}
