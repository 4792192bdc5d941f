package system

import (
	"github.com/jakecoffman/cp"
	"github.com/milk9111/tankrl/ecs"
	"github.com/milk9111/tankrl/ecs/component"
)

// PhysicsSystem steps the Chipmunk space, copies body positions back into
// transforms and turns agent contacts into collision events.
type PhysicsSystem struct{}

func NewPhysicsSystem() *PhysicsSystem {
	return &PhysicsSystem{}
}

func (ps *PhysicsSystem) Update(w *ecs.World) {
	if ps == nil || w == nil {
		return
	}
	pw := w.PhysicsWorld()
	if pw == nil {
		return
	}

	ecs.ForEach2(w, component.MarchComponent.Kind(), component.PhysicsBodyComponent.Kind(), func(_ ecs.Entity, m *component.March, pb *component.PhysicsBody) {
		if pb.Body != nil {
			pb.Body.SetVelocityVector(cp.Vector{X: 0, Y: -m.Speed})
		}
	})

	pw.Step(w.DeltaTime())

	ecs.ForEach2(w, component.TransformComponent.Kind(), component.PhysicsBodyComponent.Kind(), func(_ ecs.Entity, t *component.Transform, pb *component.PhysicsBody) {
		if pb.Body == nil {
			return
		}
		pos := pb.Body.Position()
		t.X = pos.X
		t.Z = pos.Y
	})

	for _, c := range pw.DrainCollisions() {
		w.Events().Push(ecs.Event{Type: ecs.EventCollision, Data: c})
	}
}
