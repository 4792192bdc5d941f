package ecs

import (
	"log"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/tankrl/ecs/component"
)

const (
	collisionTypeAgent cp.CollisionType = iota + 1
	collisionTypeHostile
	collisionTypeFriendly
)

const (
	categoryAgent uint = 1 << iota
	categoryHostile
	categoryFriendly
)

const allCategories = ^uint(0)

// PhysicsWorld owns the Chipmunk space the tanks live in. World x maps to
// cp X and world z maps to cp Y.
type PhysicsWorld struct {
	space         *cp.Space
	handlersReady bool

	agent      Entity
	agentBody  *cp.Body
	agentShape *cp.Shape

	shapeToEntity map[*cp.Shape]Entity
	pending       []CollisionEvent
}

// NewPhysicsWorld creates an empty, gravity-free space.
func NewPhysicsWorld() *PhysicsWorld {
	space := cp.NewSpace()
	space.Iterations = 10
	space.SetGravity(cp.Vector{})

	pw := &PhysicsWorld{
		space:         space,
		shapeToEntity: make(map[*cp.Shape]Entity),
	}
	pw.setupHandlers()
	return pw
}

// SetAgent creates the agent body. The agent is a dynamic body with a sensor
// shape: Chipmunk never reports contacts between two kinematic bodies, and
// the sensor keeps the tanks from being pushed around.
func (pw *PhysicsWorld) SetAgent(e Entity, x, z, radius float64) *component.PhysicsBody {
	if pw == nil || pw.space == nil {
		return nil
	}
	if pw.agentBody != nil {
		pw.removeShapeAndBody(pw.agentShape, pw.agentBody)
	}

	body := cp.NewBody(1, math.Inf(1))
	body.SetPosition(cp.Vector{X: x, Y: z})
	shape := cp.NewCircle(body, radius, cp.Vector{})
	shape.SetSensor(true)
	shape.SetCollisionType(collisionTypeAgent)
	shape.SetFilter(cp.NewShapeFilter(0, categoryAgent, allCategories))

	pw.space.AddBody(body)
	pw.space.AddShape(shape)
	pw.shapeToEntity[shape] = e

	pw.agent = e
	pw.agentBody = body
	pw.agentShape = shape
	return &component.PhysicsBody{Body: body, Shape: shape, Radius: radius}
}

// MoveAgent teleports the agent. Policy moves are translations, not forces.
func (pw *PhysicsWorld) MoveAgent(x, z float64) {
	if pw == nil || pw.agentBody == nil {
		return
	}
	pw.agentBody.SetPosition(cp.Vector{X: x, Y: z})
	pw.agentBody.SetVelocityVector(cp.Vector{})
}

// AddTank creates a kinematic tank body marching toward -z at speed.
func (pw *PhysicsWorld) AddTank(e Entity, x, z, radius, speed float64, hostile bool) *component.PhysicsBody {
	if pw == nil || pw.space == nil {
		return nil
	}
	body := cp.NewKinematicBody()
	body.SetPosition(cp.Vector{X: x, Y: z})
	body.SetVelocityVector(cp.Vector{X: 0, Y: -speed})

	shape := cp.NewCircle(body, radius, cp.Vector{})
	if hostile {
		shape.SetCollisionType(collisionTypeHostile)
		shape.SetFilter(cp.NewShapeFilter(0, categoryHostile, allCategories))
	} else {
		shape.SetCollisionType(collisionTypeFriendly)
		shape.SetFilter(cp.NewShapeFilter(0, categoryFriendly, allCategories))
	}

	pw.space.AddBody(body)
	pw.space.AddShape(shape)
	pw.shapeToEntity[shape] = e
	return &component.PhysicsBody{Body: body, Shape: shape, Radius: radius}
}

// Remove drops a body and its shape from the space. Must not be called from
// inside Step.
func (pw *PhysicsWorld) Remove(body *component.PhysicsBody) {
	if pw == nil || body == nil {
		return
	}
	pw.removeShapeAndBody(body.Shape, body.Body)
}

func (pw *PhysicsWorld) removeShapeAndBody(shape *cp.Shape, body *cp.Body) {
	if shape != nil {
		delete(pw.shapeToEntity, shape)
		if pw.space.ContainsShape(shape) {
			pw.space.RemoveShape(shape)
		}
	}
	if body != nil && pw.space.ContainsBody(body) {
		pw.space.RemoveBody(body)
	}
	if body == pw.agentBody {
		pw.agentBody = nil
		pw.agentShape = nil
		pw.agent = 0
	}
}

// Step advances the simulation. Collisions found during the step are queued
// and returned by DrainCollisions.
func (pw *PhysicsWorld) Step(dt float64) {
	if pw == nil || pw.space == nil || dt <= 0 {
		return
	}
	pw.space.Step(dt)
}

// DrainCollisions returns the collisions queued since the last drain.
func (pw *PhysicsWorld) DrainCollisions() []CollisionEvent {
	if pw == nil || len(pw.pending) == 0 {
		return nil
	}
	out := pw.pending
	pw.pending = nil
	return out
}

// Probe casts a segment from (x, z) along (dx, dz) for maxDist and returns
// the nearest tank it touches. The agent itself is never reported.
func (pw *PhysicsWorld) Probe(x, z, dx, dz, maxDist float64) (Entity, float64, bool) {
	if pw == nil || pw.space == nil || maxDist <= 0 {
		return 0, 0, false
	}
	n := math.Hypot(dx, dz)
	if n == 0 {
		return 0, 0, false
	}
	start := cp.Vector{X: x, Y: z}
	end := cp.Vector{X: x + dx/n*maxDist, Y: z + dz/n*maxDist}
	filter := cp.NewShapeFilter(0, allCategories, categoryHostile|categoryFriendly)

	info := pw.space.SegmentQueryFirst(start, end, 0, filter)
	if info.Shape == nil {
		return 0, 0, false
	}
	e, ok := pw.shapeToEntity[info.Shape]
	if !ok {
		return 0, 0, false
	}
	return e, info.Alpha * maxDist, true
}

func (pw *PhysicsWorld) setupHandlers() {
	if pw == nil || pw.handlersReady || pw.space == nil {
		return
	}

	hostileHandler := pw.space.NewCollisionHandler(collisionTypeAgent, collisionTypeHostile)
	hostileHandler.UserData = pw
	hostileHandler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		if world, ok := userData.(*PhysicsWorld); ok && world != nil {
			world.queueContact(arb, CollisionEventHostile)
		}
		return true
	}

	friendlyHandler := pw.space.NewCollisionHandler(collisionTypeAgent, collisionTypeFriendly)
	friendlyHandler.UserData = pw
	friendlyHandler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		if world, ok := userData.(*PhysicsWorld); ok && world != nil {
			world.queueContact(arb, CollisionEventFriendly)
		}
		return true
	}

	pw.handlersReady = true
}

func (pw *PhysicsWorld) queueContact(arb *cp.Arbiter, kind CollisionEventKind) {
	shapeA, shapeB := arb.Shapes()
	other := shapeB
	if shapeB == pw.agentShape {
		other = shapeA
	}
	e, ok := pw.shapeToEntity[other]
	if !ok {
		log.Printf("PhysicsWorld: contact with unmapped shape (%s)", kind)
		return
	}
	pw.pending = append(pw.pending, CollisionEvent{Entity: e, Kind: kind})
}
