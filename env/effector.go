package env

import (
	"log"

	"github.com/milk9111/tankrl/common"
)

// Effector applies a policy action to the agent and the world.
type Effector struct {
	cfg    Config
	world  World
	probe  Probe
	ctrl   *Controller
	claim  func(Handle) bool
	logger *log.Logger
}

// Apply runs one action: move, bounds check, fire, step penalty. The step
// penalty is charged on every tick of a running episode, including the one
// that ends it. Nothing happens once the episode has terminated.
func (f *Effector) Apply(a Action, dt float64) {
	if !f.ctrl.Running() {
		return
	}
	outcome, reason := f.resolve(a, dt)
	f.ctrl.AddReward(f.cfg.Rewards.Step)
	if outcome != OutcomeNone {
		f.ctrl.Terminate(outcome, reason)
	}
}

func (f *Effector) resolve(a Action, dt float64) (Outcome, Reason) {
	pos := f.ctrl.MoveAgent(common.Vec3{X: a.Move * f.cfg.ForceMultiplier * dt})
	f.world.PlaceAgent(pos)

	if pos.X < -f.cfg.BoundX || pos.X > f.cfg.BoundX {
		f.ctrl.AddReward(f.cfg.Rewards.OutOfBounds)
		f.logger.Printf("env: agent left the field at x=%.2f", pos.X)
		return OutcomeFailure, ReasonOutOfBounds
	}

	if !a.Fire {
		return OutcomeNone, ""
	}

	hit, ok := f.probe.Cast(pos, f.cfg.Forward, f.cfg.ShootRange)
	if !ok || !f.claim(hit.Handle) || !f.world.Destroy(hit.Handle) {
		return OutcomeNone, ""
	}

	switch hit.Category {
	case Hostile:
		f.ctrl.AddReward(f.cfg.Rewards.HostileHit)
		if f.ctrl.AddScore(f.cfg.Scores.HostileHit) >= f.cfg.TargetScore {
			return OutcomeSuccess, ReasonTargetReached
		}
	case Friendly:
		f.ctrl.AddReward(f.cfg.Rewards.FriendlyHit)
		f.ctrl.AddScore(f.cfg.Scores.FriendlyHit)
	}
	return OutcomeNone, ""
}
