package env

import (
	"errors"
	"fmt"
	"log"
)

var (
	ErrNilWorld = errors.New("env: world is nil")
	ErrNilProbe = errors.New("env: probe is nil")
	ErrNilClock = errors.New("env: clock is nil")
)

// Env wires the encoder, effector, breach monitor and controller around one
// world. A host drives it once per tick:
//
//	e.BeginTick()
//	obs := e.Observe()
//	e.Act(policy(obs), dt)
//	// world update, then e.HandleCollision for each contact
//	e.SweepBreaches()
//	if e.Done() { e.Reset() }
type Env struct {
	cfg   Config
	world World

	encoder  Encoder
	effector *Effector
	breaches *BreachMonitor
	ctrl     *Controller

	rewards *Accumulator
	handled ledger
	logger  *log.Logger
	obsBuf  []float64
}

type Option func(*Env)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers an episode observer.
func WithObserver(o EpisodeObserver) Option {
	return func(e *Env) {
		e.ctrl.Observe(o)
	}
}

// New builds an environment and starts its first episode.
func New(cfg Config, world World, probe Probe, clock Clock, opts ...Option) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if world == nil {
		return nil, ErrNilWorld
	}
	if probe == nil {
		return nil, ErrNilProbe
	}
	if clock == nil {
		return nil, ErrNilClock
	}

	e := &Env{
		cfg:     cfg,
		world:   world,
		encoder: NewEncoder(cfg),
		rewards: &Accumulator{},
		handled: make(ledger),
		logger:  log.Default(),
	}
	e.ctrl = NewController(cfg, clock, e.rewards, e.logger)
	for _, opt := range opts {
		opt(e)
	}
	e.ctrl.logger = e.logger

	e.effector = &Effector{
		cfg:    cfg,
		world:  world,
		probe:  probe,
		ctrl:   e.ctrl,
		claim:  e.handled.claim,
		logger: e.logger,
	}
	e.breaches = &BreachMonitor{
		cfg:   cfg,
		world: world,
		ctrl:  e.ctrl,
		claim: e.handled.claim,
	}

	e.begin()
	return e, nil
}

// Reset ends the current episode if it is still running and starts a new
// one at the spawn point.
func (e *Env) Reset() {
	if e.ctrl.Running() {
		e.ctrl.Terminate(OutcomeFailure, ReasonCancelled)
	}
	e.begin()
}

func (e *Env) begin() {
	e.rewards.Reset()
	e.handled.reset()
	e.ctrl.Begin()
	e.world.PlaceAgent(e.ctrl.Agent().Position)
}

// BeginTick opens a new tick: entities handled in the previous tick may be
// evaluated again.
func (e *Env) BeginTick() {
	e.handled.reset()
	e.ctrl.countTick()
}

// Observe encodes the current world. The returned slice is reused by the
// next call.
func (e *Env) Observe() []float64 {
	agent := e.ctrl.Agent().Position
	e.obsBuf = e.encoder.EncodeInto(e.obsBuf,
		agent,
		e.world.Entities(Hostile),
		e.world.Entities(Friendly),
	)
	return e.obsBuf
}

// ObservationSize is the padded observation length.
func (e *Env) ObservationSize() int {
	return e.encoder.Size()
}

// Act applies a policy action for a tick of dt seconds.
func (e *Env) Act(a Action, dt float64) {
	e.effector.Apply(a, dt)
}

// HandleCollision applies a contact reported by the world. Contacts with
// entities already handled this tick are ignored.
func (e *Env) HandleCollision(c Collision) {
	if !e.ctrl.Running() || e.handled.seen(c.Handle) {
		return
	}
	switch c.Category {
	case Hostile:
		e.ctrl.AddReward(e.cfg.Rewards.HostileCollision)
		e.ctrl.Terminate(OutcomeFailure, ReasonHostileCollision)
	case Friendly:
		if !e.handled.claim(c.Handle) || !e.world.Destroy(c.Handle) {
			return
		}
		e.ctrl.AddReward(e.cfg.Rewards.FriendlyCollision)
		e.ctrl.AddScore(e.cfg.Scores.FriendlyCollision)
	default:
		e.logger.Printf("env: ignoring collision with %s entity %d", c.Category, c.Handle)
	}
}

// SweepBreaches runs the line-breach monitor.
func (e *Env) SweepBreaches() int {
	return e.breaches.Sweep()
}

// Step runs one full tick against a world whose own update happens between
// the action and the breach sweep.
func (e *Env) Step(a Action, dt float64, update func(dt float64) []Collision) (obs []float64, reward float64, done bool) {
	e.BeginTick()
	e.Act(a, dt)
	if update != nil {
		for _, c := range update(dt) {
			e.HandleCollision(c)
		}
	}
	e.SweepBreaches()
	return e.Observe(), e.rewards.TakeTick(), e.Done()
}

// Done reports whether the current episode has terminated.
func (e *Env) Done() bool {
	return e.ctrl.State() == Terminated
}

func (e *Env) Score() int { return e.ctrl.Score() }
func (e *Env) Stats() Stats { return e.ctrl.Stats() }
func (e *Env) Agent() Agent { return e.ctrl.Agent() }
func (e *Env) State() State { return e.ctrl.State() }
func (e *Env) Outcome() Outcome { return e.ctrl.Outcome() }
func (e *Env) Reason() Reason { return e.ctrl.Reason() }
func (e *Env) EpisodeID() string { return e.ctrl.EpisodeID() }
func (e *Env) Rewards() *Accumulator { return e.rewards }
func (e *Env) Config() Config { return e.cfg }
func (e *Env) LastRecord() (EpisodeRecord, bool) { return e.ctrl.LastRecord() }

func (e *Env) String() string {
	return fmt.Sprintf("episode=%s state=%s score=%d x=%.2f", e.ctrl.EpisodeID(), e.ctrl.State(), e.ctrl.Score(), e.ctrl.Agent().Position.X)
}
