// Package trainer runs the environment loop: ask the policy, step the
// arena, settle rewards, and reset when an episode ends.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/milk9111/tankrl/arena"
	"github.com/milk9111/tankrl/env"
	"github.com/milk9111/tankrl/policy"
	"github.com/milk9111/tankrl/prefabs"
)

const DefaultDT = 0.02

var (
	ErrNilArena  = errors.New("trainer: nil arena")
	ErrNilPolicy = errors.New("trainer: nil policy")
)

// Snapshot is the latest runner state, safe to read from other goroutines.
type Snapshot struct {
	EpisodeID     string    `json:"episode_id"`
	Episode       int       `json:"episode"`
	Tick          int       `json:"tick"`
	Score         int       `json:"score"`
	State         string    `json:"state"`
	LastReward    float64   `json:"last_reward"`
	EpisodeReward float64   `json:"episode_reward"`
	Completed     int       `json:"completed"`
	Stats         env.Stats `json:"stats"`
}

type Option func(*Runner)

// WithDT sets the fixed tick length in seconds.
func WithDT(dt float64) Option {
	return func(r *Runner) {
		if dt > 0 {
			r.dt = dt
		}
	}
}

// WithMaxEpisodes stops Run after n finished episodes. Zero runs forever.
func WithMaxEpisodes(n int) Option {
	return func(r *Runner) { r.maxEpisodes = n }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers an extra episode observer, e.g. a store.
func WithObserver(o env.EpisodeObserver) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

type Runner struct {
	env    *env.Env
	arena  *arena.Arena
	policy policy.Policy
	clock  *SimClock
	logger *log.Logger

	dt          float64
	maxEpisodes int
	observers   []env.EpisodeObserver

	obs       []float64
	tick      int
	completed int

	mu          sync.RWMutex
	snap        Snapshot
	pendingSpec *prefabs.ArenaSpec
}

func NewRunner(cfg env.Config, a *arena.Arena, p policy.Policy, opts ...Option) (*Runner, error) {
	if a == nil {
		return nil, ErrNilArena
	}
	if p == nil {
		return nil, ErrNilPolicy
	}

	r := &Runner{
		arena:  a,
		policy: p,
		clock:  &SimClock{},
		logger: log.Default(),
		dt:     DefaultDT,
	}
	for _, opt := range opts {
		opt(r)
	}

	envOpts := []env.Option{env.WithLogger(r.logger), env.WithObserver(env.ObserverFunc(r.episodeEnded))}
	for _, o := range r.observers {
		envOpts = append(envOpts, env.WithObserver(o))
	}
	e, err := env.New(cfg, a, a, r.clock, envOpts...)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	r.env = e
	r.obs = e.Observe()
	r.publish(0)
	return r, nil
}

func (r *Runner) Env() *env.Env       { return r.env }
func (r *Runner) Arena() *arena.Arena { return r.arena }
func (r *Runner) Clock() *SimClock    { return r.clock }

// Run ticks until the episode limit is reached or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("trainer: running dt=%.3fs max_episodes=%d", r.dt, r.maxEpisodes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		finished, err := r.Tick(ctx)
		if err != nil {
			return err
		}
		if finished && r.maxEpisodes > 0 && r.completed >= r.maxEpisodes {
			r.logger.Printf("trainer: finished %d episodes", r.completed)
			return nil
		}
	}
}

// Tick runs one decision and one simulation step. It reports whether an
// episode ended; the next episode is started unless the limit is reached.
func (r *Runner) Tick(ctx context.Context) (bool, error) {
	r.applyPendingSpec()

	a, err := r.policy.Act(ctx, r.obs)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("trainer: policy: %w", err)
	}

	r.clock.Advance(r.dt)
	obs, reward, done := r.env.Step(a, r.dt, r.arena.Update)
	r.obs = obs
	r.tick++

	if fr, ok := r.policy.(policy.FeedbackReceiver); ok {
		fr.Feedback(reward, done, r.env.Score())
	}
	r.publish(reward)

	if !done {
		return false, nil
	}
	if r.maxEpisodes > 0 && r.completed >= r.maxEpisodes {
		return true, nil
	}
	r.Reset()
	return true, nil
}

// Reset clears the arena and starts a fresh episode.
func (r *Runner) Reset() {
	r.arena.Clear()
	r.env.Reset()
	r.obs = r.env.Observe()
	r.tick = 0
	r.publish(0)
}

// ApplySpec queues an arena spec to take effect before the next tick.
func (r *Runner) ApplySpec(spec *prefabs.ArenaSpec) {
	r.mu.Lock()
	r.pendingSpec = spec
	r.mu.Unlock()
}

func (r *Runner) applyPendingSpec() {
	r.mu.Lock()
	spec := r.pendingSpec
	r.pendingSpec = nil
	r.mu.Unlock()
	if spec == nil {
		return
	}
	if err := r.arena.ApplySpec(spec); err != nil {
		r.logger.Printf("trainer: rejected arena spec: %v", err)
	}
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

func (r *Runner) episodeEnded(rec env.EpisodeRecord) {
	r.completed++
	r.logger.Printf("trainer: episode %d %s reason=%s score=%d reward=%.4f ticks=%d",
		rec.Number, outcomeWord(rec.Success), rec.Reason, rec.FinalScore, rec.TotalReward, rec.Ticks)
}

func (r *Runner) publish(reward float64) {
	snap := Snapshot{
		EpisodeID:     r.env.EpisodeID(),
		Episode:       r.env.Stats().TotalEpisodes,
		Tick:          r.tick,
		Score:         r.env.Score(),
		State:         r.env.State().String(),
		LastReward:    reward,
		EpisodeReward: r.env.Rewards().Episode(),
		Completed:     r.completed,
		Stats:         r.env.Stats(),
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
}

func outcomeWord(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
