package env

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/milk9111/tankrl/common"
)

func placeAgentX(e *Env, x float64) {
	pos := e.ctrl.Agent().Position
	e.ctrl.MoveAgent(common.Vec3{X: x - pos.X})
	e.world.PlaceAgent(e.ctrl.Agent().Position)
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	w := newFakeWorld()
	clock := &fakeClock{}
	cases := []struct {
		name  string
		world World
		probe Probe
		clock Clock
		want  error
	}{
		{"world", nil, w, clock, ErrNilWorld},
		{"probe", w, nil, clock, ErrNilProbe},
		{"clock", w, w, nil, ErrNilClock},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := New(DefaultConfig(), c.world, c.probe, c.clock); !errors.Is(err, c.want) {
				t.Fatalf("expected %v, got %v", c.want, err)
			}
		})
	}
}

func TestMovementScenarios(t *testing.T) {
	cases := []struct {
		name    string
		startX  float64
		move    float64
		wantX   float64
		done    bool
		reward  float64
		outcome Outcome
	}{
		{"inside_bound", 29, 0.2, 29.4, false, -0.0005, OutcomeNone},
		{"past_right_bound", 29, 1.0, 31, true, -6.0005, OutcomeFailure},
		{"past_left_bound", -29, -1.0, -31, true, -6.0005, OutcomeFailure},
		{"unclamped_action", 0, 5, 10, false, -0.0005, OutcomeNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, w, _, _ := newTestEnv(DefaultConfig())
			placeAgentX(e, c.startX)

			e.BeginTick()
			e.Act(Action{Move: c.move}, 0.1)

			if got := e.Agent().Position.X; !approx(got, c.wantX) {
				t.Fatalf("x = %v, want %v", got, c.wantX)
			}
			if w.agent.X != e.Agent().Position.X {
				t.Fatalf("world agent x %v not synced with %v", w.agent.X, e.Agent().Position.X)
			}
			if e.Done() != c.done {
				t.Fatalf("done = %v, want %v", e.Done(), c.done)
			}
			if got := e.Rewards().TakeTick(); !approx(got, c.reward) {
				t.Fatalf("reward = %v, want %v", got, c.reward)
			}
			if e.Outcome() != c.outcome {
				t.Fatalf("outcome = %v, want %v", e.Outcome(), c.outcome)
			}
		})
	}
}

func TestOutOfBoundsSkipsFire(t *testing.T) {
	e, w, _, rec := newTestEnv(DefaultConfig())
	placeAgentX(e, 29)
	h := w.spawn(Hostile, 31, -25)

	e.BeginTick()
	e.Act(Action{Move: 1, Fire: true}, 0.1)

	if !w.alive(h) {
		t.Fatal("no fire resolution may happen on the boundary tick")
	}
	if e.Score() != 0 {
		t.Fatalf("score = %d, want 0", e.Score())
	}
	if e.Reason() != ReasonOutOfBounds {
		t.Fatalf("reason = %v", e.Reason())
	}
	if len(rec.records) != 1 || rec.records[0].Success {
		t.Fatalf("expected one failed record, got %+v", rec.records)
	}

	// a terminated episode ignores further actions
	e.BeginTick()
	e.Act(Action{Move: -1}, 0.1)
	if got := e.Rewards().TakeTick(); !approx(got, -6.0005) {
		t.Fatalf("reward after terminal tick = %v, want -6.0005", got)
	}
}

func TestHostileHitScenario(t *testing.T) {
	e, w, _, _ := newTestEnv(DefaultConfig())
	h := w.spawn(Hostile, 0, -25)

	e.BeginTick()
	e.Act(Action{Move: 0, Fire: true}, 0.02)

	if w.alive(h) {
		t.Fatal("hostile should be destroyed")
	}
	if got := e.Rewards().TakeTick(); !approx(got, 1.9995) {
		t.Fatalf("reward = %v, want 1.9995", got)
	}
	if e.Score() != 2 {
		t.Fatalf("score = %d, want 2", e.Score())
	}
	if e.State() != Running {
		t.Fatalf("state = %v, want running", e.State())
	}
}

func TestOnlyNearestHitResolved(t *testing.T) {
	e, w, _, _ := newTestEnv(DefaultConfig())
	far := w.spawn(Hostile, 0, -10)
	near := w.spawn(Friendly, 0, -30)

	e.BeginTick()
	e.Act(Action{Fire: true}, 0.02)

	if w.alive(near) || !w.alive(far) {
		t.Fatal("only the nearest entity on the ray may be hit")
	}
}

func TestFireOutOfRangeMisses(t *testing.T) {
	e, w, _, _ := newTestEnv(DefaultConfig())
	h := w.spawn(Hostile, 0, 0)

	e.BeginTick()
	e.Act(Action{Fire: true}, 0.02)

	if !w.alive(h) || e.Score() != 0 {
		t.Fatal("hostile 35 units away is out of range")
	}
}

func TestFriendlyHitPenalty(t *testing.T) {
	e, w, _, _ := newTestEnv(DefaultConfig())
	h := w.spawn(Friendly, 0, -20)

	e.BeginTick()
	e.Act(Action{Fire: true}, 0.02)

	if w.alive(h) {
		t.Fatal("friendly should be destroyed")
	}
	if e.Score() != -1 {
		t.Fatalf("score = %d, want -1", e.Score())
	}
	if got := e.Rewards().TakeTick(); !approx(got, -1.0005) {
		t.Fatalf("reward = %v, want -1.0005", got)
	}
	if e.Done() {
		t.Fatal("friendly fire must not end the episode")
	}
}

func TestTargetScoreEndsEpisodeInSuccess(t *testing.T) {
	e, w, clock, rec := newTestEnv(DefaultConfig())
	clock.now = 3 * time.Second
	e.Reset()
	before := e.Stats()

	for i := 0; i < 10; i++ {
		if e.Done() {
			t.Fatalf("episode ended early after %d hits", i)
		}
		clock.now += 1500 * time.Millisecond
		w.spawn(Hostile, 0, -20)
		e.BeginTick()
		e.Act(Action{Fire: true}, 0.02)
	}

	if !e.Done() || e.Outcome() != OutcomeSuccess || e.Reason() != ReasonTargetReached {
		t.Fatalf("expected success, got state=%v outcome=%v reason=%v", e.State(), e.Outcome(), e.Reason())
	}
	if e.Score() != 20 {
		t.Fatalf("score = %d, want 20", e.Score())
	}
	after := e.Stats()
	if after.SuccessfulEpisodes != before.SuccessfulEpisodes+1 {
		t.Fatalf("successful episodes %d -> %d", before.SuccessfulEpisodes, after.SuccessfulEpisodes)
	}
	if !approx(after.RunningTotalTime-before.RunningTotalTime, 15) {
		t.Fatalf("running total time grew by %v, want 15", after.RunningTotalTime-before.RunningTotalTime)
	}
	if !approx(after.AverageTimeToTarget(), 15) {
		t.Fatalf("average time = %v, want 15", after.AverageTimeToTarget())
	}

	last := rec.records[len(rec.records)-1]
	if !last.Success || last.FinalScore != 20 || last.Duration() != 15*time.Second {
		t.Fatalf("unexpected record %+v", last)
	}
	if !approx(last.TotalReward, 10*1.9995) {
		t.Fatalf("record reward = %v, want %v", last.TotalReward, 10*1.9995)
	}

	// further hits in the terminated episode change nothing
	w.spawn(Hostile, 0, -20)
	e.BeginTick()
	e.Act(Action{Fire: true}, 0.02)
	if e.Score() != 20 || e.Stats() != after {
		t.Fatal("terminated episode must not process actions")
	}
}

func TestBreachSweep(t *testing.T) {
	e, w, _, _ := newTestEnv(DefaultConfig())
	hostile := w.spawn(Hostile, 5, -36)
	friendly := w.spawn(Friendly, -5, -40)
	ahead := w.spawn(Hostile, 10, -34)

	e.BeginTick()
	if n := e.SweepBreaches(); n != 2 {
		t.Fatalf("applied %d breaches, want 2", n)
	}
	if w.alive(hostile) || w.alive(friendly) || !w.alive(ahead) {
		t.Fatal("only entities behind the line are removed")
	}
	if e.Score() != 1 {
		t.Fatalf("score = %d, want -1+2", e.Score())
	}
	if got := e.Rewards().TakeTick(); !approx(got, 1) {
		t.Fatalf("reward = %v, want 1", got)
	}
	if e.Done() {
		t.Fatal("breaches never end the episode")
	}
}

func TestBreachCountedOncePerTickWithStaleWorld(t *testing.T) {
	e, w, _, _ := newTestEnv(DefaultConfig())
	w.lazy = true
	w.spawn(Hostile, 0, -40)

	e.BeginTick()
	e.SweepBreaches()
	e.SweepBreaches()

	if e.Score() != -1 {
		t.Fatalf("score = %d, want -1", e.Score())
	}
	if w.destroys != 1 {
		t.Fatalf("destroy called %d times, want 1", w.destroys)
	}
}

func TestHitThenBreachSameEntityCountsOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Forward = common.Vec3{Z: -1}
	e, w, _, _ := newTestEnv(cfg)
	w.lazy = true
	w.spawn(Hostile, 0, -40)

	e.BeginTick()
	e.Act(Action{Fire: true}, 0.02)
	e.SweepBreaches()

	if e.Score() != 2 {
		t.Fatalf("score = %d, want 2 from the hit only", e.Score())
	}
}

func TestHostileCollisionEndsEpisode(t *testing.T) {
	e, w, _, rec := newTestEnv(DefaultConfig())
	h := w.spawn(Hostile, 0, -35)
	f := w.spawn(Friendly, 1, -35)

	e.BeginTick()
	e.HandleCollision(Collision{Handle: h, Category: Hostile})
	e.HandleCollision(Collision{Handle: f, Category: Friendly})

	if e.Outcome() != OutcomeFailure || e.Reason() != ReasonHostileCollision {
		t.Fatalf("outcome=%v reason=%v", e.Outcome(), e.Reason())
	}
	if got := e.Rewards().TakeTick(); !approx(got, -3) {
		t.Fatalf("reward = %v, want -3", got)
	}
	if !w.alive(f) {
		t.Fatal("collisions after termination are ignored")
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(rec.records))
	}
}

func TestFriendlyCollisionIdempotent(t *testing.T) {
	e, w, _, _ := newTestEnv(DefaultConfig())
	w.lazy = true
	f := w.spawn(Friendly, 0, -35)

	e.BeginTick()
	e.HandleCollision(Collision{Handle: f, Category: Friendly})
	e.HandleCollision(Collision{Handle: f, Category: Friendly})

	if e.Score() != -1 {
		t.Fatalf("score = %d, want -1", e.Score())
	}
	if got := e.Rewards().TakeTick(); !approx(got, -1) {
		t.Fatalf("reward = %v, want -1", got)
	}
	if e.Done() {
		t.Fatal("friendly collision is not terminal")
	}

	// next tick, the world has really removed it
	w.flush()
	e.BeginTick()
	e.HandleCollision(Collision{Handle: f, Category: Friendly})
	if e.Score() != -1 {
		t.Fatal("a dead entity must not score again")
	}
}

func TestResetInvariants(t *testing.T) {
	e, w, _, rec := newTestEnv(DefaultConfig())
	placeAgentX(e, 12)
	w.spawn(Hostile, 12, -20)
	e.BeginTick()
	e.Act(Action{Move: 1, Fire: true}, 1)
	if !e.Done() {
		t.Fatal("expected out of bounds")
	}
	before := e.Stats().TotalEpisodes
	firstID := e.EpisodeID()

	e.Reset()

	if got := e.Agent().Position; got != (common.Vec3{Z: -35}) {
		t.Fatalf("position = %+v, want spawn", got)
	}
	if w.agent != (common.Vec3{Z: -35}) {
		t.Fatalf("world agent = %+v, want spawn", w.agent)
	}
	if e.Score() != 0 || e.State() != Running {
		t.Fatalf("score=%d state=%v after reset", e.Score(), e.State())
	}
	if got := e.Stats().TotalEpisodes; got != before+1 {
		t.Fatalf("total episodes %d -> %d", before, got)
	}
	if e.EpisodeID() == firstID {
		t.Fatal("reset should start a new episode id")
	}
	if e.Rewards().Episode() != 0 {
		t.Fatal("episode reward should be cleared")
	}
	if len(rec.records) != 1 {
		t.Fatalf("reset after termination must not emit another record, got %d", len(rec.records))
	}
}

func TestResetWhileRunningCancels(t *testing.T) {
	e, _, _, rec := newTestEnv(DefaultConfig())
	e.Reset()
	if len(rec.records) != 1 || rec.records[0].Reason != ReasonCancelled {
		t.Fatalf("expected a cancelled record, got %+v", rec.records)
	}
	if e.Stats().TotalEpisodes != 2 {
		t.Fatalf("total episodes = %d, want 2", e.Stats().TotalEpisodes)
	}
}

func TestStatsGuardZeroDenominators(t *testing.T) {
	var s Stats
	if !math.IsNaN(s.SuccessRate()) || !math.IsNaN(s.AverageTimeToTarget()) {
		t.Fatal("empty stats should report NaN")
	}
	s = Stats{TotalEpisodes: 4, SuccessfulEpisodes: 1, RunningTotalTime: 12}
	if s.SuccessRate() != 0.25 || s.AverageTimeToTarget() != 12 {
		t.Fatalf("rate=%v avg=%v", s.SuccessRate(), s.AverageTimeToTarget())
	}
}

func TestStepRunsFullTick(t *testing.T) {
	e, w, _, _ := newTestEnv(DefaultConfig())
	w.spawn(Hostile, 0, -20)
	behind := w.spawn(Friendly, 3, -36)

	obs, reward, done := e.Step(Action{Fire: true}, 0.02, func(dt float64) []Collision {
		return nil
	})

	if done {
		t.Fatal("unexpected terminal tick")
	}
	if w.alive(behind) {
		t.Fatal("breach sweep should run inside Step")
	}
	if !approx(reward, 2-0.0005+2) {
		t.Fatalf("reward = %v", reward)
	}
	if len(obs) != e.ObservationSize() {
		t.Fatalf("obs len = %d", len(obs))
	}
	if e.Score() != 4 {
		t.Fatalf("score = %d, want 4", e.Score())
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"zero_force", func(c *Config) { c.ForceMultiplier = 0 }, false},
		{"zero_range", func(c *Config) { c.ShootRange = 0 }, false},
		{"zero_target", func(c *Config) { c.TargetScore = 0 }, false},
		{"negative_slots", func(c *Config) { c.MaxHostiles = -1 }, false},
		{"no_forward", func(c *Config) { c.Forward = common.Vec3{Y: 1} }, false},
		{"spawn_outside", func(c *Config) { c.Spawn.X = 31 }, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.mutate(&cfg)
			err := cfg.Validate()
			if (err == nil) != c.ok {
				t.Fatalf("Validate() = %v, ok=%v", err, c.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("error %v should wrap ErrInvalidConfig", err)
			}
		})
	}
}
