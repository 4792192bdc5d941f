package trainer

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/milk9111/tankrl/arena"
	"github.com/milk9111/tankrl/env"
	"github.com/milk9111/tankrl/policy"
	"github.com/milk9111/tankrl/prefabs"
)

func quietSpec() *prefabs.ArenaSpec {
	return &prefabs.ArenaSpec{
		Name:        "quiet",
		Seed:        3,
		SpawnZ:      10,
		SpawnX:      prefabs.RangeSpec{Min: -5, Max: 5},
		AgentRadius: 1.5,
		Hostile:     prefabs.TankSpec{Radius: 1.5, Speed: prefabs.RangeSpec{Min: 1, Max: 1}, SpawnInterval: 1000, MaxLive: 1},
		Friendly:    prefabs.TankSpec{Radius: 1.5, Speed: prefabs.RangeSpec{Min: 1, Max: 1}, SpawnInterval: 1000, MaxLive: 1},
	}
}

type recordLog struct {
	mu   sync.Mutex
	recs []env.EpisodeRecord
}

func (l *recordLog) EpisodeEnded(rec env.EpisodeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
}

func newTestRunner(t *testing.T, p policy.Policy, opts ...Option) (*Runner, *recordLog) {
	t.Helper()
	a, err := arena.New(quietSpec(), env.DefaultConfig().Spawn)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	recs := &recordLog{}
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0)), WithObserver(recs), WithDT(0.1)}, opts...)
	r, err := NewRunner(env.DefaultConfig(), a, p, opts...)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r, recs
}

func TestNewRunnerRejectsNil(t *testing.T) {
	a, err := arena.New(quietSpec(), env.DefaultConfig().Spawn)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	if _, err := NewRunner(env.DefaultConfig(), nil, policy.Constant(env.Action{})); !errors.Is(err, ErrNilArena) {
		t.Fatalf("expected ErrNilArena, got %v", err)
	}
	if _, err := NewRunner(env.DefaultConfig(), a, nil); !errors.Is(err, ErrNilPolicy) {
		t.Fatalf("expected ErrNilPolicy, got %v", err)
	}
	bad := env.DefaultConfig()
	bad.TargetScore = 0
	if _, err := NewRunner(bad, a, policy.Constant(env.Action{})); !errors.Is(err, env.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunStopsAfterMaxEpisodes(t *testing.T) {
	// Full right each tick moves 2 units; the bound at 30 is crossed on tick 16.
	r, recs := newTestRunner(t, policy.Constant(env.Action{Move: 1}), WithMaxEpisodes(2))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(recs.recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs.recs))
	}
	for i, rec := range recs.recs {
		if rec.Success || rec.Reason != env.ReasonOutOfBounds {
			t.Fatalf("record %d: expected out of bounds failure, got %+v", i, rec)
		}
		if rec.Ticks != 16 {
			t.Fatalf("record %d: expected 16 ticks, got %d", i, rec.Ticks)
		}
		if rec.Duration() != 1600*time.Millisecond {
			t.Fatalf("record %d: expected 1.6s, got %v", i, rec.Duration())
		}
	}
	if recs.recs[0].ID == recs.recs[1].ID {
		t.Fatalf("episodes should have distinct ids")
	}

	snap := r.Snapshot()
	if snap.Completed != 2 || snap.Stats.TotalEpisodes != 2 || snap.State != env.Terminated.String() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if r.Env().Agent().Position.X <= 30 {
		t.Fatalf("last episode should be left terminated past the bound")
	}
}

func TestTickResetsAfterEpisode(t *testing.T) {
	r, _ := newTestRunner(t, policy.Constant(env.Action{Move: 1}))

	for i := 0; i < 15; i++ {
		done, err := r.Tick(context.Background())
		if err != nil || done {
			t.Fatalf("tick %d: done=%v err=%v", i, done, err)
		}
	}
	done, err := r.Tick(context.Background())
	if err != nil || !done {
		t.Fatalf("expected episode end, done=%v err=%v", done, err)
	}

	if r.Env().State() != env.Running {
		t.Fatalf("expected a fresh episode, got %s", r.Env().State())
	}
	if got := r.Env().Agent().Position; got != env.DefaultConfig().Spawn {
		t.Fatalf("expected agent at spawn, got %+v", got)
	}
	snap := r.Snapshot()
	if snap.Tick != 0 || snap.Score != 0 || snap.Episode != 2 {
		t.Fatalf("unexpected snapshot after reset %+v", snap)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	r, _ := newTestRunner(t, policy.Constant(env.Action{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunStopsOnPolicyError(t *testing.T) {
	boom := errors.New("boom")
	r, _ := newTestRunner(t, policy.Func(func(context.Context, []float64) (env.Action, error) {
		return env.Action{}, boom
	}))
	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

type feedbackPolicy struct {
	policy.Policy
	calls int
	done  bool
}

func (f *feedbackPolicy) Feedback(_ float64, done bool, _ int) {
	f.calls++
	f.done = done
}

func TestTickSendsFeedback(t *testing.T) {
	fp := &feedbackPolicy{Policy: policy.Constant(env.Action{})}
	r, _ := newTestRunner(t, fp)
	for i := 0; i < 3; i++ {
		if _, err := r.Tick(context.Background()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if fp.calls != 3 || fp.done {
		t.Fatalf("expected 3 non-terminal feedbacks, got calls=%d done=%v", fp.calls, fp.done)
	}
	if got := r.Clock().Now(); got != 300*time.Millisecond {
		t.Fatalf("expected clock at 300ms, got %v", got)
	}
}

func TestApplySpecBetweenTicks(t *testing.T) {
	r, _ := newTestRunner(t, policy.Constant(env.Action{}))
	next := quietSpec()
	next.Name = "reloaded"
	r.ApplySpec(next)
	if r.Arena().Spec().Name != "quiet" {
		t.Fatalf("spec should wait for the next tick")
	}
	if _, err := r.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if r.Arena().Spec().Name != "reloaded" {
		t.Fatalf("expected reloaded spec, got %q", r.Arena().Spec().Name)
	}
}

func TestSnapshotConcurrentRead(t *testing.T) {
	r, _ := newTestRunner(t, policy.Constant(env.Action{Move: 0.5}), WithMaxEpisodes(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			_ = r.Snapshot()
		}
	}()

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cancel()
	wg.Wait()
	if r.Snapshot().Completed != 1 {
		t.Fatalf("expected one completed episode")
	}
}
