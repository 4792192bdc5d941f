package env

import (
	"io"
	"log"
	"math"
	"time"

	"github.com/milk9111/tankrl/common"
)

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration { return c.now }

// fakeWorld is an in-memory world. With lazy set, destroyed entities stay
// listed and Destroy keeps reporting success until flush, which is the
// worst case a collaborator can present.
type fakeWorld struct {
	ents     map[Handle]Entity
	order    []Handle
	dead     map[Handle]bool
	agent    common.Vec3
	lazy     bool
	next     Handle
	destroys int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{ents: make(map[Handle]Entity), dead: make(map[Handle]bool)}
}

func (w *fakeWorld) spawn(c Category, x, z float64) Handle {
	w.next++
	h := w.next
	w.ents[h] = Entity{Handle: h, Category: c, Position: common.Vec3{X: x, Z: z}}
	w.order = append(w.order, h)
	return h
}

func (w *fakeWorld) alive(h Handle) bool {
	_, ok := w.ents[h]
	return ok && !w.dead[h]
}

func (w *fakeWorld) visible(h Handle) bool {
	_, ok := w.ents[h]
	return ok && (w.lazy || !w.dead[h])
}

func (w *fakeWorld) Entities(c Category) []Entity {
	var out []Entity
	for _, h := range w.order {
		if e := w.ents[h]; w.visible(h) && e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

func (w *fakeWorld) Destroy(h Handle) bool {
	if !w.visible(h) {
		return false
	}
	if !w.lazy && w.dead[h] {
		return false
	}
	w.dead[h] = true
	w.destroys++
	return true
}

func (w *fakeWorld) flush() {
	for h := range w.dead {
		delete(w.ents, h)
	}
	w.dead = make(map[Handle]bool)
}

func (w *fakeWorld) PlaceAgent(pos common.Vec3) { w.agent = pos }

// Cast hits the nearest visible entity within one unit of the ray.
func (w *fakeWorld) Cast(origin, dir common.Vec3, maxDistance float64) (Hit, bool) {
	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, h := range w.order {
		if !w.visible(h) {
			continue
		}
		e := w.ents[h]
		d := e.Position.Sub(origin)
		along := d.X*dir.X + d.Z*dir.Z
		lateral := math.Abs(d.X*dir.Z - d.Z*dir.X)
		if along < 0 || along > maxDistance || lateral > 1 {
			continue
		}
		if along < best.Distance {
			best = Hit{Handle: h, Category: e.Category, Distance: along}
			found = true
		}
	}
	return best, found
}

type recorder struct {
	records []EpisodeRecord
}

func (r *recorder) EpisodeEnded(rec EpisodeRecord) { r.records = append(r.records, rec) }

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestEnv(cfg Config) (*Env, *fakeWorld, *fakeClock, *recorder) {
	w := newFakeWorld()
	clock := &fakeClock{}
	rec := &recorder{}
	e, err := New(cfg, w, w, clock, WithLogger(quietLogger()), WithObserver(rec))
	if err != nil {
		panic(err)
	}
	return e, w, clock, rec
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
