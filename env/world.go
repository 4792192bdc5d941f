package env

import (
	"time"

	"github.com/milk9111/tankrl/common"
)

// World is the query side of the simulation.
type World interface {
	// Entities returns the live entities of one category in the world's own
	// order.
	Entities(c Category) []Entity
	// Destroy removes an entity and reports whether it was alive.
	Destroy(h Handle) bool
	// PlaceAgent moves the agent's physical presence.
	PlaceAgent(pos common.Vec3)
}

// Probe casts a ray and returns the nearest entity hit.
type Probe interface {
	Cast(origin, dir common.Vec3, maxDistance float64) (Hit, bool)
}

// Clock returns simulation time.
type Clock interface {
	Now() time.Duration
}

// RewardSink receives reward deltas.
type RewardSink interface {
	AddReward(delta float64)
}

// EpisodeObserver is told about every finished episode.
type EpisodeObserver interface {
	EpisodeEnded(rec EpisodeRecord)
}

// ObserverFunc adapts a function to EpisodeObserver.
type ObserverFunc func(rec EpisodeRecord)

func (f ObserverFunc) EpisodeEnded(rec EpisodeRecord) { f(rec) }
