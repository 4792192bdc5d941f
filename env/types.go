// Package env is the environment adapter between a tank arena and a
// learning policy: it encodes observations, applies actions, keeps the
// reward and score books and runs the episode state machine.
package env

import "github.com/milk9111/tankrl/common"

// Category discriminates the two kinds of tanks the agent sees.
type Category int

const (
	Hostile Category = iota + 1
	Friendly
)

func (c Category) String() string {
	switch c {
	case Hostile:
		return "hostile"
	case Friendly:
		return "friendly"
	default:
		return "unknown"
	}
}

// Handle identifies an entity owned by the world.
type Handle uint64

// Entity is one tank as reported by the world.
type Entity struct {
	Handle   Handle
	Category Category
	Position common.Vec3
}

// Hit is the nearest entity touched by a probe.
type Hit struct {
	Handle   Handle
	Category Category
	Distance float64
}

// Collision is a contact between the agent and a tank, reported by the
// world's physics.
type Collision struct {
	Handle   Handle
	Category Category
}

// Action is one policy decision.
type Action struct {
	Move float64 `json:"move"`
	Fire bool    `json:"fire"`
}
