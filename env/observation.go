package env

import "github.com/milk9111/tankrl/common"

// Per-slot layout is [dx, dz, distance, indicator].
const (
	SlotWidth = 4

	IndicatorHostile  = 1.0
	IndicatorFriendly = 0.0
	IndicatorEmpty    = -1.0
)

// Encoder turns a world snapshot into the policy's feature vector:
// agent x, then hostile slots, then friendly slots. Entities are encoded in
// the order the world returned them; only the first MaxHostiles and
// MaxFriendlies are used.
type Encoder struct {
	maxHostiles   int
	maxFriendlies int
	pad           bool
	sentinel      float64
}

func NewEncoder(cfg Config) Encoder {
	return Encoder{
		maxHostiles:   cfg.MaxHostiles,
		maxFriendlies: cfg.MaxFriendlies,
		pad:           cfg.PadObservations,
		sentinel:      cfg.SentinelDistance,
	}
}

// Size is the length of a padded observation.
func (e Encoder) Size() int {
	return 1 + (e.maxHostiles+e.maxFriendlies)*SlotWidth
}

// Padded reports whether absent slots are filled with sentinels. When false
// the vector shrinks with the entity count.
func (e Encoder) Padded() bool {
	return e.pad
}

// Encode builds a new observation.
func (e Encoder) Encode(agent common.Vec3, hostiles, friendlies []Entity) []float64 {
	return e.EncodeInto(make([]float64, 0, e.Size()), agent, hostiles, friendlies)
}

// EncodeInto appends the observation to dst[:0].
func (e Encoder) EncodeInto(dst []float64, agent common.Vec3, hostiles, friendlies []Entity) []float64 {
	out := append(dst[:0], agent.X)
	out = e.block(out, agent, hostiles, e.maxHostiles, IndicatorHostile)
	out = e.block(out, agent, friendlies, e.maxFriendlies, IndicatorFriendly)
	return out
}

func (e Encoder) block(out []float64, agent common.Vec3, ents []Entity, slots int, indicator float64) []float64 {
	n := min(len(ents), slots)
	for _, ent := range ents[:n] {
		d := ent.Position.Sub(agent)
		out = append(out, d.X, d.Z, d.LenXZ(), indicator)
	}
	if e.pad {
		for i := n; i < slots; i++ {
			out = append(out, 0, 0, e.sentinel, IndicatorEmpty)
		}
	}
	return out
}
