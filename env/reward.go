package env

// Accumulator is the bundled RewardSink. It keeps the reward collected since
// the last TakeTick and the running total for the episode.
type Accumulator struct {
	tick    float64
	episode float64
}

func (a *Accumulator) AddReward(delta float64) {
	a.tick += delta
	a.episode += delta
}

// TakeTick returns the reward gathered since the previous call and clears it.
func (a *Accumulator) TakeTick() float64 {
	r := a.tick
	a.tick = 0
	return r
}

// Tick returns the reward gathered since the previous TakeTick.
func (a *Accumulator) Tick() float64 { return a.tick }

// Episode returns the reward gathered since the last Reset.
func (a *Accumulator) Episode() float64 { return a.episode }

func (a *Accumulator) Reset() {
	a.tick = 0
	a.episode = 0
}
