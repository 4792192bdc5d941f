package env

// BreachMonitor removes tanks that crossed the agent's line.
type BreachMonitor struct {
	cfg   Config
	world World
	ctrl  *Controller
	claim func(Handle) bool
}

// Sweep scans every live tank once and returns how many breaches it applied.
// Intents are collected first and applied after the scan so the world's
// collections are never mutated while being read.
func (m *BreachMonitor) Sweep() int {
	if !m.ctrl.Running() {
		return 0
	}
	line := m.ctrl.Agent().Position.Z

	var intents []Entity
	for _, c := range []Category{Hostile, Friendly} {
		for _, e := range m.world.Entities(c) {
			if e.Position.Z < line {
				intents = append(intents, e)
			}
		}
	}

	applied := 0
	for _, e := range intents {
		if !m.claim(e.Handle) || !m.world.Destroy(e.Handle) {
			continue
		}
		switch e.Category {
		case Hostile:
			m.ctrl.AddScore(m.cfg.Scores.HostileBreach)
			m.ctrl.AddReward(m.cfg.Rewards.HostileBreach)
		case Friendly:
			m.ctrl.AddScore(m.cfg.Scores.FriendlyBreach)
			m.ctrl.AddReward(m.cfg.Rewards.FriendlyBreach)
		}
		applied++
	}
	return applied
}
