package ecs

type System interface {
	Update(w *World)
}

type Scheduler struct {
	systems []System
}

func NewScheduler(systems ...System) *Scheduler {
	copied := append([]System(nil), systems...)
	return &Scheduler{systems: copied}
}

// Update runs every system once with the given step length.
func (s *Scheduler) Update(w *World, dt float64) {
	w.SetDeltaTime(dt)
	for _, system := range s.systems {
		system.Update(w)
	}
}
