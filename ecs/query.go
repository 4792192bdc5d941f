package ecs

import "github.com/milk9111/tankrl/ecs/component"

// Query returns live entities that own every listed component. The result is
// a snapshot: destroying entities while walking it is safe.
func (w *World) Query(kinds ...component.ComponentID) []Entity {
	if w == nil || len(kinds) == 0 {
		return nil
	}
	sets := make([]*SparseSet, 0, len(kinds))
	for _, k := range kinds {
		set := w.stores[k]
		if set == nil || set.Len() == 0 {
			return nil
		}
		sets = append(sets, set)
	}

	smallest := sets[0]
	for _, set := range sets[1:] {
		if set.Len() < smallest.Len() {
			smallest = set
		}
	}

	out := make([]Entity, 0, smallest.Len())
outer:
	for _, id := range smallest.Entities() {
		for _, set := range sets {
			if set != smallest && !set.Has(id) {
				continue outer
			}
		}
		if e, ok := w.entities.handle(id); ok {
			out = append(out, e)
		}
	}
	return out
}

// ForEach calls fn for every live entity owning kind.
func ForEach[T any](w *World, kind component.ComponentKind[T], fn func(Entity, *T)) {
	if w == nil || fn == nil {
		return
	}
	for _, e := range w.Query(kind.ID()) {
		if v, ok := Get(w, e, kind); ok {
			fn(e, v)
		}
	}
}

// ForEach2 calls fn for every live entity owning both kinds.
func ForEach2[A, B any](w *World, ka component.ComponentKind[A], kb component.ComponentKind[B], fn func(Entity, *A, *B)) {
	if w == nil || fn == nil {
		return
	}
	for _, e := range w.Query(ka.ID(), kb.ID()) {
		a, okA := Get(w, e, ka)
		b, okB := Get(w, e, kb)
		if okA && okB {
			fn(e, a, b)
		}
	}
}
