package env

// ledger remembers which entities already produced an effect this tick.
type ledger map[Handle]struct{}

// claim marks h and reports whether it was unclaimed.
func (l ledger) claim(h Handle) bool {
	if _, ok := l[h]; ok {
		return false
	}
	l[h] = struct{}{}
	return true
}

func (l ledger) seen(h Handle) bool {
	_, ok := l[h]
	return ok
}

func (l ledger) reset() {
	clear(l)
}
