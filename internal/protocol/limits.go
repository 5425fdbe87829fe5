package protocol

// Limit is a min/max pulse-width pair in microseconds.
type Limit struct {
	Min int
	Max int
}

// LimitAssembler merges the two halves of a limit pair, which arrive as
// separate frames. Nothing is emitted until both halves have been seen once;
// after that every half re-emits the pair with the other half's last value.
type LimitAssembler struct {
	min     int
	max     int
	haveMin bool
	haveMax bool
}

// SetMin records the lower half. ok reports whether the pair is complete.
func (a *LimitAssembler) SetMin(v int) (l Limit, ok bool) {
	a.min, a.haveMin = v, true
	return a.pair()
}

// SetMax records the upper half. ok reports whether the pair is complete.
func (a *LimitAssembler) SetMax(v int) (l Limit, ok bool) {
	a.max, a.haveMax = v, true
	return a.pair()
}

func (a *LimitAssembler) pair() (Limit, bool) {
	if !a.haveMin || !a.haveMax {
		return Limit{}, false
	}
	return Limit{Min: a.min, Max: a.max}, true
}
