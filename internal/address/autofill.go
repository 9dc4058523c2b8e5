package address

import "sync"

// AutoFill guards the pincode auto-fill race: the user keeps typing while a
// lookup is in flight, and only the result that belongs to the latest input
// may be applied. Each new input bumps a generation counter; a lookup result
// carrying a stale generation is dropped.
type AutoFill struct {
	mu    sync.Mutex
	gen   uint64
	city  string
	state string
}

func NewAutoFill() *AutoFill {
	return &AutoFill{}
}

// Next registers a new pincode input and returns the generation token the
// eventual lookup result must present.
func (a *AutoFill) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	return a.gen
}

// Resolve applies a lookup result if its generation is still current.
// It reports whether the fill was applied.
func (a *AutoFill) Resolve(gen uint64, loc Locality) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		return false
	}
	if loc.District != "" {
		a.city = loc.District
	}
	if loc.State != "" {
		a.state = loc.State
	}
	return true
}

// Fill returns the auto-filled city/state values.
func (a *AutoFill) Fill() (city, state string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.city, a.state
}
