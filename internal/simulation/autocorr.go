package simulation

// dist draws a fresh, uncorrelated sample for a given generator offset
// (simulated time position). Each environmental signal supplies its own.
type dist func(offset float64) float64

// Autocorr is an explicit stateful object implementing an autocorrelated
// generator pipeline: each step blends a fresh draw with the previous
// output so consecutive samples stay smooth.
//
// Defaults alpha=2, beta=20 (distinct from the Beta(20,2) severity draws
// used by faults — don't conflate the two).
type Autocorr struct {
	dist      dist
	residual  float64
	offset    float64
	increment float64
	alpha     float64
	beta      float64
	rng       *RNG
}

// AutocorrOption customizes a newly constructed Autocorr.
type AutocorrOption func(*Autocorr)

func WithAlphaBeta(alpha, beta float64) AutocorrOption {
	return func(a *Autocorr) { a.alpha, a.beta = alpha, beta }
}

func WithOffset(offset float64) AutocorrOption {
	return func(a *Autocorr) { a.offset = offset }
}

// NewAutocorr builds an Autocorr seeded by one draw from d at the initial
// offset, advancing the offset once.
func NewAutocorr(rng *RNG, d dist, increment float64, opts ...AutocorrOption) *Autocorr {
	a := &Autocorr{dist: d, increment: increment, alpha: 2, beta: 20, rng: rng}
	for _, opt := range opts {
		opt(a)
	}
	a.residual = a.dist(a.offset)
	a.offset += a.increment
	return a
}

// Next advances the process one step and returns the new sample.
func (a *Autocorr) Next() float64 {
	blend := a.rng.Beta(a.alpha, a.beta)
	x0 := a.dist(a.offset)
	x := blend*x0 + (1-blend)*a.residual
	a.residual = x
	a.offset += a.increment
	return x
}
