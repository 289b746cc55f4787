package simulation

import (
	"math"
	"math/rand"
)

// RNG is a per-process random source, threaded explicitly through the
// simulation and its faults instead of relying on a package-level global —
// per the design note on encapsulating RNG state.
type RNG struct {
	r *rand.Rand
}

// NewRNG seeds a fresh RNG. Two RNGs built from the same seed produce
// identical sequences, which is what makes the simulation
// deterministic-under-seed.
func NewRNG(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform sample in [0, 1).
func (g *RNG) Float64() float64 { return g.r.Float64() }

// Gauss returns a Normal(mean, stddev) sample.
func (g *RNG) Gauss(mean, stddev float64) float64 {
	return mean + stddev*g.r.NormFloat64()
}

// Gamma returns a Gamma(shape, scale) sample via Marsaglia & Tsang's method,
// boosted for shape < 1 per Marsaglia & Tsang (2000) section on small shape.
func (g *RNG) Gamma(shape, scale float64) float64 {
	if shape < 1 {
		u := g.r.Float64()
		return g.Gamma(shape+1, scale) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = g.r.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := g.r.Float64()
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// Beta returns a Beta(alpha, beta) sample via the Gamma-ratio construction
// X/(X+Y), X~Gamma(alpha,1), Y~Gamma(beta,1).
func (g *RNG) Beta(alpha, beta float64) float64 {
	x := g.Gamma(alpha, 1)
	y := g.Gamma(beta, 1)
	return x / (x + y)
}

// Uniform returns a uniform sample in [lo, hi).
func (g *RNG) Uniform(lo, hi float64) float64 {
	return lo + g.r.Float64()*(hi-lo)
}
