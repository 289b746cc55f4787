package simulation

import (
	"math"

	"github.com/jihwankim/windctl/internal/namespace"
)

// Component is the uniform contract every turbine sub-system implements:
// Readings projects current state into the published snapshot shape, and
// Tick advances state by one simulation step.
type Component interface {
	Readings() namespace.Reading
	Tick(wt *WindTurbine, env *Environment)
}

// Tower tracks a latent structural vibration frequency, a Normal(mean,var)
// draw clipped to [0, ∞) each tick — it does not depend on wind or rotor
// state.
type Tower struct {
	VibFreq float64

	mean, stddev float64
}

func NewTower(meanHz, varHz float64) *Tower {
	return &Tower{mean: meanHz, stddev: math.Sqrt(varHz)}
}

func (t *Tower) Tick(wt *WindTurbine, env *Environment) {
	t.VibFreq = math.Max(0, wt.RNG.Gauss(t.mean, t.stddev))
}

func (t *Tower) Readings() namespace.Reading {
	return namespace.Reading{"vib_freq": namespace.Number(t.VibFreq)}
}

// Rotor tracks the rotor's current rotations-per-second, driven toward a
// smoothstep target between the model's cut-in and rated wind speeds, with
// multiplicative Normal(1, relVar) noise.
type Rotor struct {
	RPS float64

	relativeStddev float64
}

func NewRotor(relativeVar float64) *Rotor {
	return &Rotor{relativeStddev: math.Sqrt(relativeVar)}
}

func (r *Rotor) Tick(wt *WindTurbine, env *Environment) {
	maxRPS := wt.Model.RotorRPM / 60
	target := smoothstep(env.Wind.Mag, wt.Model.CutIn, wt.Model.Rated-wt.Model.CutIn) * maxRPS
	noise := wt.RNG.Gauss(1, r.relativeStddev)
	r.RPS = math.Max(0, target*noise)
}

func (r *Rotor) Readings() namespace.Reading {
	return namespace.Reading{"rotor_rps": namespace.Number(r.RPS)}
}

// Generator tracks winding temperature and instantaneous power output.
// Power is computed from the rotor's RPS as it stood at the start of this
// tick (i.e. the prior tick's value) before Rotor.Tick advances it — see
// note on the fixed Generator→Tower→Rotor tick order.
type Generator struct {
	Temp  float64
	Power float64

	tempDiffMean, tempDiffStddev float64
}

func NewGenerator(tempDiffMean, tempDiffVar float64) *Generator {
	return &Generator{tempDiffMean: tempDiffMean, tempDiffStddev: math.Sqrt(tempDiffVar)}
}

func (g *Generator) Tick(wt *WindTurbine, env *Environment) {
	g.Temp = env.Temp + wt.RNG.Gauss(g.tempDiffMean, g.tempDiffStddev)
	maxRPS := wt.Model.RotorRPM / 60
	if maxRPS <= 0 {
		g.Power = 0
		return
	}
	g.Power = wt.Model.Capacity * (wt.Rotor.RPS / maxRPS)
}

func (g *Generator) Readings() namespace.Reading {
	return namespace.Reading{
		"gen_temp":  namespace.Number(g.Temp),
		"gen_power": namespace.Number(g.Power),
	}
}
