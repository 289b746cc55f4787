package simulation

import (
	"math"

	"github.com/jihwankim/windctl/internal/config"
)

// Wind is the current wind vector: direction in radians and magnitude in m/s.
type Wind struct {
	Angle float64
	Mag   float64
}

// Environment holds the current values of every environmental signal plus
// the generator handles that advance them. Constructed once per Simulation
// and mutated in place by Tick.
type Environment struct {
	Wind       Wind
	Temp       float64
	WaveMag    float64
	Visibility float64

	tempMean float64

	windAngleGen  *Autocorr
	windMagGen    *Autocorr
	tempDailyGen  *Autocorr
	tempAnnualGen *Autocorr
}

// NewEnvironment builds the four autocorrelated generators from cfg and
// draws the one-shot wave_mag/visibility values: these two are sampled once
// at construction and held constant for the process lifetime rather than
// advanced every tick.
func NewEnvironment(cfg *config.Config, rng *RNG) *Environment {
	ticksPerDay := cfg.TicksPerDay()
	ticksPerYear := cfg.TicksPerYear()

	windMagMean := float64(cfg.WindMagMean)
	windMagVar := float64(cfg.WindMagVar)
	windAngleJitter := float64(cfg.WindAngleJitter)
	windMagJitter := float64(cfg.WindMagJitter)

	tempDailySpread := float64(cfg.TempDailySpread)
	tempDailyStd := float64(cfg.TempDailyStd)
	tempAnnualSpread := float64(cfg.TempAnnualSpread)
	tempAnnualStd := float64(cfg.TempAnnualStd)

	env := &Environment{tempMean: float64(cfg.TempMean)}

	env.windAngleGen = NewAutocorr(rng, func(offset float64) float64 {
		return rng.Gauss(0, windAngleJitter)
	}, 1/ticksPerDay)

	env.windMagGen = NewAutocorr(rng, func(offset float64) float64 {
		return windMagMean + rng.Gauss(0, math.Sqrt(windMagVar))*windMagJitter
	}, 1/ticksPerDay)

	env.tempDailyGen = NewAutocorr(rng, func(offset float64) float64 {
		return tempDailySpread*math.Sin(2*math.Pi*offset) + rng.Gauss(0, tempDailyStd)
	}, 1/ticksPerDay)

	env.tempAnnualGen = NewAutocorr(rng, func(offset float64) float64 {
		return tempAnnualSpread*math.Sin(2*math.Pi*offset) + rng.Gauss(0, tempAnnualStd)
	}, 1/ticksPerYear)

	env.Wind = Wind{Angle: env.windAngleGen.residual, Mag: math.Max(0, env.windMagGen.residual)}
	env.Temp = env.tempMean + env.tempDailyGen.residual + env.tempAnnualGen.residual

	waveMagMean := float64(cfg.WaveMagMean)
	waveMagVar := float64(cfg.WaveMagVar)
	if waveMagVar <= 0 {
		waveMagVar = 1e-6
	}
	shape := waveMagMean * waveMagMean / waveMagVar
	scale := waveMagVar / waveMagMean
	env.WaveMag = rng.Gamma(shape, scale)

	visibility := rng.Gauss(float64(cfg.VisibilityMean), math.Sqrt(float64(cfg.VisibilityVar)))
	env.Visibility = math.Max(10, visibility)

	return env
}

// Tick advances the wind and temperature generators one step. wave_mag and
// visibility were drawn once at construction and are never updated again.
func (e *Environment) Tick() {
	e.Wind.Angle = e.windAngleGen.Next()
	e.Wind.Mag = math.Max(0, e.windMagGen.Next())
	e.Temp = e.tempMean + e.tempDailyGen.Next() + e.tempAnnualGen.Next()
}
