package simulation

import "github.com/jihwankim/windctl/internal/namespace"

// Fault is a registered effect attached to a turbine that perturbs component
// readings via hooks run immediately before and after a tick's component
// updates
type Fault interface {
	Name() string
	BeforeTick(wt *WindTurbine, env *Environment)
	AfterTick(wt *WindTurbine, env *Environment)
	Readings() namespace.Reading
}

// FaultClass is a registered fault type: a name, its per-tick arrival
// probability (applied as p × tick_freq, and a
// constructor drawing the fault's severity from the process RNG.
type FaultClass struct {
	Name        string
	ArrivalProb float64
	New         func(rng *RNG) Fault
}

// DefaultFaultClasses is the initial fault registry: two variants, both with
// severity drawn from Beta(20,2), a distribution concentrated near 1 so most
// faults are mild and the occasional draw is severe.
func DefaultFaultClasses() []FaultClass {
	return []FaultClass{
		{
			Name:        "rotor_blade_surface_crack",
			ArrivalProb: 1e-5,
			New: func(rng *RNG) Fault {
				return &RotorBladeSurfaceCrack{RPSFactor: rng.Beta(20, 2)}
			},
		},
		{
			Name:        "generator_damage",
			ArrivalProb: 1e-5,
			New: func(rng *RNG) Fault {
				return &GeneratorDamage{PowerFactor: rng.Beta(20, 2)}
			},
		},
	}
}

// RotorBladeSurfaceCrack derates rotor RPS by a fixed multiplicative factor
// for the rest of the turbine's lifetime.
type RotorBladeSurfaceCrack struct {
	RPSFactor float64
}

func (f *RotorBladeSurfaceCrack) Name() string { return "rotor_blade_surface_crack" }

func (f *RotorBladeSurfaceCrack) BeforeTick(wt *WindTurbine, env *Environment) {}

func (f *RotorBladeSurfaceCrack) AfterTick(wt *WindTurbine, env *Environment) {
	wt.Rotor.RPS *= f.RPSFactor
}

func (f *RotorBladeSurfaceCrack) Readings() namespace.Reading {
	return namespace.Reading{
		"type":       namespace.String(f.Name()),
		"rps_factor": namespace.Number(f.RPSFactor),
	}
}

// GeneratorDamage derates generator power output by a fixed multiplicative
// factor for the rest of the turbine's lifetime.
type GeneratorDamage struct {
	PowerFactor float64
}

func (f *GeneratorDamage) Name() string { return "generator_damage" }

func (f *GeneratorDamage) BeforeTick(wt *WindTurbine, env *Environment) {}

func (f *GeneratorDamage) AfterTick(wt *WindTurbine, env *Environment) {
	wt.Generator.Power *= f.PowerFactor
}

func (f *GeneratorDamage) Readings() namespace.Reading {
	return namespace.Reading{
		"type":         namespace.String(f.Name()),
		"power_factor": namespace.Number(f.PowerFactor),
	}
}
