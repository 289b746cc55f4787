package simulation

import "github.com/jihwankim/windctl/internal/namespace"

// WindTurbine is one simulated turbine: a stable identity, its assigned
// model, its three sub-components (Tower, Rotor, Generator), and the list
// of faults currently affecting it. Created once at Engine startup and
// mutated every tick for the process lifetime.
type WindTurbine struct {
	ID    string
	Model WindTurbineModel

	Tower     *Tower
	Rotor     *Rotor
	Generator *Generator

	Faults []Fault

	RNG *RNG
}

// NewWindTurbine builds a turbine from its model and the config-derived
// component parameters.
func NewWindTurbine(id string, model WindTurbineModel, cfg turbineComponentConfig, rng *RNG) *WindTurbine {
	return &WindTurbine{
		ID:        id,
		Model:     model,
		Tower:     NewTower(cfg.TowerVibFreqMean, cfg.TowerVibFreqVar),
		Rotor:     NewRotor(cfg.RotorRPSRelativeVar),
		Generator: NewGenerator(cfg.GenTempDiffMean, cfg.GenTempDiffVar),
		RNG:       rng,
	}
}

// turbineComponentConfig is the slice of the simulation Config each
// component constructor needs, passed by value to keep WindTurbine
// construction decoupled from the config package's Num type.
type turbineComponentConfig struct {
	TowerVibFreqMean    float64
	TowerVibFreqVar     float64
	RotorRPSRelativeVar float64
	GenTempDiffMean     float64
	GenTempDiffVar      float64
}

// Tick advances wt one fixed-order step: before_tick hooks, then components
// in Generator, Tower, Rotor order, then probabilistic fault arrival, then
// after_tick hooks.
func (wt *WindTurbine) Tick(env *Environment, classes []FaultClass, tickFreq float64) {
	for _, f := range wt.Faults {
		f.BeforeTick(wt, env)
	}

	wt.Generator.Tick(wt, env)
	wt.Tower.Tick(wt, env)
	wt.Rotor.Tick(wt, env)

	for _, class := range classes {
		if wt.RNG.Float64() < class.ArrivalProb*tickFreq {
			wt.Faults = append(wt.Faults, class.New(wt.RNG))
		}
	}

	for _, f := range wt.Faults {
		f.AfterTick(wt, env)
	}
}

// InjectFault appends a fault of the first registered class, the behavior
// driven by the add_faults external control surface.
func (wt *WindTurbine) InjectFault(classes []FaultClass) {
	if len(classes) == 0 {
		return
	}
	wt.Faults = append(wt.Faults, classes[0].New(wt.RNG))
}

// Readings assembles wt's contribution to one tick's snapshot.
func (wt *WindTurbine) Readings() namespace.Reading {
	r := namespace.Reading{
		"wt_id":      namespace.String(wt.ID),
		"model_name": namespace.String(wt.Model.Name),
	}
	for k, v := range wt.Tower.Readings() {
		r[k] = v
	}
	for k, v := range wt.Rotor.Readings() {
		r[k] = v
	}
	for k, v := range wt.Generator.Readings() {
		r[k] = v
	}

	faults := make([]namespace.Value, len(wt.Faults))
	for i, f := range wt.Faults {
		faults[i] = namespace.Object(f.Readings())
	}
	r["_faults"] = namespace.Array(faults)
	return r
}
