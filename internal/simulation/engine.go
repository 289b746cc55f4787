// Package simulation is the deterministic-tick physics-style generator:
// autocorrelated environmental signals, per-turbine components, and
// probabilistic fault injection, published to the shared namespace once per
// tick.
package simulation

import (
	"context"
	"time"

	"github.com/jihwankim/windctl/internal/config"
	"github.com/jihwankim/windctl/internal/logging"
	"github.com/jihwankim/windctl/internal/metrics"
	"github.com/jihwankim/windctl/internal/namespace"
)

// ManagerClient is the subset of rpcmanager.Client the Engine needs,
// narrowed to an interface so the tick loop can be tested without a real
// TCP round trip.
type ManagerClient interface {
	GetSlotInto(slot string, dst interface{}) (present bool, err error)
	SetSlot(slot string, value interface{}) (version uint64, err error)
	AppendSlot(slot string, entry interface{}) (length int, err error)
	Log(msg, level string, timeSeconds float64) error
}

// Engine owns the simulated world: the Environment, every WindTurbine, the
// fault registry, and the bounded readings history. One Engine per process,
// for the process lifetime.
type Engine struct {
	cfg       *config.Config
	mapCfg    *config.MapConfig
	env       *Environment
	turbines  []*WindTurbine
	byID      map[string]*WindTurbine
	classes   []FaultClass
	rng       *RNG
	client    ManagerClient
	logger    *logging.Logger
	metrics   *metrics.Registry

	ticks      int64
	uptimeSecs float64
	history    []namespace.TickReadings

	windOverride *float64
}

// New constructs an Engine. It does not publish anything; PublishMapConfig
// writes map_cfg, which lets the Scheduler's startup rendezvous (polling for
// map_cfg's existence) proceed without waiting for the first tick.
func New(cfg *config.Config, mapCfg *config.MapConfig, seed int64, client ManagerClient, logger *logging.Logger, reg *metrics.Registry) *Engine {
	rng := NewRNG(seed)
	env := NewEnvironment(cfg, rng)

	e := &Engine{
		cfg:     cfg,
		mapCfg:  mapCfg,
		env:     env,
		classes: DefaultFaultClasses(),
		rng:     rng,
		client:  client,
		logger:  logger,
		metrics: reg,
		byID:    make(map[string]*WindTurbine),
	}

	ccfg := turbineComponentConfig{
		TowerVibFreqMean:    float64(cfg.TowerVibFreqMean),
		TowerVibFreqVar:     float64(cfg.TowerVibFreqVar),
		RotorRPSRelativeVar: float64(cfg.RotorRPSRelativeVar),
		GenTempDiffMean:     float64(cfg.GenTempDiffMean),
		GenTempDiffVar:      float64(cfg.GenTempDiffVar),
	}
	for _, t := range mapCfg.Turbines {
		model, _ := mapCfg.ModelByName(t.Model) // validated fatal at load time
		wm := modelFromConfig(model)
		wt := NewWindTurbine(t.ID, wm, ccfg, rng)
		e.turbines = append(e.turbines, wt)
		e.byID[t.ID] = wt
	}

	return e
}

// Warmup ticks the Engine warmup times with no publishing, so the
// autocorrelated residuals stabilize before the first observed reading.
func (e *Engine) Warmup(n int) {
	for i := 0; i < n; i++ {
		e.advance(nil)
	}
}

// PublishMapConfig writes the static map description to map_cfg.
func (e *Engine) PublishMapConfig() error {
	_, err := e.client.SetSlot(string(namespace.SlotMapConfig), e.mapCfg)
	return err
}

// Run ticks the Engine at the configured rate until ctx is cancelled or
// running reports false; both are checked once per iteration.
func (e *Engine) Run(ctx context.Context, running func() bool) error {
	period := time.Duration(float64(time.Second) / float64(e.cfg.TicksPerSecond))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for running() {
		if err := e.Step(); err != nil {
			e.logger.Error("simulation tick failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Step performs exactly one published tick: drains add_faults, advances the
// world, and publishes the resulting readings.
func (e *Engine) Step() error {
	faultIDs, err := e.drainAddFaults()
	if err != nil {
		e.logger.Warn("reading add_faults failed", "error", err.Error())
	}
	reading := e.advance(faultIDs)
	return e.publish(reading)
}

// drainAddFaults reads the add_faults control-surface slot and resets it to empty once consumed.
func (e *Engine) drainAddFaults() ([]string, error) {
	var ids []string
	present, err := e.client.GetSlotInto(string(namespace.SlotAddFaults), &ids)
	if err != nil || !present || len(ids) == 0 {
		return nil, err
	}
	if _, err := e.client.SetSlot(string(namespace.SlotAddFaults), []string{}); err != nil {
		e.logger.Warn("clearing add_faults failed", "error", err.Error())
	}
	return ids, nil
}

// advance runs one full tick: inject requested faults, tick the
// environment, tick every turbine, bump counters, and compute (but not
// publish) the resulting readings snapshot.
func (e *Engine) advance(faultIDs []string) namespace.TickReadings {
	for _, id := range faultIDs {
		if wt, ok := e.byID[id]; ok {
			wt.InjectFault(e.classes)
		} else {
			e.logger.Warn("add_faults: unknown turbine", "wt_id", id)
		}
	}

	e.env.Tick()
	if e.windOverride != nil {
		e.env.Wind.Mag = *e.windOverride
	}

	tickFreq := float64(e.cfg.TickFreq)
	activeFaults := 0
	for _, wt := range e.turbines {
		wt.Tick(e.env, e.classes, tickFreq)
		activeFaults += len(wt.Faults)
	}

	e.ticks++
	e.uptimeSecs += tickFreq

	if e.metrics != nil {
		e.metrics.SimulationTicks.Inc()
		e.metrics.ActiveFaults.Set(float64(activeFaults))
	}

	return e.snapshot()
}

func (e *Engine) snapshot() namespace.TickReadings {
	turbines := make([]namespace.Reading, len(e.turbines))
	for i, wt := range e.turbines {
		turbines[i] = wt.Readings()
	}

	return namespace.TickReadings{
		Ticks:      e.ticks,
		UptimeSecs: e.uptimeSecs,
		Env: map[string]namespace.Value{
			"wind_angle": namespace.Number(e.env.Wind.Angle),
			"wind_mag":   namespace.Number(e.env.Wind.Mag),
			"temp":       namespace.Number(e.env.Temp),
			"wave_mag":   namespace.Number(e.env.WaveMag),
			"visibility": namespace.Number(e.env.Visibility),
		},
		Turbines: turbines,
	}
}

// publish pushes reading onto the bounded history (dropping the oldest
// entry on overflow) and writes the whole queue to readings_queue.
func (e *Engine) publish(reading namespace.TickReadings) error {
	e.history = append(e.history, reading)
	historyLen := int(e.cfg.HistoryLength)
	if historyLen <= 0 {
		historyLen = 1024
	}
	if len(e.history) > historyLen {
		e.history = e.history[len(e.history)-historyLen:]
	}
	_, err := e.client.SetSlot(string(namespace.SlotReadingsQueue), e.history)
	return err
}

// History returns the current in-memory readings queue, primarily for tests.
func (e *Engine) History() []namespace.TickReadings { return e.history }

// Turbine looks up a turbine by ID, primarily for tests.
func (e *Engine) Turbine(id string) (*WindTurbine, bool) {
	wt, ok := e.byID[id]
	return wt, ok
}

// ForceWind pins wind.mag to mag on every subsequent tick (re-applied right
// after Environment.Tick, overriding the autocorrelated generator), the
// test-only hook boundary scenarios S1/S2 use to drive a deterministic wind
// value instead of relying on the RNG.
func (e *Engine) ForceWind(mag float64) {
	e.windOverride = &mag
	e.env.Wind.Mag = mag
}
