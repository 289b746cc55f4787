// Package scheduler implements the Drone Scheduling Engine: an
// event-driven control loop that matches turbine fault alerts to idle
// drones by proximity and drives each drone's state machine to completion.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/jihwankim/windctl/internal/config"
	"github.com/jihwankim/windctl/internal/logging"
	"github.com/jihwankim/windctl/internal/metrics"
	"github.com/jihwankim/windctl/internal/namespace"
)

// TimeDelta is the scheduler's fixed tick period.
const TimeDelta = 1 * time.Second

// DefaultMargin is the distance (meters) below which a travelling or
// returning drone is considered to have arrived.
const DefaultMargin = 25.0

// DefaultSpeed is a drone's constant speed in meters per tick.
const DefaultSpeed = 250.0

// DefaultInspectionTicks is how many scheduler ticks an inspection occupies,
// matching boundary scenario S4's "after 10 more ticks".
const DefaultInspectionTicks = 10

// ManagerClient is the subset of rpcmanager.Client the Scheduler needs.
type ManagerClient interface {
	GetSlotInto(slot string, dst interface{}) (present bool, err error)
	SetSlot(slot string, value interface{}) (version uint64, err error)
	AppendSlot(slot string, entry interface{}) (length int, err error)
	Log(msg, level string, timeSeconds float64) error
}

// turbineInfo is the slice of config.Turbine the Scheduler needs to resolve
// an alert's position.
type turbineInfo struct {
	Pos Position
}

// Scheduler owns the drone fleet and drives the dispatch algorithm once per
// tick.
type Scheduler struct {
	drones        []*Drone
	turbinesByID  map[string]turbineInfo
	proj          *Projector
	margin        float64
	inspectionTks int

	faultQueue []string // alerts carried over because no idle drone was free

	client  ManagerClient
	logger  *logging.Logger
	metrics *metrics.Registry

	uptimeSecs float64
}

// New builds a Scheduler with one drone per station, per the original
// prototype's Drone.from_map behavior.
func New(mapCfg *config.MapConfig, speed, margin float64, inspectionTicks int, client ManagerClient, logger *logging.Logger, reg *metrics.Registry) *Scheduler {
	if margin <= 0 {
		margin = DefaultMargin
	}
	if speed <= 0 {
		speed = DefaultSpeed
	}
	if inspectionTicks <= 0 {
		inspectionTicks = DefaultInspectionTicks
	}

	turbinesByID := make(map[string]turbineInfo, len(mapCfg.Turbines))
	for _, t := range mapCfg.Turbines {
		turbinesByID[t.ID] = turbineInfo{Pos: Position{Lat: float64(t.Lat), Lng: float64(t.Lng)}}
	}

	var bias Position
	if len(mapCfg.Stations) > 0 {
		bias = Position{Lat: float64(mapCfg.Stations[0].Lat), Lng: float64(mapCfg.Stations[0].Lng)}
	}
	proj := NewProjector(bias)

	s := &Scheduler{
		turbinesByID:  turbinesByID,
		proj:          proj,
		margin:        margin,
		inspectionTks: inspectionTicks,
		client:        client,
		logger:        logger,
		metrics:       reg,
	}

	for _, st := range mapCfg.Stations {
		station := &Station{ID: st.ID, Pos: Position{Lat: float64(st.Lat), Lng: float64(st.Lng)}}
		s.drones = append(s.drones, NewDrone("drone-"+st.ID, station, speed))
	}
	return s
}

// AwaitMapConfig polls the map_cfg slot every 100ms until it is present,
// implementing the Scheduler's only unbounded wait since the Scheduler has no work before the map exists.
func AwaitMapConfig(ctx context.Context, client ManagerClient) (*config.MapConfig, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		var mc config.MapConfig
		present, err := client.GetSlotInto(string(namespace.SlotMapConfig), &mc)
		if err == nil && present {
			return &mc, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run drives the dispatch algorithm once per TimeDelta until ctx is
// cancelled or running reports false.
func (s *Scheduler) Run(ctx context.Context, running func() bool) error {
	ticker := time.NewTicker(TimeDelta)
	defer ticker.Stop()

	for running() {
		s.uptimeSecs += TimeDelta.Seconds()
		if err := s.Tick(); err != nil {
			s.logger.Error("scheduler tick failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Tick performs exactly one dispatch cycle.
func (s *Scheduler) Tick() error {
	if err := s.absorbAlerts(); err != nil {
		s.logger.Warn("reading sensor_alerts failed", "error", err.Error())
	}

	s.assignIdleDrones()
	finished := s.advanceDrones()

	if err := s.publishPositions(); err != nil {
		return err
	}
	for _, turbineID := range finished {
		if _, err := s.client.AppendSlot(string(namespace.SlotFinishedInspections), turbineID); err != nil {
			s.logger.Warn("appending finished_inspections failed", "error", err.Error())
		}
		if err := s.client.Log("inspection finished for "+turbineID, "info", s.uptimeSecs); err != nil {
			s.logger.Warn("logging finished inspection failed", "error", err.Error())
		}
	}
	return nil
}

// absorbAlerts reads sensor_alerts and unions it (de-duplicating) with any
// carried-over fault_queue from a prior tick that ran out of idle drones.
func (s *Scheduler) absorbAlerts() error {
	var alerts []string
	_, err := s.client.GetSlotInto(string(namespace.SlotSensorAlerts), &alerts)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(s.faultQueue))
	merged := make([]string, 0, len(s.faultQueue)+len(alerts))
	for _, id := range s.faultQueue {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range alerts {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	s.faultQueue = merged
	return nil
}

// assignIdleDrones implements step 2: for each alerted turbine ID in
// arrival order, while any IDLE drones remain, dispatch the nearest one. A
// turbine with an unknown ID is logged and dropped from the queue; an ID
// that finds no idle drone stays queued for the next tick.
func (s *Scheduler) assignIdleDrones() {
	remaining := s.faultQueue[:0:0]

	for _, turbineID := range s.faultQueue {
		info, ok := s.turbinesByID[turbineID]
		if !ok {
			s.logger.Warn("sensor_alerts: unknown turbine", "wt_id", turbineID)
			continue
		}

		drone := s.nearestIdleDrone(info.Pos)
		if drone == nil {
			remaining = append(remaining, turbineID)
			continue
		}
		drone.SetTarget(info.Pos, turbineID)
	}

	s.faultQueue = remaining
}

// nearestIdleDrone returns the IDLE drone closest to target, breaking ties
// by the lower drone ID, or nil if none are idle.
func (s *Scheduler) nearestIdleDrone(target Position) *Drone {
	var best *Drone
	bestDist := 0.0
	for _, d := range s.drones {
		if d.State != StateIdle {
			continue
		}
		dist := s.proj.Distance(d.Pos, target)
		if best == nil || dist < bestDist || (dist == bestDist && d.ID < best.ID) {
			best, bestDist = d, dist
		}
	}
	return best
}

// advanceDrones implements step 3: advances every non-idle drone and
// collects the turbine IDs whose inspections finished this tick.
func (s *Scheduler) advanceDrones() []string {
	var finished []string
	for _, d := range s.drones {
		ok, turbineID := d.Advance(s.proj, s.margin, s.inspectionTks)
		if ok {
			finished = append(finished, turbineID)
		}
	}
	if s.metrics != nil {
		counts := map[State]int{}
		for _, d := range s.drones {
			counts[d.State]++
		}
		for _, state := range []State{StateIdle, StateTravelling, StateInspecting, StateReturning} {
			s.metrics.DroneStateGauge.WithLabelValues(string(state)).Set(float64(counts[state]))
		}
	}
	return finished
}

// publishPositions implements step 4.
func (s *Scheduler) publishPositions() error {
	positions := make([]namespace.DronePosition, len(s.drones))
	for i, d := range s.drones {
		positions[i] = namespace.DronePosition{
			DroneID: d.ID,
			Lat:     d.Pos.Lat,
			Lng:     d.Pos.Lng,
			Status:  d.Status(),
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].DroneID < positions[j].DroneID })
	_, err := s.client.SetSlot(string(namespace.SlotDronePositions), positions)
	return err
}

// Drones exposes the live fleet, primarily for tests.
func (s *Scheduler) Drones() []*Drone { return s.drones }
