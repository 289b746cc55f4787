package scheduler

import (
	"encoding/json"
	"io"
	"math"
	"testing"

	"github.com/jihwankim/windctl/internal/config"
	"github.com/jihwankim/windctl/internal/logging"
	"github.com/stretchr/testify/require"
)

type fakeManager struct {
	slots map[string]json.RawMessage
	logs  []string
}

func newFakeManager() *fakeManager { return &fakeManager{slots: map[string]json.RawMessage{}} }

func (f *fakeManager) GetSlotInto(slot string, dst interface{}) (bool, error) {
	raw, ok := f.slots[slot]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (f *fakeManager) SetSlot(slot string, value interface{}) (uint64, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	f.slots[slot] = raw
	return 1, nil
}

func (f *fakeManager) AppendSlot(slot string, entry interface{}) (int, error) {
	var arr []json.RawMessage
	if raw, ok := f.slots[slot]; ok {
		_ = json.Unmarshal(raw, &arr)
	}
	entryRaw, err := json.Marshal(entry)
	if err != nil {
		return 0, err
	}
	arr = append(arr, entryRaw)
	raw, err := json.Marshal(arr)
	if err != nil {
		return 0, err
	}
	f.slots[slot] = raw
	return len(arr), nil
}

func (f *fakeManager) Log(msg, level string, timeSeconds float64) error {
	f.logs = append(f.logs, msg)
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func twoStationMap() *config.MapConfig {
	return &config.MapConfig{
		Models: []config.TurbineModel{{Name: "small", Capacity: 1e6, CutIn: 3, Rated: 12, RotorRPM: 15}},
		Turbines: []config.Turbine{
			{ID: "wt-near-a", Lat: 0.01, Lng: 0, Model: "small"},
		},
		Stations: []config.Station{
			{ID: "a", Lat: 0, Lng: 0},
			{ID: "b", Lat: 1, Lng: 1},
		},
	}
}

// S4: alert a turbine closer to Station A → Drone_A enters TRAVELLING;
// Drone_B stays IDLE; after <= dist/speed ticks Drone_A is INSPECTING;
// after 10 more ticks the turbine ID appears in finished_inspections and
// Drone_A is RETURNING.
func TestScheduler_S4_DispatchAndInspectionLifecycle(t *testing.T) {
	mgr := newFakeManager()
	_, err := mgr.SetSlot("sensor_alerts", []string{"wt-near-a"})
	require.NoError(t, err)

	sched := New(twoStationMap(), DefaultSpeed, DefaultMargin, DefaultInspectionTicks, mgr, testLogger(), nil)
	require.NoError(t, sched.Tick())

	droneA := findDrone(t, sched, "drone-a")
	droneB := findDrone(t, sched, "drone-b")
	require.Equal(t, StateTravelling, droneA.State)
	require.Equal(t, StateIdle, droneB.State)
	require.Equal(t, "wt-near-a", droneA.TargetID)

	dist := sched.proj.Distance(droneA.Home.Pos, droneA.TargetPos)
	maxTicks := int(math.Ceil(dist/DefaultSpeed)) + 1
	for i := 0; i < maxTicks && droneA.State != StateInspecting; i++ {
		require.NoError(t, sched.Tick())
	}
	require.Equal(t, StateInspecting, droneA.State)

	for i := 0; i < DefaultInspectionTicks; i++ {
		require.NoError(t, sched.Tick())
	}

	require.Equal(t, StateReturning, droneA.State)

	var finished []string
	present, err := mgr.GetSlotInto("finished_inspections", &finished)
	require.NoError(t, err)
	require.True(t, present)
	require.Contains(t, finished, "wt-near-a")
}

func TestScheduler_UnknownAlertedTurbineIsSkipped(t *testing.T) {
	mgr := newFakeManager()
	_, err := mgr.SetSlot("sensor_alerts", []string{"does-not-exist"})
	require.NoError(t, err)

	sched := New(twoStationMap(), DefaultSpeed, DefaultMargin, DefaultInspectionTicks, mgr, testLogger(), nil)
	require.NoError(t, sched.Tick())

	for _, d := range sched.Drones() {
		require.Equal(t, StateIdle, d.State)
	}
}

func TestScheduler_PublishesOneEntryPerDrone(t *testing.T) {
	mgr := newFakeManager()
	sched := New(twoStationMap(), DefaultSpeed, DefaultMargin, DefaultInspectionTicks, mgr, testLogger(), nil)
	require.NoError(t, sched.Tick())

	var positions []map[string]interface{}
	present, err := mgr.GetSlotInto("drone_positions", &positions)
	require.NoError(t, err)
	require.True(t, present)
	require.Len(t, positions, 2)
}

func TestScheduler_TieBreakPrefersLowerDroneID(t *testing.T) {
	mapCfg := &config.MapConfig{
		Models: []config.TurbineModel{{Name: "small", Capacity: 1e6, CutIn: 3, Rated: 12, RotorRPM: 15}},
		Turbines: []config.Turbine{
			{ID: "wt-mid", Lat: 0.5, Lng: 0, Model: "small"},
		},
		Stations: []config.Station{
			{ID: "a", Lat: 0, Lng: 0},
			{ID: "z", Lat: 1, Lng: 0},
		},
	}
	mgr := newFakeManager()
	_, err := mgr.SetSlot("sensor_alerts", []string{"wt-mid"})
	require.NoError(t, err)

	sched := New(mapCfg, DefaultSpeed, DefaultMargin, DefaultInspectionTicks, mgr, testLogger(), nil)
	require.NoError(t, sched.Tick())

	droneA := findDrone(t, sched, "drone-a")
	require.Equal(t, StateTravelling, droneA.State)
}

func findDrone(t *testing.T, s *Scheduler, id string) *Drone {
	t.Helper()
	for _, d := range s.Drones() {
		if d.ID == id {
			return d
		}
	}
	t.Fatalf("drone %q not found", id)
	return nil
}
