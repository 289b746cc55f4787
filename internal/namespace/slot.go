package namespace

// Slot names every channel the Manager is willing to serve. Defining them as
// a closed enumeration (rather than accepting arbitrary attribute names, as
// the original Namespace/NamespaceProxy pair did) lets the Manager reject
// unknown slot names at the RPC boundary instead of silently creating them.
type Slot string

const (
	SlotMapConfig            Slot = "map_cfg"
	SlotReadingsQueue        Slot = "readings_queue"
	SlotSensorAlerts         Slot = "sensor_alerts"
	SlotDronePositions       Slot = "drone_positions"
	SlotFinishedInspections  Slot = "finished_inspections"
	SlotLogs                 Slot = "logs"
	SlotAddFaults            Slot = "add_faults"
)

// AppendableSlots are the list-valued slots that producers extend through
// the Manager's atomic Append operation. The Manager does not enforce this:
// set_slot is accepted on them too (e.g. to reset one to an empty list).
var AppendableSlots = map[Slot]bool{
	SlotLogs:                true,
	SlotFinishedInspections: true,
	SlotAddFaults:           true,
}

// Known reports whether s names a slot the Manager recognizes.
func Known(s Slot) bool {
	switch s {
	case SlotMapConfig, SlotReadingsQueue, SlotSensorAlerts, SlotDronePositions,
		SlotFinishedInspections, SlotLogs, SlotAddFaults:
		return true
	default:
		return false
	}
}

// LogEntry is one element of the logs slot.
type LogEntry struct {
	Msg         string  `json:"msg"`
	Level       string  `json:"level"`
	TimeSeconds float64 `json:"time_seconds"`
}

// DronePosition is one element of the drone_positions slot.
type DronePosition struct {
	DroneID string  `json:"drone_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Status  string  `json:"status"`
}

// Reading is one turbine's contribution to a tick's readings snapshot.
type Reading map[string]Value

// TickReadings is one full tick's published snapshot.
type TickReadings struct {
	Ticks       int64              `json:"ticks"`
	UptimeSecs  float64            `json:"uptime"`
	Env         map[string]Value   `json:"env"`
	Turbines    []Reading          `json:"wts"`
}
