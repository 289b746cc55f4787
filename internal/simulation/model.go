package simulation

import "github.com/jihwankim/windctl/internal/config"

// WindTurbineModel is the runtime (float64) counterpart of config.TurbineModel,
// converted once at load time so the tick loop never touches the Num type.
type WindTurbineModel struct {
	Name     string
	Capacity float64 // rated power, watts
	CutIn    float64 // m/s
	Rated    float64 // m/s
	RotorRPM float64 // maximum rotor RPM
}

func modelFromConfig(m config.TurbineModel) WindTurbineModel {
	return WindTurbineModel{
		Name:     m.Name,
		Capacity: float64(m.Capacity),
		CutIn:    float64(m.CutIn),
		Rated:    float64(m.Rated),
		RotorRPM: float64(m.RotorRPM),
	}
}
