package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TurbineModel describes one class of wind turbine (shared by every Turbine
// referencing it by name).
type TurbineModel struct {
	Name     string `yaml:"name" json:"name"`
	Capacity Num    `yaml:"capacity" json:"capacity"`
	CutIn    Num    `yaml:"cut_in" json:"cut_in"`
	Rated    Num    `yaml:"rated" json:"rated"`
	RotorRPM Num    `yaml:"rotor_rpm" json:"rotor_rpm"`
}

// Turbine is one placed wind turbine instance.
type Turbine struct {
	ID    string `yaml:"id" json:"id"`
	Lat   Num    `yaml:"lat" json:"lat"`
	Lng   Num    `yaml:"lng" json:"lng"`
	Model string `yaml:"model" json:"model"`
}

// Station is a drone home base; the scheduler spawns exactly one drone per
// station, supplementing the distilled spec's map_cfg table with the
// station list the canonical scheduler actually needs.
type Station struct {
	ID  string `yaml:"id" json:"id"`
	Lat Num    `yaml:"lat" json:"lat"`
	Lng Num    `yaml:"lng" json:"lng"`
}

// MapConfig is the static description of the wind farm: turbine models,
// placed turbines, and drone stations.
type MapConfig struct {
	Models   []TurbineModel `yaml:"models" json:"models"`
	Turbines []Turbine      `yaml:"turbines" json:"turbines"`
	Stations []Station      `yaml:"stations" json:"stations"`
}

// ModelByName returns the model named n, or ok=false if unknown.
func (m *MapConfig) ModelByName(n string) (TurbineModel, bool) {
	for _, model := range m.Models {
		if model.Name == n {
			return model, true
		}
	}
	return TurbineModel{}, false
}

// LoadMapConfig reads and validates a map config file: unknown top-level or
// per-item fields are fatal, a turbine referencing an undefined model is
// fatal, and any item missing a required field is fatal.
func LoadMapConfig(path string) (*MapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map config %q: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing map config %q: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("map config %q is empty", path)
	}

	var mc MapConfig
	if err := decodeStrict(root.Content[0], &mc); err != nil {
		return nil, fmt.Errorf("map config %q: %w", path, err)
	}

	for i, model := range mc.Models {
		if model.Name == "" {
			return nil, fmt.Errorf("map config %q: models[%d] missing required field %q", path, i, "name")
		}
	}
	for i, t := range mc.Turbines {
		if t.ID == "" {
			return nil, fmt.Errorf("map config %q: turbines[%d] missing required field %q", path, i, "id")
		}
		if t.Model == "" {
			return nil, fmt.Errorf("map config %q: turbines[%d] missing required field %q", path, i, "model")
		}
		if _, ok := mc.ModelByName(t.Model); !ok {
			return nil, fmt.Errorf("map config %q: turbine %q references unknown model %q", path, t.ID, t.Model)
		}
	}
	for i, s := range mc.Stations {
		if s.ID == "" {
			return nil, fmt.Errorf("map config %q: stations[%d] missing required field %q", path, i, "id")
		}
	}

	return &mc, nil
}
