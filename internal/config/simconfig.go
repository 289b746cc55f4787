// Package config loads and validates the YAML configuration documents used
// by the simulation engine (numeric physics parameters) and by the
// simulation/scheduler pair (the static map: turbine models, turbines,
// drone stations).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Num is a float64 that accepts either a YAML number or a YAML string holding
// a simple arithmetic expression, mirroring the original prototype's
// string-value-as-eval'd-expression escape hatch for numeric config fields.
type Num float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Num) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!str":
		v, err := evalArithmetic(value.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", value.Value, err)
		}
		*n = Num(v)
		return nil
	default:
		var f float64
		if err := value.Decode(&f); err != nil {
			return fmt.Errorf("expected a number or arithmetic expression, got %q: %w", value.Value, err)
		}
		*n = Num(f)
		return nil
	}
}

// Config holds the simulation engine's physics parameters. Every field is
// required in the sense that an unrecognized YAML key anywhere in the
// document is a fatal load error (see decodeStrict); fields left out of the
// document keep their DefaultConfig value.
type Config struct {
	TicksPerSecond Num `yaml:"ticks_per_second"`
	TickFreq       Num `yaml:"tick_freq"`

	WindMagMean    Num `yaml:"wind_mag_mean"`
	WindMagVar     Num `yaml:"wind_mag_var"`
	WindAngleJitter Num `yaml:"wind_angle_jitter"`
	WindMagJitter  Num `yaml:"wind_mag_jitter"`

	TempMean         Num `yaml:"temp_mean"`
	TempJitter       Num `yaml:"temp_jitter"`
	TempAnnualSpread Num `yaml:"temp_annual_spread"`
	TempDailySpread  Num `yaml:"temp_daily_spread"`
	TempDailyStd     Num `yaml:"temp_daily_std"`
	TempAnnualStd    Num `yaml:"temp_annual_std"`

	WaveMagMean    Num `yaml:"wave_mag_mean"`
	WaveMagVar     Num `yaml:"wave_mag_var"`
	VisibilityMean Num `yaml:"visibility_mean"`
	VisibilityVar  Num `yaml:"visibility_var"`

	RotorRPSAlpha       Num `yaml:"rotor_rps_alpha"`
	RotorRPSRelativeVar Num `yaml:"rotor_rps_relative_var"`

	TowerVibFreqMean Num `yaml:"tower_vib_freq_mean"`
	TowerVibFreqVar  Num `yaml:"tower_vib_freq_var"`

	GenTempDiffMean Num `yaml:"gen_temp_diff_mean"`
	GenTempDiffVar  Num `yaml:"gen_temp_diff_var"`

	HistoryLength Num `yaml:"history_length"`
	WarmupTicks   Num `yaml:"warmup_ticks"`
}

// DefaultConfig mirrors the original prototype's dataclass defaults, plus
// the supplemented wave/visibility parameters, which NewEnvironment uses for
// its one-shot wave_mag and visibility draws.
func DefaultConfig() *Config {
	return &Config{
		TicksPerSecond: 1,
		TickFreq:       3600,

		WindMagMean:     5.5,
		WindMagVar:      3.1,
		WindAngleJitter: 0.5,
		WindMagJitter:   0.5,

		TempMean:         8.1,
		TempJitter:       0.5,
		TempAnnualSpread: 10.0,
		TempDailySpread:  7.0,
		TempDailyStd:     2.0,
		TempAnnualStd:    2.0,

		WaveMagMean:    1.2,
		WaveMagVar:     0.3,
		VisibilityMean: 20.0,
		VisibilityVar:  4.0,

		RotorRPSAlpha:       0.9998,
		RotorRPSRelativeVar: 0.01,

		TowerVibFreqMean: 4.3e3,
		TowerVibFreqVar:  2e2,

		GenTempDiffMean: 2.0,
		GenTempDiffVar:  0.5,

		HistoryLength: 1024,
		WarmupTicks:   10,
	}
}

// TicksPerDay, TicksPerMinute and TicksPerYear are computed from TickFreq,
// matching the original prototype's Config properties. TicksPerYear keeps
// the original's 356-day year (a preserved quirk, not a typo fix).
func (c *Config) TicksPerDay() float64    { return 24 * 60 * 60 / float64(c.TickFreq) }
func (c *Config) TicksPerMinute() float64 { return 60 / float64(c.TickFreq) }
func (c *Config) TicksPerYear() float64   { return 356 * 24 * 60 * 60 / float64(c.TickFreq) }

// LoadSimulationConfig reads and strictly validates a simulation config file.
// A missing file or any decode error (unknown field, type mismatch, bad
// expression) is fatal.
func LoadSimulationConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading simulation config %q: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(expanded), &root); err != nil {
		return nil, fmt.Errorf("parsing simulation config %q: %w", path, err)
	}
	if len(root.Content) == 0 {
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()
	if err := decodeStrict(root.Content[0], cfg); err != nil {
		return nil, fmt.Errorf("simulation config %q: %w", path, err)
	}
	return cfg, nil
}

// decodeStrict decodes a YAML mapping node into dst, a pointer to a struct
// whose exported fields all carry a `yaml:"..."` tag, rejecting any mapping
// key that does not name a known field. gopkg.in/yaml.v3's own strict mode
// (Decoder.KnownFields) cannot be combined with the Num custom unmarshaler's
// string-or-number flexibility in one pass, so field-name validation is done
// here explicitly, then each recognized value is decoded through the normal
// (and therefore Num-aware) yaml.Node.Decode.
func decodeStrict(node *yaml.Node, dst interface{}) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a YAML mapping at line %d", node.Line)
	}

	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()

	fieldByTag := make(map[string]reflect.Value, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		tag := rt.Field(i).Tag.Get("yaml")
		name := strings.Split(tag, ",")[0]
		if name == "" || name == "-" {
			continue
		}
		fieldByTag[name] = rv.Field(i)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		field, ok := fieldByTag[keyNode.Value]
		if !ok {
			return fmt.Errorf("unknown field %q at line %d", keyNode.Value, keyNode.Line)
		}
		if err := valNode.Decode(field.Addr().Interface()); err != nil {
			return fmt.Errorf("field %q: %w", keyNode.Value, err)
		}
	}
	return nil
}
