package sensor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func syntheticTicks(n int, powers map[string]float64) []tickPowers {
	ticks := make([]tickPowers, n)
	for i := 0; i < n; i++ {
		tp := make(tickPowers, len(powers))
		for id, p := range powers {
			tp[id] = p
		}
		ticks[i] = tp
	}
	return ticks
}

// S5: one turbine's power 50% below the 75th-percentile reference for >= 20
// ticks triggers an alert; cooldown suppresses re-alerting afterwards.
func TestClassifier_S5_AlertsThenCooldown(t *testing.T) {
	c := NewClassifier()
	ticks := syntheticTicks(30, map[string]float64{"wt-good-1": 100, "wt-good-2": 100, "wt-bad": 50})

	alerts := c.Classify(ticks)
	require.Contains(t, alerts, "wt-bad")
	require.NotContains(t, alerts, "wt-good-1")
	require.NotContains(t, alerts, "wt-good-2")

	// Power is still 50% below reference, but the cooldown must suppress it.
	alerts = c.Classify(ticks)
	require.NotContains(t, alerts, "wt-bad")
}

func TestClassifier_CooldownExpiresAfter100Cycles(t *testing.T) {
	c := NewClassifier()
	ticks := syntheticTicks(30, map[string]float64{"wt-good": 100, "wt-bad": 50})

	first := c.Classify(ticks)
	require.Contains(t, first, "wt-bad")

	for i := 0; i < CooldownTicks; i++ {
		alerts := c.Classify(ticks)
		require.NotContains(t, alerts, "wt-bad", "re-alerted during cooldown at cycle %d", i)
	}

	final := c.Classify(ticks)
	require.Contains(t, final, "wt-bad")
}

func TestClassifier_Underrun_SilentNoop(t *testing.T) {
	c := NewClassifier()
	ticks := syntheticTicks(10, map[string]float64{"wt-bad": 50, "wt-good": 100})
	alerts := c.Classify(ticks)
	require.Nil(t, alerts)
}

func TestClassifier_HealthyTurbinesNeverAlert(t *testing.T) {
	c := NewClassifier()
	ticks := syntheticTicks(30, map[string]float64{"wt-a": 100, "wt-b": 101, "wt-c": 99})
	alerts := c.Classify(ticks)
	require.Empty(t, alerts)
}

func TestPercentile75_Interpolates(t *testing.T) {
	require.InDelta(t, 100.0, percentile75([]float64{50, 100, 100}), 1e-9)
	require.InDelta(t, 4.0, percentile75([]float64{1, 2, 3, 4, 5}), 1e-9)
}

func TestLogistic_MidpointIsOneHalf(t *testing.T) {
	require.InDelta(t, 0.5, logistic(0), 1e-9)
}
