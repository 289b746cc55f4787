// Package sensor implements the anomaly classifier contract: a statistical
// moving-average + sigmoid scoring step over the power column of
// readings_queue, with a per-turbine cooldown.
package sensor

import (
	"math"
	"sort"
)

// DefaultThreshold and DefaultWidth parameterize the logistic mapping of
// normalized power deviation to a fault probability.
const (
	DefaultThreshold = -0.08
	DefaultWidth     = 0.05

	MinUniqueTicks  = 25
	RollingWindow   = 30
	MinValidWindows = 20
	DecisionCutoff  = 0.5

	CooldownTicks = 100
)

// Classifier configuration, exposed so tests can override thresholds.
type Classifier struct {
	Threshold float64
	Width     float64

	cooldown map[string]int // turbine ID -> ticks remaining before it may re-alert
}

// NewClassifier builds a Classifier with the spec's default threshold/width.
func NewClassifier() *Classifier {
	return &Classifier{Threshold: DefaultThreshold, Width: DefaultWidth, cooldown: map[string]int{}}
}

// tickPowers is one tick's turbine_id -> power reading.
type tickPowers map[string]float64

// Classify implements the full per-cycle contract: given the ordered list
// of ticks' power readings (oldest first), it returns the set of turbine
// IDs that should be added to sensor_alerts this cycle. Fewer than
// MinUniqueTicks ticks is a silent no-op (classifier-underrun, per
// error taxonomy), returning nil.
func (c *Classifier) Classify(ticks []tickPowers) []string {
	if len(ticks) < MinUniqueTicks {
		c.decayCooldowns(1, nil)
		return nil
	}

	turbineIDs := allTurbineIDs(ticks)

	// score[id] is the per-tick probability-of-fault sequence for id.
	scores := make(map[string][]float64, len(turbineIDs))
	for _, id := range turbineIDs {
		scores[id] = make([]float64, len(ticks))
	}

	for t, tick := range ticks {
		ref := percentile75(values(tick))
		for _, id := range turbineIDs {
			p, ok := tick[id]
			if !ok || ref == 0 {
				scores[id][t] = 0
				continue
			}
			d := (p - ref) / ref
			scores[id][t] = logistic((d - c.Threshold) / c.Width)
		}
	}

	var alerting []string
	justAlerted := make(map[string]bool)
	for _, id := range turbineIDs {
		pred, ok := rollingMeanLast(scores[id], RollingWindow, MinValidWindows)
		triggered := ok && pred >= DecisionCutoff

		if c.cooldown[id] > 0 {
			triggered = false
		}
		if triggered {
			alerting = append(alerting, id)
			c.cooldown[id] = CooldownTicks
			justAlerted[id] = true
		}
	}

	// A turbine that just entered cooldown this cycle hasn't aged yet; decay
	// starts counting from the next cycle, so the full CooldownTicks cycles
	// are suppressed.
	c.decayCooldowns(1, justAlerted)
	return alerting
}

func (c *Classifier) decayCooldowns(byTicks int, skip map[string]bool) {
	for id, left := range c.cooldown {
		if skip[id] {
			continue
		}
		left -= byTicks
		if left < 0 {
			delete(c.cooldown, id)
		} else {
			c.cooldown[id] = left
		}
	}
}

func allTurbineIDs(ticks []tickPowers) []string {
	seen := map[string]bool{}
	var ids []string
	for _, tick := range ticks {
		for id := range tick {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func values(tick tickPowers) []float64 {
	vs := make([]float64, 0, len(tick))
	for _, v := range tick {
		vs = append(vs, v)
	}
	return vs
}

// percentile75 returns the 75th-percentile value via linear interpolation
// between closest ranks: the reference power level Classify compares every
// turbine against.
func percentile75(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := 0.75 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(x))
}

// rollingMeanLast returns the mean of the last window samples of s,
// reporting ok=false if fewer than minValid of those windows are inside the
// slice (there is insufficient history to trust the average).
func rollingMeanLast(s []float64, window, minValid int) (mean float64, ok bool) {
	n := len(s)
	if n < minValid {
		return 0, false
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	sum := 0.0
	count := 0
	for i := start; i < n; i++ {
		sum += s[i]
		count++
	}
	if count < minValid {
		return 0, false
	}
	return sum / float64(count), true
}
