package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/jihwankim/windctl/internal/logging"
	"github.com/jihwankim/windctl/internal/metrics"
	"github.com/jihwankim/windctl/internal/namespace"
)

// ManagerClient is the subset of rpcmanager.Client the Sensor Service needs.
type ManagerClient interface {
	GetSlotInto(slot string, dst interface{}) (present bool, err error)
	SetSlot(slot string, value interface{}) (version uint64, err error)
	Log(msg, level string, timeSeconds float64) error
}

// CycleInterval is the Sensor Service's fixed ~1 Hz poll rate.
const CycleInterval = 1 * time.Second

// wireTurbineReading is the slice of a published reading this service reads
// off the wire: turbine ID and generator power.
type wireTurbineReading struct {
	WtID     string  `json:"wt_id"`
	GenPower float64 `json:"gen_power"`
}

type wireTick struct {
	Ticks     int64                `json:"ticks"`
	Turbines  []wireTurbineReading `json:"wts"`
}

// Service runs the Sensor anomaly-detection cycle.
type Service struct {
	classifier *Classifier
	client     ManagerClient
	logger     *logging.Logger
	metrics    *metrics.Registry
}

// NewService builds a Service with the default classifier configuration.
func NewService(client ManagerClient, logger *logging.Logger, reg *metrics.Registry) *Service {
	return &Service{classifier: NewClassifier(), client: client, logger: logger, metrics: reg}
}

// Run drives Tick once per CycleInterval until ctx is cancelled or running
// reports false.
func (s *Service) Run(ctx context.Context, running func() bool) error {
	ticker := time.NewTicker(CycleInterval)
	defer ticker.Stop()

	for running() {
		if err := s.Tick(); err != nil {
			s.logger.Error("sensor cycle failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Tick performs one classification cycle: pull readings_queue, classify,
// publish sensor_alerts.
func (s *Service) Tick() error {
	var wire []wireTick
	present, err := s.client.GetSlotInto(string(namespace.SlotReadingsQueue), &wire)
	if err != nil {
		return fmt.Errorf("reading readings_queue: %w", err)
	}
	if !present {
		return nil
	}

	ticks := make([]tickPowers, len(wire))
	for i, t := range wire {
		tp := make(tickPowers, len(t.Turbines))
		for _, wt := range t.Turbines {
			tp[wt.WtID] = wt.GenPower
		}
		ticks[i] = tp
	}

	alerting := s.classifier.Classify(ticks)

	if _, err := s.client.SetSlot(string(namespace.SlotSensorAlerts), alerting); err != nil {
		return fmt.Errorf("writing sensor_alerts: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SensorAlertsActive.Set(float64(len(alerting)))
	}
	if len(alerting) > 0 {
		msg := fmt.Sprintf("sensor alert raised for %d turbine(s): %v", len(alerting), alerting)
		if err := s.client.Log(msg, "warn", 0); err != nil {
			s.logger.Warn("logging sensor alert failed", "error", err.Error())
		}
		s.logger.Info("sensor alert raised", "turbines", alerting)
	}
	return nil
}
