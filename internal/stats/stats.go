// Package stats defines the network statistics computed on every
// aggregation window and their pairing with a detector instance.
package stats

import (
	"fmt"

	"github.com/asiffer/netspot/internal/counters"
	"github.com/asiffer/netspot/internal/logging"
	"github.com/asiffer/netspot/internal/spot"
)

// Statistic is a named scalar derived from a fixed, ordered list of
// counter readings. The dependency list is immutable after construction.
type Statistic interface {
	// Name uniquely identifies the statistic instance.
	Name() string
	// Description is a one-line human description.
	Description() string
	// Needs returns the counters the statistic reads, in the order
	// expected by Compute.
	Needs() []counters.Counter
	// Fmt is the printf verb used by the live display.
	Fmt() string
	// Compute derives the value from the counter readings. It must
	// tolerate zero-valued denominators and never return NaN or Inf.
	Compute(values []float64) float64
}

// LoadedStat pairs a statistic with the detector it exclusively owns.
type LoadedStat struct {
	Statistic
	Detector *spot.Spot
	logger   *logging.Logger
}

// Load attaches a fresh detector to a statistic.
func Load(st Statistic, cfg spot.Config, logger *logging.Logger) (*LoadedStat, error) {
	det, err := spot.New(cfg)
	if err != nil {
		return nil, err
	}
	return &LoadedStat{Statistic: st, Detector: det, logger: logger}, nil
}

// NeedNames returns the names of the required counters, in order.
func (ls *LoadedStat) NeedNames() []string {
	needs := ls.Needs()
	names := make([]string, len(needs))
	for i, c := range needs {
		names[i] = c.Name()
	}
	return names
}

// ComputeAndMonitor computes the statistic from the given readings, feeds
// the value to the detector and reports alarms through the logger.
func (ls *LoadedStat) ComputeAndMonitor(values []float64) (float64, error) {
	value := ls.Compute(values)
	code, err := ls.Detector.Step(value)
	if err != nil {
		return value, fmt.Errorf("%s: %w", ls.Name(), err)
	}
	switch code {
	case spot.StatusAlertUp:
		ls.logger.Warn("Up alarm",
			"stat", ls.Name(),
			"value", value,
			"probability", ls.Detector.UpProbability(value),
		)
	case spot.StatusAlertDown:
		ls.logger.Warn("Down alarm",
			"stat", ls.Name(),
			"value", value,
			"probability", ls.Detector.DownProbability(value),
		)
	case spot.StatusCalibrated:
		ls.logger.Info("Calibration completed", "stat", ls.Name())
	}
	return value, nil
}

// ResetDetector rebuilds the detector from its stored configuration.
func (ls *LoadedStat) ResetDetector() {
	ls.Detector.Reset()
}

// checkArity guards Compute against a malformed call.
func checkArity(name string, values []float64, want int) {
	if len(values) != want {
		panic(fmt.Sprintf("%s expects %d readings, got %d", name, want, len(values)))
	}
}

// ratio returns 100*num/den, with the zero rule num=0 => 0.
func ratio(num, den float64) float64 {
	if num == 0 || den == 0 {
		return 0
	}
	return 100 * num / den
}
