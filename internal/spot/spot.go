// Package spot implements a streaming peaks-over-threshold detector. It
// calibrates a high quantile on an initial batch of observations, fits a
// generalised Pareto tail to the exceedances and flags values whose fitted
// tail probability falls below a configured risk.
package spot

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/asiffer/netspot/internal/errs"
)

// Step return codes. Only Normal, AlertUp, AlertDown and Calibrated are
// meaningful to callers; the other codes mark internal transitions.
const (
	StatusNormal     = 0
	StatusAlertUp    = 1
	StatusAlertDown  = -1
	StatusExcessUp   = 2
	StatusExcessDown = -2
	StatusBatch      = 3
	StatusCalibrated = 4
)

// Config gathers the construction parameters of a detector. It is
// immutable once the detector is built.
type Config struct {
	// Q is the risk level: the detector flags values whose tail
	// probability is below Q.
	Q float64
	// NInit is the number of observations consumed by the calibration.
	NInit int
	// Level is the quantile used to select the peaks.
	Level float64
	// Up and Down enable the corresponding tails.
	Up   bool
	Down bool
	// Bounded caps the number of stored peaks to MaxExcess, keeping only
	// the most recent ones.
	Bounded   bool
	MaxExcess int
}

// DefaultConfig returns the standard detector parameters.
func DefaultConfig() Config {
	return Config{
		Q:         1e-3,
		NInit:     1000,
		Level:     0.98,
		Up:        true,
		Down:      false,
		Bounded:   true,
		MaxExcess: 200,
	}
}

func (c Config) validate() error {
	if c.Q <= 0 || c.Q >= 1 {
		return fmt.Errorf("%w: q must lie in (0,1)", errs.ErrInvalidConfig)
	}
	if c.NInit <= 0 {
		return fmt.Errorf("%w: n_init must be positive", errs.ErrInvalidConfig)
	}
	if c.Level <= 0 || c.Level >= 1 {
		return fmt.Errorf("%w: level must lie in (0,1)", errs.ErrInvalidConfig)
	}
	if !c.Up && !c.Down {
		return fmt.Errorf("%w: at least one tail must be enabled", errs.ErrInvalidConfig)
	}
	if c.Bounded && c.MaxExcess <= 0 {
		return fmt.Errorf("%w: max_excess must be positive", errs.ErrInvalidConfig)
	}
	return nil
}

// Spot is a single detector instance. It is not safe for concurrent use;
// in netspot every instance is owned by exactly one statistic and stepped
// by the window task only.
type Spot struct {
	cfg        Config
	n          int
	initial    []float64
	calibrated bool
	up         *tail
	down       *tail
}

// New builds a detector from the given configuration.
func New(cfg Config) (*Spot, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Spot{cfg: cfg, initial: make([]float64, 0, cfg.NInit)}, nil
}

// NewDefault builds a detector with DefaultConfig.
func NewDefault() *Spot {
	s, _ := New(DefaultConfig())
	return s
}

// Config echoes the construction parameters.
func (s *Spot) Config() Config { return s.cfg }

// N returns the number of observations consumed so far.
func (s *Spot) N() int { return s.n }

// Calibrated reports whether the initial batch has been consumed and the
// thresholds are defined.
func (s *Spot) Calibrated() bool { return s.calibrated }

// Reset rebuilds the detector from its stored configuration.
func (s *Spot) Reset() {
	s.n = 0
	s.initial = make([]float64, 0, s.cfg.NInit)
	s.calibrated = false
	s.up = nil
	s.down = nil
}

// Step consumes one observation and returns a status code.
func (s *Spot) Step(x float64) (int, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return StatusNormal, fmt.Errorf("%w: non-finite observation", errs.ErrDetector)
	}
	s.n++
	if !s.calibrated {
		s.initial = append(s.initial, x)
		if s.n < s.cfg.NInit {
			return StatusBatch, nil
		}
		if err := s.calibrate(); err != nil {
			return StatusNormal, err
		}
		s.initial = nil
		s.calibrated = true
		return StatusCalibrated, nil
	}
	if s.up != nil {
		if x > s.up.z {
			s.up.al++
			return StatusAlertUp, nil
		}
		if x > s.up.t {
			s.up.add(x - s.up.t)
			if err := s.up.refit(s.cfg, s.n); err != nil {
				return StatusNormal, err
			}
			return StatusExcessUp, nil
		}
	}
	if s.down != nil {
		if x < s.down.z {
			s.down.al++
			return StatusAlertDown, nil
		}
		if x < s.down.t {
			s.down.add(s.down.t - x)
			if err := s.down.refit(s.cfg, s.n); err != nil {
				return StatusNormal, err
			}
			return StatusExcessDown, nil
		}
	}
	return StatusNormal, nil
}

// calibrate selects the peak thresholds from the initial batch and fits
// both enabled tails.
func (s *Spot) calibrate() error {
	sorted := append([]float64(nil), s.initial...)
	sort.Float64s(sorted)
	if s.cfg.Up {
		s.up = newTail(true, s.cfg)
		s.up.t = stat.Quantile(s.cfg.Level, stat.Empirical, sorted, nil)
		for _, x := range s.initial {
			if x > s.up.t {
				s.up.add(x - s.up.t)
			}
		}
		if err := s.up.refit(s.cfg, s.n); err != nil {
			return err
		}
	}
	if s.cfg.Down {
		s.down = newTail(false, s.cfg)
		s.down.t = stat.Quantile(1-s.cfg.Level, stat.Empirical, sorted, nil)
		for _, x := range s.initial {
			if x < s.down.t {
				s.down.add(s.down.t - x)
			}
		}
		if err := s.down.refit(s.cfg, s.n); err != nil {
			return err
		}
	}
	return nil
}

// UpProbability estimates the probability of observing a value larger
// than x under the current up-tail fit. It returns 1 when the up tail is
// not available.
func (s *Spot) UpProbability(x float64) float64 {
	if s.up == nil || !s.calibrated {
		return 1
	}
	return s.up.probability(x-s.up.t, s.n)
}

// DownProbability estimates the probability of observing a value smaller
// than x under the current down-tail fit. It returns 1 when the down tail
// is not available.
func (s *Spot) DownProbability(x float64) float64 {
	if s.down == nil || !s.calibrated {
		return 1
	}
	return s.down.probability(s.down.t-x, s.n)
}
