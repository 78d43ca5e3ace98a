package spot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/asiffer/netspot/internal/errs"
)

// varianceFloor below which the stored excesses are treated as constant
// and the tail degenerates to an exponential fit.
const varianceFloor = 1e-12

// tail holds the state of one side of the detector. Excesses are stored
// in threshold-relative space, so they are positive for both directions.
type tail struct {
	up    bool
	al    int     // alarms raised
	t     float64 // transitional (peak-selection) threshold
	z     float64 // decision threshold
	total int     // peaks observed since calibration
	peaks *peaks
	gamma float64
	sigma float64
}

func newTail(up bool, cfg Config) *tail {
	return &tail{up: up, peaks: newPeaks(cfg.Bounded, cfg.MaxExcess)}
}

func (ta *tail) add(excess float64) {
	ta.total++
	ta.peaks.push(excess)
}

// refit re-estimates the generalised Pareto parameters from the stored
// peaks (method of moments) and recomputes the decision threshold at
// risk cfg.Q for n observations.
func (ta *tail) refit(cfg Config, n int) error {
	ex := ta.peaks.values()
	if len(ex) == 0 {
		// No peak yet: the decision threshold collapses onto the
		// transitional one.
		ta.gamma, ta.sigma = 0, 0
		ta.z = ta.t
		return nil
	}
	mean := stat.Mean(ex, nil)
	variance := 0.0
	if len(ex) > 1 {
		variance = stat.Variance(ex, nil)
	}
	if variance < varianceFloor {
		// Constant excesses: exponential tail.
		ta.gamma = 0
		ta.sigma = mean
	} else {
		ratio := mean * mean / variance
		ta.gamma = 0.5 * (1 - ratio)
		ta.sigma = 0.5 * mean * (1 + ratio)
	}
	if math.IsNaN(ta.sigma) || ta.sigma < 0 {
		return fmt.Errorf("%w: degenerate tail fit (sigma=%g)", errs.ErrDetector, ta.sigma)
	}
	ta.z = ta.threshold(cfg.Q, n)
	return nil
}

// threshold computes the quantile at risk q from the current fit.
func (ta *tail) threshold(q float64, n int) float64 {
	if ta.sigma == 0 || ta.total == 0 {
		return ta.t
	}
	r := q * float64(n) / float64(ta.total)
	var d float64
	if ta.gamma == 0 {
		d = -ta.sigma * math.Log(r)
	} else {
		d = (ta.sigma / ta.gamma) * (math.Pow(r, -ta.gamma) - 1)
	}
	if ta.up {
		return ta.t + d
	}
	return ta.t - d
}

// probability returns the fitted tail probability of an excess beyond the
// transitional threshold. The excess is threshold-relative (positive in
// the tail direction).
func (ta *tail) probability(excess float64, n int) float64 {
	if n == 0 || ta.total == 0 {
		return 1
	}
	base := float64(ta.total) / float64(n)
	if excess <= 0 {
		return clampUnit(base)
	}
	if ta.sigma == 0 {
		return 0
	}
	var p float64
	if ta.gamma == 0 {
		p = base * math.Exp(-excess/ta.sigma)
	} else {
		arg := 1 + ta.gamma*excess/ta.sigma
		if arg <= 0 {
			return 0
		}
		p = base * math.Pow(arg, -1/ta.gamma)
	}
	return clampUnit(p)
}

func clampUnit(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
