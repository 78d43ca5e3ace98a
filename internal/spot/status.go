package spot

// Status is a snapshot of the detector state. Fields of a disabled side
// are nil; the thresholds are also nil until the calibration completes.
type Status struct {
	N int

	AlUp *int
	ZUp  *float64
	TUp  *float64
	NtUp *int
	ExUp *int

	AlDown *int
	ZDown  *float64
	TDown  *float64
	NtDown *int
	ExDown *int
}

// Status reports the current detector state.
func (s *Spot) Status() Status {
	st := Status{N: s.n}
	if s.cfg.Up {
		st.AlUp, st.ZUp, st.TUp, st.NtUp, st.ExUp = sideStatus(s.up, s.calibrated)
	}
	if s.cfg.Down {
		st.AlDown, st.ZDown, st.TDown, st.NtDown, st.ExDown = sideStatus(s.down, s.calibrated)
	}
	return st
}

func sideStatus(ta *tail, calibrated bool) (al *int, z, t *float64, nt, ex *int) {
	if ta == nil || !calibrated {
		// Enabled but not calibrated yet: counters exist, thresholds do not.
		return intPtr(0), nil, nil, intPtr(0), intPtr(0)
	}
	return intPtr(ta.al), floatPtr(ta.z), floatPtr(ta.t), intPtr(ta.total), intPtr(ta.peaks.len())
}

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }
