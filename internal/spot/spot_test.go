package spot

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asiffer/netspot/internal/errs"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1e-3, cfg.Q)
	assert.Equal(t, 1000, cfg.NInit)
	assert.Equal(t, 0.98, cfg.Level)
	assert.True(t, cfg.Up)
	assert.False(t, cfg.Down)
	assert.True(t, cfg.Bounded)
	assert.Equal(t, 200, cfg.MaxExcess)
}

func TestConfigValidation(t *testing.T) {
	bad := DefaultConfig()
	bad.Q = 2
	_, err := New(bad)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)

	bad = DefaultConfig()
	bad.NInit = 0
	_, err = New(bad)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)

	bad = DefaultConfig()
	bad.Up, bad.Down = false, false
	_, err = New(bad)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestNoAlarmDuringCalibration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NInit = 100
	s, err := New(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < cfg.NInit; i++ {
		code, err := s.Step(rng.Float64())
		require.NoError(t, err)
		assert.NotEqual(t, StatusAlertUp, code)
		assert.NotEqual(t, StatusAlertDown, code)
		if i < cfg.NInit-1 {
			assert.Equal(t, StatusBatch, code)
		} else {
			assert.Equal(t, StatusCalibrated, code)
		}
	}
	assert.True(t, s.Calibrated())
	assert.Equal(t, cfg.NInit, s.N())
}

func TestUpAlarmOnOutlier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NInit = 200
	s, err := New(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < cfg.NInit; i++ {
		_, err := s.Step(5 + rng.NormFloat64()*0.5)
		require.NoError(t, err)
	}

	code, err := s.Step(90)
	require.NoError(t, err)
	assert.Equal(t, StatusAlertUp, code)
	assert.Less(t, s.UpProbability(90), cfg.Q)

	st := s.Status()
	require.NotNil(t, st.AlUp)
	assert.Equal(t, 1, *st.AlUp)
	require.NotNil(t, st.ZUp)
	assert.Greater(t, *st.ZUp, *st.TUp)
	// down side disabled: everything nil
	assert.Nil(t, st.AlDown)
	assert.Nil(t, st.ZDown)
	assert.Nil(t, st.NtDown)
}

func TestDownAlarm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NInit = 200
	cfg.Up = false
	cfg.Down = true
	s, err := New(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < cfg.NInit; i++ {
		_, err := s.Step(50 + rng.NormFloat64())
		require.NoError(t, err)
	}

	code, err := s.Step(-40)
	require.NoError(t, err)
	assert.Equal(t, StatusAlertDown, code)
	assert.Less(t, s.DownProbability(-40), cfg.Q)

	st := s.Status()
	assert.Nil(t, st.AlUp)
	assert.Nil(t, st.ZUp)
	require.NotNil(t, st.AlDown)
	assert.Equal(t, 1, *st.AlDown)
}

func TestConstantStreamStaysQuiet(t *testing.T) {
	// A stream of zeros (e.g. a ratio over an empty window) must never
	// alarm nor fail.
	cfg := DefaultConfig()
	cfg.NInit = 10
	s, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		code, err := s.Step(0)
		require.NoError(t, err)
		assert.NotEqual(t, StatusAlertUp, code)
		assert.NotEqual(t, StatusAlertDown, code)
	}
	st := s.Status()
	assert.Equal(t, 50, st.N)
	assert.Equal(t, 0, *st.AlUp)
}

func TestThresholdsNilBeforeCalibration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NInit = 100
	s, err := New(cfg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := s.Step(float64(i))
		require.NoError(t, err)
	}
	st := s.Status()
	assert.Equal(t, 10, st.N)
	require.NotNil(t, st.AlUp)
	assert.Equal(t, 0, *st.AlUp)
	assert.Nil(t, st.ZUp)
	assert.Nil(t, st.TUp)
}

func TestResetPreservesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NInit = 20
	cfg.Q = 1e-4
	s, err := New(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 30; i++ {
		_, err := s.Step(rng.Float64())
		require.NoError(t, err)
	}
	s.Reset()

	assert.Equal(t, cfg, s.Config())
	st := s.Status()
	assert.Equal(t, 0, st.N)
	assert.Equal(t, 0, *st.AlUp)
	assert.Nil(t, st.ZUp)
	assert.False(t, s.Calibrated())
}

func TestNonFiniteObservation(t *testing.T) {
	s := NewDefault()
	_, err := s.Step(math.NaN())
	assert.ErrorIs(t, err, errs.ErrDetector)
	_, err = s.Step(math.Inf(1))
	assert.ErrorIs(t, err, errs.ErrDetector)
}

func TestBoundedPeaks(t *testing.T) {
	p := newPeaks(true, 3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		p.push(v)
	}
	assert.Equal(t, 3, p.len())
	assert.Equal(t, []float64{3, 4, 5}, p.values())

	unbounded := newPeaks(false, 0)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		unbounded.push(v)
	}
	assert.Equal(t, 5, unbounded.len())
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, unbounded.values())
}
