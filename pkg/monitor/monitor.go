// Package monitor schedules the packet-to-alarm pipeline: it owns the
// sniffer, the recorder and the ordered list of loaded statistics, runs
// the windowing loop and forwards every windowed result to the recorder.
package monitor

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asiffer/netspot/internal/config"
	"github.com/asiffer/netspot/internal/errs"
	"github.com/asiffer/netspot/internal/logging"
	"github.com/asiffer/netspot/internal/recorder"
	"github.com/asiffer/netspot/internal/sniffer"
	"github.com/asiffer/netspot/internal/spot"
	"github.com/asiffer/netspot/internal/stats"
)

// minTick floors the window-task wake-up period.
const minTick = time.Millisecond

// Monitor owns the whole pipeline. The loaded-stat list is mutated only
// while idle; the window loop reads it without further locking.
type Monitor struct {
	mu sync.Mutex

	interval    time.Duration
	defaultSpot spot.Config

	sniff *sniffer.Sniffer
	rec   *recorder.Recorder
	stats []*stats.LoadedStat

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	logger *logging.Logger
}

// New returns an idle monitor with the default configuration.
func New(logger *logging.Logger) *Monitor {
	return &Monitor{
		interval:    2 * time.Second,
		defaultSpot: spot.DefaultConfig(),
		sniff:       sniffer.New(logger),
		rec:         recorder.New(logger),
		logger:      logger,
	}
}

// FromConfig builds a monitor and applies a loaded configuration.
func FromConfig(c *config.Config, logger *logging.Logger) (*Monitor, error) {
	m := New(logger)
	if err := m.SetInterval(c.Interval); err != nil {
		return nil, err
	}
	m.defaultSpot = c.DefaultSpot
	if err := m.sniff.SetSource(sniffer.SourceType(c.SourceType), c.Source); err != nil {
		return nil, err
	}
	if c.SniffingFilter != "" {
		if err := m.sniff.SetFilter(c.SniffingFilter); err != nil {
			return nil, err
		}
	}
	if c.RecordFile != "" {
		if err := m.rec.SetRecordFile(c.RecordFile); err != nil {
			return nil, err
		}
	}
	for _, sc := range c.Stats {
		if err := m.LoadStatWithConfig(sc.Name, sc.Params, sc.Spot); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IsRunning reports whether the window loop is active.
func (m *Monitor) IsRunning() bool { return m.running.Load() }

// IsSniffing reports whether the underlying capture is active.
func (m *Monitor) IsSniffing() bool { return m.sniff.IsSniffing() }

func (m *Monitor) guardIdle() error {
	if m.IsRunning() {
		return fmt.Errorf("%w: the monitoring is currently active", errs.ErrAlreadyRunning)
	}
	return nil
}

// SetInterval changes the window length, given in seconds.
func (m *Monitor) SetInterval(seconds float64) error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	if seconds <= 0 {
		return fmt.Errorf("%w: the interval must be a positive number", errs.ErrInvalidConfig)
	}
	m.interval = time.Duration(seconds * float64(time.Second))
	m.logger.Info("Interval set", "seconds", seconds)
	return nil
}

// SetIntervalString parses and sets the window length.
func (m *Monitor) SetIntervalString(value string) error {
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: the interval must be a positive number", errs.ErrInvalidConfig)
	}
	return m.SetInterval(seconds)
}

// Interval returns the window length.
func (m *Monitor) Interval() time.Duration { return m.interval }

// SetRecordFile points the recorder to a new CSV file.
func (m *Monitor) SetRecordFile(path string) error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	return m.rec.SetRecordFile(path)
}

// SetSource changes the packet source, auto-detecting the source type:
// a value naming an existing regular file is replayed, anything else is
// treated as an interface.
func (m *Monitor) SetSource(value string) error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	if info, err := os.Stat(value); err == nil && !info.IsDir() {
		return m.sniff.SetSource(sniffer.SourceFile, value)
	}
	return m.sniff.SetSource(sniffer.SourceIface, value)
}

// SetSourceType forces the interpretation of the current source value.
func (m *Monitor) SetSourceType(value string) error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	return m.sniff.SetSource(sniffer.SourceType(value), m.sniff.Source())
}

// SetFilter sets the BPF sniffing filter.
func (m *Monitor) SetFilter(expr string) error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	return m.sniff.SetFilter(expr)
}

// Info returns the monitor configuration, keyed as in the config file.
func (m *Monitor) Info() map[string]string {
	return map[string]string{
		"interval":        strconv.FormatFloat(m.interval.Seconds(), 'g', -1, 64),
		"record_file":     m.rec.RecordFile(),
		"source":          m.sniff.Source(),
		"source_type":     string(m.sniff.SourceType()),
		"sniffing_filter": m.sniff.Filter(),
	}
}

// ConfigKeys lists the keys recognised by the config interface.
func ConfigKeys() []string {
	return []string{"interval", "record_file", "source", "source_type", "sniffing_filter"}
}

// Snapshot exports the current state as a saveable configuration.
func (m *Monitor) Snapshot() *config.Config {
	c := config.Default()
	c.Interval = m.interval.Seconds()
	c.RecordFile = m.rec.RecordFile()
	c.Source = m.sniff.Source()
	c.SourceType = string(m.sniff.SourceType())
	c.SniffingFilter = m.sniff.Filter()
	c.DefaultSpot = m.defaultSpot
	for _, ls := range m.stats {
		name, params := classAndParams(ls)
		c.Stats = append(c.Stats, config.StatConfig{
			Name:   name,
			Params: params,
			Spot:   ls.Detector.Config(),
		})
	}
	return c
}

// AvailableStats returns the names of the loadable statistic classes.
func (m *Monitor) AvailableStats() []string { return stats.Available() }

// LoadedStats returns the loaded statistics in load order.
func (m *Monitor) LoadedStats() []*stats.LoadedStat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*stats.LoadedStat(nil), m.stats...)
}

// LoadedStatNames returns the loaded statistic names in load order.
func (m *Monitor) LoadedStatNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.stats))
	for i, ls := range m.stats {
		names[i] = ls.Name()
	}
	return names
}

// StatFromName returns a loaded statistic by its unique name.
func (m *Monitor) StatFromName(name string) (*stats.LoadedStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ls := range m.stats {
		if ls.Name() == name {
			return ls, nil
		}
	}
	return nil, fmt.Errorf("%w: the statistic %q is not loaded", errs.ErrInvalidConfig, name)
}

// LoadStat instantiates and loads a statistic with the default detector
// configuration.
func (m *Monitor) LoadStat(name string, params ...string) error {
	return m.LoadStatWithConfig(name, params, m.defaultSpot)
}

// LoadStatWithConfig instantiates and loads a statistic with a dedicated
// detector configuration. Loading an already-loaded statistic fails and
// leaves the list unchanged.
func (m *Monitor) LoadStatWithConfig(name string, params []string, cfg spot.Config) error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	st, err := stats.FromName(name, params...)
	if err != nil {
		return err
	}
	ls, err := stats.Load(st, cfg, m.logger)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.stats {
		if other.Name() == ls.Name() {
			return fmt.Errorf("%w: the statistic %s is already loaded", errs.ErrInvalidConfig, ls.Name())
		}
	}
	m.stats = append(m.stats, ls)
	m.sniff.Load(ls.Needs()...)
	m.logger.Info("Statistic loaded", "stat", ls.Name())
	return nil
}

// UnloadStat removes a loaded statistic by name, deregistering the
// counters no other statistic needs.
func (m *Monitor) UnloadStat(name string) error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	index := -1
	for i, ls := range m.stats {
		if ls.Name() == name {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("%w: the statistic %q is not loaded", errs.ErrInvalidConfig, name)
	}
	removed := m.stats[index]
	m.stats = append(m.stats[:index], m.stats[index+1:]...)
	m.unloadOrphans(removed)
	m.logger.Info("Statistic unloaded", "stat", name)
	return nil
}

// UnloadAll removes every loaded statistic. With nothing loaded it is a
// no-op.
func (m *Monitor) UnloadAll() error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ls := range m.stats {
		m.logger.Info("Statistic unloaded", "stat", ls.Name())
	}
	m.stats = nil
	m.sniff.Unload(m.sniff.CounterNames()...)
	return nil
}

// unloadOrphans deregisters the counters of a removed statistic unless a
// remaining statistic still needs them. Called with m.mu held.
func (m *Monitor) unloadOrphans(removed *stats.LoadedStat) {
	still := make(map[string]bool)
	for _, ls := range m.stats {
		for _, n := range ls.NeedNames() {
			still[n] = true
		}
	}
	var orphans []string
	for _, n := range removed.NeedNames() {
		if !still[n] {
			orphans = append(orphans, n)
		}
	}
	sort.Strings(orphans)
	m.sniff.Unload(orphans...)
}

// ResetAllStats rebuilds every loaded detector from its stored
// configuration. Callable only while idle.
func (m *Monitor) ResetAllStats() error {
	if err := m.guardIdle(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ls := range m.stats {
		ls.ResetDetector()
	}
	m.logger.Info("All detectors reset")
	return nil
}

// LiveOn enables the live printing of each window. It fails while idle.
func (m *Monitor) LiveOn() error {
	if !m.IsRunning() {
		return fmt.Errorf("%w: the monitoring is not active", errs.ErrNotRunning)
	}
	m.rec.SetLive(true)
	return nil
}

// LiveOff disables the live printing.
func (m *Monitor) LiveOff() { m.rec.SetLive(false) }

// IsLive reports whether the live printing is enabled.
func (m *Monitor) IsLive() bool { return m.rec.Live() }

// Recorder exposes the recorder, mainly for tests and the shell.
func (m *Monitor) Recorder() *recorder.Recorder { return m.rec }

// classAndParams recovers the registry class name and the constructor
// parameters of a loaded statistic.
func classAndParams(ls *stats.LoadedStat) (string, []string) {
	if p, ok := ls.Statistic.(*stats.NbIPToIPPkts); ok {
		return "NB_IP_TO_IP_PKTS", p.Params()
	}
	return ls.Name(), nil
}
