package monitor

import (
	"fmt"
	"time"

	"github.com/asiffer/netspot/internal/errs"
	"github.com/asiffer/netspot/internal/sniffer"
)

// Start launches the monitoring: the recorder formatters are rebuilt from
// the loaded statistics, the sniffer is started if needed, the counters
// are reset and the window loop is spawned.
func (m *Monitor) Start(live bool) error {
	if !m.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: the monitoring is currently active", errs.ErrAlreadyRunning)
	}

	m.mu.Lock()
	names := make([]string, len(m.stats))
	fmts := make([]string, len(m.stats))
	for i, ls := range m.stats {
		names[i] = ls.Name()
		fmts[i] = ls.Fmt()
	}
	m.mu.Unlock()
	if err := m.rec.InitFormatters(names, fmts); err != nil {
		m.running.Store(false)
		return err
	}
	m.rec.Reset()
	m.rec.SetLive(live)

	// Reset before starting: a file replay begins dispatching as soon as
	// the source is open, and those packets belong to the first window.
	m.sniff.Reset()
	if !m.sniff.IsSniffing() {
		if err := m.sniff.SetTickPeriod(m.interval); err != nil {
			m.running.Store(false)
			return err
		}
		if err := m.sniff.Start(); err != nil {
			m.running.Store(false)
			return err
		}
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop()
	m.logger.Info("Monitoring started")
	return nil
}

// Stop requests the window loop and the sniffer to end, and waits for the
// loop to settle. No partial-window row is written.
func (m *Monitor) Stop() error {
	if !m.IsRunning() {
		return fmt.Errorf("%w: the monitoring is not active", errs.ErrNotRunning)
	}
	close(m.stop)
	m.sniff.Stop()
	<-m.done
	m.logger.Info("Monitoring stopped")
	return nil
}

// loop is the window task. A live source is polled through a ticker: the
// capture clock is compared against the window boundary at every wake-up.
// A file source instead delivers a synchronous tick at each boundary
// crossing, since the replay outpaces any wall-clock poller. The loop
// exits once the sniffer has drained or a stop has been requested.
func (m *Monitor) loop() {
	defer func() {
		m.rec.SetLive(false)
		m.running.Store(false)
		close(m.done)
	}()

	fileMode := m.sniff.SourceType() == sniffer.SourceFile

	tick := m.interval / 20
	if tick < minTick {
		tick = minTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var tBegin time.Time
	for {
		select {
		case <-m.stop:
			return
		case ts := <-m.sniff.Ticks():
			m.window(ts)
			continue
		case <-ticker.C:
		}

		if !fileMode {
			now := m.sniff.Time()
			if !now.IsZero() {
				if tBegin.IsZero() {
					tBegin = now
				}
				if now.Sub(tBegin) > m.interval {
					m.window(now)
					tBegin = now
				}
			}
		}
		if !m.sniff.IsSniffing() {
			return
		}
	}
}

// window computes every loaded statistic from one atomic snapshot of the
// counters (which also resets them) and saves the row. A failing
// statistic skips the row but the counters stay reset.
func (m *Monitor) window(now time.Time) {
	snapshot := m.sniff.Flush()
	values := make([]float64, len(m.stats))
	for i, ls := range m.stats {
		names := ls.NeedNames()
		readings := make([]float64, len(names))
		for j, name := range names {
			readings[j] = snapshot[name]
		}
		value, err := ls.ComputeAndMonitor(readings)
		if err != nil {
			m.logger.Warn("Window skipped", "stat", ls.Name(), "error", err)
			return
		}
		values[i] = value
	}
	m.rec.Save(now, values)
}
