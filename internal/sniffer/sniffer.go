// Package sniffer owns the packet source and the registered counters. A
// single dispatcher drives every captured packet through all the counters
// under one lock, and publishes a monotonic capture clock.
package sniffer

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"

	"github.com/asiffer/netspot/internal/counters"
	"github.com/asiffer/netspot/internal/errs"
	"github.com/asiffer/netspot/internal/logging"
)

// SourceType selects how packets are acquired.
type SourceType string

const (
	// SourceIface captures from a live interface.
	SourceIface SourceType = "iface"
	// SourceFile replays a capture file packet by packet.
	SourceFile SourceType = "file"
)

// AllInterfaces is the sentinel interface name meaning every usable
// interface.
const AllInterfaces = "all"

// Sniffer dispatches packets to the registered counters.
type Sniffer struct {
	mu    sync.Mutex // dispatcher lock, guards cs and order
	cs    map[string]counters.Counter
	order []string // stable dispatch order

	sourceType SourceType
	source     string
	filter     string

	clock    atomic.Int64 // unix nanos of the last processed packet
	sniffing atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// tickPeriod enables boundary detection on the dispatch path for
	// file sources, where the replay outpaces any wall-clock poller.
	tickPeriod time.Duration
	lastTick   int64 // unix nanos, dispatch goroutine only
	ticks      chan time.Time

	logger *logging.Logger
}

// New returns an idle sniffer on the default source (all interfaces).
func New(logger *logging.Logger) *Sniffer {
	return &Sniffer{
		cs:         make(map[string]counters.Counter),
		sourceType: SourceIface,
		source:     AllInterfaces,
		ticks:      make(chan time.Time),
		logger:     logger,
	}
}

// SourceType returns the current source kind.
func (s *Sniffer) SourceType() SourceType { return s.sourceType }

// Source returns the interface name or the capture file path.
func (s *Sniffer) Source() string { return s.source }

// Filter returns the BPF filter expression, if any.
func (s *Sniffer) Filter() string { return s.filter }

// SetSource changes the packet source. It fails while the sniffer runs.
func (s *Sniffer) SetSource(kind SourceType, value string) error {
	if s.IsSniffing() {
		return fmt.Errorf("%w: the sniffer is currently active", errs.ErrAlreadyRunning)
	}
	switch kind {
	case SourceIface:
		if value == "" {
			value = AllInterfaces
		}
		if value != AllInterfaces {
			if _, err := net.InterfaceByName(value); err != nil {
				return fmt.Errorf("%w: unknown interface %q", errs.ErrInvalidSource, value)
			}
		}
	case SourceFile:
		info, err := os.Stat(value)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%w: cannot read capture file %q", errs.ErrInvalidSource, value)
		}
	default:
		return fmt.Errorf("%w: the source type must be %q or %q", errs.ErrInvalidSource, SourceIface, SourceFile)
	}
	s.sourceType = kind
	s.source = value
	s.logger.Info("Source set", "type", kind, "source", value)
	return nil
}

// SetFilter sets the BPF filter applied to a live source.
func (s *Sniffer) SetFilter(expr string) error {
	if s.IsSniffing() {
		return fmt.Errorf("%w: the sniffer is currently active", errs.ErrAlreadyRunning)
	}
	if s.sourceType != SourceIface {
		return fmt.Errorf("%w: a sniffing filter only applies to a live source", errs.ErrInvalidConfig)
	}
	s.filter = expr
	s.logger.Info("Sniffing filter set", "filter", expr)
	return nil
}

// Load registers counters. Loading an already-registered counter identity
// is a no-op.
func (s *Sniffer) Load(cs ...counters.Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cs {
		name := c.Name()
		if _, ok := s.cs[name]; ok {
			continue
		}
		s.cs[name] = c
		s.order = append(s.order, name)
		s.logger.Info("Counter loaded", "counter", name)
	}
}

// Unload deregisters counters by name. Unknown names are ignored.
func (s *Sniffer) Unload(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if _, ok := s.cs[name]; !ok {
			continue
		}
		delete(s.cs, name)
		for i, n := range s.order {
			if n == name {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.logger.Info("Counter unloaded", "counter", name)
	}
}

// IsLoaded reports whether a counter identity is registered.
func (s *Sniffer) IsLoaded(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cs[name]
	return ok
}

// CounterNames returns the registered names in dispatch order.
func (s *Sniffer) CounterNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// IsSniffing reports whether the capture is active.
func (s *Sniffer) IsSniffing() bool { return s.sniffing.Load() }

// Time returns the capture clock: the timestamp of the last processed
// packet. The zero time means no packet has been seen yet.
func (s *Sniffer) Time() time.Time {
	ns := s.clock.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// SetTickPeriod arms the dispatch-path boundary detection: while a file
// source replays, a tick carrying the capture time is delivered on Ticks
// whenever a packet crosses the period. The delivery is synchronous, so
// the replay cannot outrun the window task. A zero period disables it.
func (s *Sniffer) SetTickPeriod(period time.Duration) error {
	if s.IsSniffing() {
		return fmt.Errorf("%w: the sniffer is currently active", errs.ErrAlreadyRunning)
	}
	s.tickPeriod = period
	return nil
}

// Ticks delivers the capture time of each period crossing of a file
// replay. See SetTickPeriod.
func (s *Sniffer) Ticks() <-chan time.Time { return s.ticks }

// GetValues returns an atomic snapshot of the named counters, in request
// order.
func (s *Sniffer) GetValues(names ...string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make([]float64, len(names))
	for i, name := range names {
		c, ok := s.cs[name]
		if !ok {
			return nil, fmt.Errorf("%w: counter %q is not loaded", errs.ErrInvalidConfig, name)
		}
		values[i] = c.Value()
	}
	return values, nil
}

// Reset resets every registered counter under the dispatch lock.
func (s *Sniffer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cs {
		c.Reset()
	}
}

// Flush reads every counter and resets it, in a single lock acquisition,
// so a window boundary attributes each packet to exactly one window.
func (s *Sniffer) Flush() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]float64, len(s.cs))
	for name, c := range s.cs {
		values[name] = c.Value()
		c.Reset()
	}
	return values
}

// Stop requests the capture to end. The request may take one packet to be
// observed in live mode; in file mode it is also observed at EOF.
func (s *Sniffer) Stop() {
	if s.stop == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
		s.logger.Info("Stop capturing")
	})
}

// dispatch pushes one packet through every registered counter and updates
// the capture clock, all under the dispatcher lock. For a file source it
// then performs the boundary detection.
func (s *Sniffer) dispatch(pkt gopacket.Packet, ts time.Time) {
	s.mu.Lock()
	s.clock.Store(ts.UnixNano())
	for _, name := range s.order {
		s.cs[name].Process(pkt)
	}
	s.mu.Unlock()

	if s.sourceType != SourceFile || s.tickPeriod <= 0 {
		return
	}
	if s.lastTick == 0 {
		s.lastTick = ts.UnixNano()
		return
	}
	if ts.Sub(time.Unix(0, s.lastTick)) > s.tickPeriod {
		select {
		case s.ticks <- ts:
		case <-s.stop:
		}
		s.lastTick = ts.UnixNano()
	}
}
