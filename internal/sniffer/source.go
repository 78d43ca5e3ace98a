package sniffer

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"

	"github.com/asiffer/netspot/internal/errs"
)

const (
	snaplen       = 65536
	statsInterval = 30 * time.Second
)

// Start opens the configured source and launches the capture. It is a
// no-op when the sniffer already runs.
func (s *Sniffer) Start() error {
	if s.sniffing.Load() {
		return nil
	}
	s.stop = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.lastTick = 0

	switch s.sourceType {
	case SourceFile:
		if err := s.startFile(); err != nil {
			return err
		}
	default:
		if err := s.startLive(); err != nil {
			return err
		}
	}
	s.sniffing.Store(true)

	// Release the sniffing flag once every capture goroutine has exited,
	// whether through Stop, EOF or a source failure.
	go func() {
		s.wg.Wait()
		s.sniffing.Store(false)
		s.logger.Info("Capture stopped")
	}()
	return nil
}

func (s *Sniffer) startFile() error {
	f, err := os.Open(s.source)
	if err != nil {
		return fmt.Errorf("%w: cannot open capture file %q", errs.ErrInvalidSource, s.source)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %q is not a pcap file", errs.ErrInvalidSource, s.source)
	}
	s.wg.Add(1)
	go s.runFile(f, r)
	s.logger.Info("Start reading", "file", s.source)
	return nil
}

func (s *Sniffer) runFile(f *os.File, r *pcapgo.Reader) {
	defer s.wg.Done()
	defer f.Close()
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		data, ci, err := r.ReadPacketData()
		if err != nil {
			if err != io.EOF {
				s.logger.Warn("Capture file read error", "file", s.source, "error", err)
			}
			return
		}
		pkt := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		s.dispatch(pkt, ci.Timestamp)
	}
}

func (s *Sniffer) startLive() error {
	devices, err := s.devices()
	if err != nil {
		return err
	}
	handles := make([]*pcap.Handle, 0, len(devices))
	for _, dev := range devices {
		handle, err := pcap.OpenLive(dev, snaplen, true, pcap.BlockForever)
		if err != nil {
			for _, h := range handles {
				h.Close()
			}
			if strings.Contains(strings.ToLower(err.Error()), "permission") {
				return fmt.Errorf("%w: cannot capture on %s", errs.ErrPermissionDenied, dev)
			}
			return fmt.Errorf("%w: cannot open %s: %v", errs.ErrInvalidSource, dev, err)
		}
		if s.filter != "" {
			if err := handle.SetBPFFilter(s.filter); err != nil {
				handle.Close()
				for _, h := range handles {
					h.Close()
				}
				return fmt.Errorf("%w: bad filter %q: %v", errs.ErrInvalidConfig, s.filter, err)
			}
		}
		handles = append(handles, handle)
	}
	for i, handle := range handles {
		s.wg.Add(1)
		go s.runLive(handle, devices[i])
	}
	s.logger.Info("Start sniffing", "interfaces", strings.Join(devices, ","), "filter", s.filter)
	return nil
}

func (s *Sniffer) runLive(handle *pcap.Handle, device string) {
	defer s.wg.Done()
	defer handle.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var lastReceived, lastDropped int
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			stats, err := handle.Stats()
			if err != nil {
				continue
			}
			if drops := stats.PacketsDropped - lastDropped; drops > 0 {
				s.logger.Warn("Kernel dropped packets",
					"interface", device,
					"drops", drops,
					"received", stats.PacketsReceived-lastReceived,
				)
			}
			lastReceived, lastDropped = stats.PacketsReceived, stats.PacketsDropped
		case pkt, ok := <-source.Packets():
			if !ok {
				return
			}
			s.dispatch(pkt, pkt.Metadata().Timestamp)
		}
	}
}

// devices resolves the source to a list of capture devices. The sentinel
// "all" expands to every up, non-loopback interface carrying an address,
// except those named docker*, br-* or veth*.
func (s *Sniffer) devices() ([]string, error) {
	if s.source != AllInterfaces {
		return []string{s.source}, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot list interfaces: %v", errs.ErrInvalidSource, err)
	}
	var devices []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if strings.HasPrefix(iface.Name, "docker") ||
			strings.HasPrefix(iface.Name, "br-") ||
			strings.HasPrefix(iface.Name, "veth") {
			continue
		}
		if addrs, err := iface.Addrs(); err != nil || len(addrs) == 0 {
			continue
		}
		devices = append(devices, iface.Name)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no usable interface found", errs.ErrInvalidSource)
	}
	return devices, nil
}
