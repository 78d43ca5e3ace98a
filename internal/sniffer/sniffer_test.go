package sniffer

import (
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asiffer/netspot/internal/counters"
	"github.com/asiffer/netspot/internal/errs"
	"github.com/asiffer/netspot/internal/logging"
)

func rawTCP(t *testing.T, src, dst string, syn bool) []byte {
	t.Helper()
	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x0c, 0x29, 0x01, 0x02, 0x03},
		DstMAC:       net.HardwareAddr{0x00, 0x0c, 0x29, 0x04, 0x05, 0x06},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(src),
		DstIP:    net.ParseIP(dst),
	}
	tcp := layers.TCP{SrcPort: 40000, DstPort: 80, SYN: syn}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(&ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &ip, &tcp))
	return buf.Bytes()
}

func packetFromBytes(data []byte) gopacket.Packet {
	return gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
}

// writePcap authors a capture file with one packet every gap, starting at
// base.
func writePcap(t *testing.T, path string, base time.Time, gap time.Duration, pkts ...[]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for i, data := range pkts {
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(i) * gap),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
}

func newTestSniffer() *Sniffer {
	return New(logging.Discard())
}

func TestLoadUnload(t *testing.T) {
	s := newTestSniffer()
	ip := counters.NewIP()
	syn := counters.NewSYN()
	s.Load(ip, syn)
	s.Load(ip) // idempotent
	assert.Equal(t, []string{"IP", "SYN"}, s.CounterNames())
	assert.True(t, s.IsLoaded("IP"))

	s.Unload("IP")
	s.Unload("IP") // idempotent
	assert.Equal(t, []string{"SYN"}, s.CounterNames())
	assert.False(t, s.IsLoaded("IP"))
}

func TestGetValuesOrderAndErrors(t *testing.T) {
	s := newTestSniffer()
	s.Load(counters.NewIP(), counters.NewSYN())

	pkt := packetFromBytes(rawTCP(t, "10.0.0.1", "10.0.0.2", true))
	s.dispatch(pkt, time.Now())
	s.dispatch(pkt, time.Now())

	values, err := s.GetValues("SYN", "IP")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, values)

	_, err = s.GetValues("ACK")
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestFlushSnapshotsAndResets(t *testing.T) {
	s := newTestSniffer()
	s.Load(counters.NewIP())
	s.dispatch(packetFromBytes(rawTCP(t, "10.0.0.1", "10.0.0.2", false)), time.Now())

	snapshot := s.Flush()
	assert.Equal(t, 1.0, snapshot["IP"])

	values, err := s.GetValues("IP")
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, values)
}

func TestSetSourceValidation(t *testing.T) {
	s := newTestSniffer()

	err := s.SetSource(SourceFile, "/definitely/not/here.pcap")
	assert.ErrorIs(t, err, errs.ErrInvalidSource)

	err = s.SetSource(SourceIface, "no-such-iface-0")
	assert.ErrorIs(t, err, errs.ErrInvalidSource)

	err = s.SetSource("nope", "x")
	assert.ErrorIs(t, err, errs.ErrInvalidSource)

	// "all" is always accepted for a live source
	require.NoError(t, s.SetSource(SourceIface, AllInterfaces))
	assert.Equal(t, AllInterfaces, s.Source())
}

func TestSetFilterOnFileSource(t *testing.T) {
	s := newTestSniffer()
	path := filepath.Join(t.TempDir(), "c.pcap")
	writePcap(t, path, time.Unix(1700000000, 0), time.Millisecond, rawTCP(t, "10.0.0.1", "10.0.0.2", false))
	require.NoError(t, s.SetSource(SourceFile, path))

	err := s.SetFilter("tcp")
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestFileReplay(t *testing.T) {
	base := time.Unix(1700000000, 0)
	path := filepath.Join(t.TempDir(), "replay.pcap")
	writePcap(t, path, base, 10*time.Millisecond,
		rawTCP(t, "10.0.0.1", "10.0.0.2", true),
		rawTCP(t, "10.0.0.1", "10.0.0.2", false),
		rawTCP(t, "10.0.0.2", "10.0.0.1", false),
	)

	s := newTestSniffer()
	s.Load(counters.NewIP(), counters.NewSYN())
	require.NoError(t, s.SetSource(SourceFile, path))
	require.NoError(t, s.Start())

	deadline := time.After(5 * time.Second)
	for s.IsSniffing() {
		select {
		case <-deadline:
			t.Fatal("file replay did not finish")
		case <-time.After(time.Millisecond):
		}
	}

	values, err := s.GetValues("IP", "SYN")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, values)

	// capture clock follows the file timestamps
	assert.Equal(t, base.Add(20*time.Millisecond).UnixNano(), s.Time().UnixNano())
}

func TestFileTickDelivery(t *testing.T) {
	base := time.Unix(1700000000, 0)
	path := filepath.Join(t.TempDir(), "ticks.pcap")
	pkts := make([][]byte, 5)
	for i := range pkts {
		pkts[i] = rawTCP(t, "10.0.0.1", "10.0.0.2", false)
	}
	writePcap(t, path, base, 10*time.Millisecond, pkts...)

	s := newTestSniffer()
	s.Load(counters.NewIP())
	require.NoError(t, s.SetSource(SourceFile, path))
	require.NoError(t, s.SetTickPeriod(15*time.Millisecond))

	var mu sync.Mutex
	var ticks []time.Time
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ts := <-s.Ticks():
				mu.Lock()
				ticks = append(ticks, ts)
				mu.Unlock()
			case <-time.After(time.Second):
				return
			}
		}
	}()

	require.NoError(t, s.Start())
	deadline := time.After(5 * time.Second)
	for s.IsSniffing() {
		select {
		case <-deadline:
			t.Fatal("file replay did not finish")
		case <-time.After(time.Millisecond):
		}
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	// crossings at +20ms and +40ms from the first packet
	require.Len(t, ticks, 2)
	assert.Equal(t, base.Add(20*time.Millisecond).UnixNano(), ticks[0].UnixNano())
	assert.Equal(t, base.Add(40*time.Millisecond).UnixNano(), ticks[1].UnixNano())
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	s := newTestSniffer()
	s.Stop()
	assert.False(t, s.IsSniffing())
}
