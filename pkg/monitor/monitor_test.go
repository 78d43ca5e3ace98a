package monitor

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asiffer/netspot/internal/config"
	"github.com/asiffer/netspot/internal/errs"
	"github.com/asiffer/netspot/internal/logging"
)

func rawUDP(t *testing.T, src, dst string) []byte {
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
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src),
		DstIP:    net.ParseIP(dst),
	}
	udp := layers.UDP{SrcPort: 4000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(&ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp))
	return buf.Bytes()
}

type timedPacket struct {
	at   time.Duration
	data []byte
}

func writePcap(t *testing.T, path string, base time.Time, pkts []timedPacket) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, p := range pkts {
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(p.at),
			CaptureLength: len(p.data),
			Length:        len(p.data),
		}
		require.NoError(t, w.WritePacket(ci, p.data))
	}
}

func waitIdle(t *testing.T, m *Monitor) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for m.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("the monitor did not settle")
		case <-time.After(time.Millisecond):
		}
	}
}

func newTestMonitor() *Monitor {
	return New(logging.Discard())
}

func TestInfoDefaults(t *testing.T) {
	m := newTestMonitor()
	info := m.Info()
	assert.Equal(t, "2", info["interval"])
	assert.Equal(t, "all", info["source"])
	assert.Equal(t, "iface", info["source_type"])
	assert.Equal(t, "", info["record_file"])
	assert.Equal(t, "", info["sniffing_filter"])
}

func TestSetIntervalValidation(t *testing.T) {
	m := newTestMonitor()
	require.NoError(t, m.SetIntervalString("3"))
	assert.Equal(t, 3*time.Second, m.Interval())
	assert.Equal(t, "3", m.Info()["interval"])

	assert.ErrorIs(t, m.SetIntervalString("fast"), errs.ErrInvalidConfig)
	assert.ErrorIs(t, m.SetInterval(-1), errs.ErrInvalidConfig)
}

func TestSourceAutoDetection(t *testing.T) {
	m := newTestMonitor()
	path := filepath.Join(t.TempDir(), "c.pcap")
	writePcap(t, path, time.Unix(1700000000, 0), []timedPacket{{0, rawUDP(t, "10.0.0.1", "10.0.0.2")}})

	// an existing file selects the file source
	require.NoError(t, m.SetSource(path))
	assert.Equal(t, "file", m.Info()["source_type"])

	// anything else is treated as an interface
	require.NoError(t, m.SetSource("all"))
	assert.Equal(t, "iface", m.Info()["source_type"])
	assert.ErrorIs(t, m.SetSource("no-such-iface-0"), errs.ErrInvalidSource)
}

func TestLoadUnloadStats(t *testing.T) {
	m := newTestMonitor()
	require.NoError(t, m.LoadStat("R_SYN"))
	require.NoError(t, m.LoadStat("NB_IP_PKTS"))
	assert.Equal(t, []string{"R_SYN", "NB_IP_PKTS"}, m.LoadedStatNames())

	// loading twice fails and leaves the list unchanged
	err := m.LoadStat("R_SYN")
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
	assert.Equal(t, []string{"R_SYN", "NB_IP_PKTS"}, m.LoadedStatNames())

	require.NoError(t, m.UnloadStat("R_SYN"))
	assert.Equal(t, []string{"NB_IP_PKTS"}, m.LoadedStatNames())

	assert.ErrorIs(t, m.UnloadStat("R_SYN"), errs.ErrInvalidConfig)

	// unloading everything with nothing loaded is a no-op
	require.NoError(t, m.UnloadAll())
	require.NoError(t, m.UnloadAll())
	assert.Empty(t, m.LoadedStatNames())
}

func TestIPPairValidationOnLoad(t *testing.T) {
	m := newTestMonitor()
	err := m.LoadStat("NB_IP_TO_IP_PKTS", "10.0.0.1", "not-an-ip")
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
	assert.Empty(t, m.LoadedStatNames())
}

// Scenario: replay a capture without any SYN. Every window must compute
// R_SYN = 0 and the detector must stay quiet.
func TestFileReplayNoSyn(t *testing.T) {
	base := time.Unix(1700000000, 0)
	pkts := make([]timedPacket, 100)
	for i := range pkts {
		pkts[i] = timedPacket{time.Duration(i) * 20 * time.Millisecond, rawUDP(t, "10.0.0.1", "10.0.0.2")}
	}
	path := filepath.Join(t.TempDir(), "nosyn.pcap")
	writePcap(t, path, base, pkts)

	m := newTestMonitor()
	csv := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, m.Recorder().SetChunkSize(1))
	require.NoError(t, m.SetRecordFile(csv))
	require.NoError(t, m.SetSource(path))
	require.NoError(t, m.SetInterval(0.01))

	cfg := m.defaultSpot
	cfg.NInit = 10
	require.NoError(t, m.LoadStatWithConfig("R_SYN", nil, cfg))

	require.NoError(t, m.Start(false))
	waitIdle(t, m)

	content, err := os.ReadFile(csv)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	// one window per packet after the first: the 10ms interval is finer
	// than the 20ms inter-packet gap
	require.Len(t, lines, 100)
	assert.Equal(t, "Time,R_SYN", lines[0])
	for _, line := range lines[1:] {
		assert.True(t, strings.HasSuffix(line, ",0"), line)
	}

	ls, err := m.StatFromName("R_SYN")
	require.NoError(t, err)
	st := ls.Detector.Status()
	assert.Equal(t, 99, st.N)
	assert.Equal(t, 0, *st.AlUp)
}

// Scenario: two disjoint IP-pair statistics are isolated; direction does
// not matter within a pair.
func TestCounterIsolation(t *testing.T) {
	base := time.Unix(1700000000, 0)
	var pkts []timedPacket
	for i := 0; i < 10; i++ {
		src, dst := "10.0.0.1", "10.0.0.2"
		if i%2 == 1 {
			src, dst = dst, src // reversed direction still counts
		}
		pkts = append(pkts, timedPacket{time.Duration(i) * time.Millisecond, rawUDP(t, src, dst)})
	}
	for i := 0; i < 3; i++ {
		pkts = append(pkts, timedPacket{time.Duration(10+i) * time.Millisecond, rawUDP(t, "10.0.1.1", "10.0.1.2")})
	}
	// the trailer crosses the window boundary
	pkts = append(pkts, timedPacket{500 * time.Millisecond, rawUDP(t, "10.0.2.1", "10.0.2.2")})

	path := filepath.Join(t.TempDir(), "pairs.pcap")
	writePcap(t, path, base, pkts)

	m := newTestMonitor()
	csv := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, m.Recorder().SetChunkSize(1))
	require.NoError(t, m.SetRecordFile(csv))
	require.NoError(t, m.SetSource(path))
	require.NoError(t, m.SetInterval(0.1))
	require.NoError(t, m.LoadStat("NB_IP_TO_IP_PKTS", "10.0.0.1", "10.0.0.2"))
	require.NoError(t, m.LoadStat("NB_IP_TO_IP_PKTS", "10.0.1.1", "10.0.1.2"))

	require.NoError(t, m.Start(false))
	waitIdle(t, m)

	content, err := os.ReadFile(csv)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], ",10,3"), lines[1])
}

func TestStopWritesNoPartialRow(t *testing.T) {
	base := time.Unix(1700000000, 0)
	pkts := []timedPacket{
		{0, rawUDP(t, "10.0.0.1", "10.0.0.2")},
		{time.Millisecond, rawUDP(t, "10.0.0.1", "10.0.0.2")},
	}
	path := filepath.Join(t.TempDir(), "short.pcap")
	writePcap(t, path, base, pkts)

	m := newTestMonitor()
	require.NoError(t, m.SetSource(path))
	require.NoError(t, m.SetInterval(10)) // no window ever completes
	require.NoError(t, m.LoadStat("NB_IP_PKTS"))

	require.NoError(t, m.Start(false))
	assert.ErrorIs(t, m.SetInterval(1), errs.ErrAlreadyRunning)

	// the second start fails while the loop is alive; the loop may also
	// have already drained the 2-packet file, which is fine too
	if err := m.Start(false); err == nil {
		_ = m.Stop()
	} else {
		assert.ErrorIs(t, err, errs.ErrAlreadyRunning)
		_ = m.Stop()
	}
	waitIdle(t, m)
	assert.Equal(t, 0, m.Recorder().Len())
}

func TestResetAllStats(t *testing.T) {
	m := newTestMonitor()
	cfg := m.defaultSpot
	cfg.NInit = 5
	require.NoError(t, m.LoadStatWithConfig("NB_IP_PKTS", nil, cfg))

	ls, err := m.StatFromName("NB_IP_PKTS")
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		_, err := ls.ComputeAndMonitor([]float64{float64(i)})
		require.NoError(t, err)
	}
	require.NoError(t, m.ResetAllStats())

	assert.Equal(t, cfg, ls.Detector.Config())
	assert.Equal(t, 0, ls.Detector.Status().N)
}

func TestFromConfigAndSnapshot(t *testing.T) {
	c := config.Default()
	c.Interval = 3
	c.Stats = []config.StatConfig{
		{Name: "R_SYN", Spot: c.DefaultSpot},
		{Name: "NB_IP_TO_IP_PKTS", Params: []string{"10.0.0.1", "10.0.0.2"}, Spot: c.DefaultSpot},
	}
	m, err := FromConfig(c, logging.Discard())
	require.NoError(t, err)

	info := m.Info()
	assert.Equal(t, "3", info["interval"])
	assert.Equal(t, []string{"R_SYN", "NB_10.0.0.1_TO_10.0.0.2_PKTS"}, m.LoadedStatNames())

	// the snapshot saves and reloads to the same state
	path := filepath.Join(t.TempDir(), "snap.ini")
	require.NoError(t, m.Snapshot().Save(path))
	reloaded, err := config.Load(path)
	require.NoError(t, err)
	m2, err := FromConfig(reloaded, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, m.Info(), m2.Info())
	assert.ElementsMatch(t, m.LoadedStatNames(), m2.LoadedStatNames())
}

func TestLiveRequiresRunning(t *testing.T) {
	m := newTestMonitor()
	assert.ErrorIs(t, m.LiveOn(), errs.ErrNotRunning)
	m.LiveOff()
	assert.False(t, m.IsLive())
}
