package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asiffer/netspot/internal/errs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netspot.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 2.0, c.Interval)
	assert.Equal(t, "all", c.Source)
	assert.Equal(t, "iface", c.SourceType)
	assert.Equal(t, 1e-3, c.DefaultSpot.Q)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
[config]
interval = 1.5
record_file = /tmp/netspot.csv
source = eth0
source_type = iface
sniffing_filter = tcp port 80

[DEFAULT]
q = 1e-4
n_init = 500
level = 0.95
up = true
down = false
bounded = true
max_excess = 100

[statistics]
R_SYN = true
R_ACK = false
NB_IP_PKTS = true

[R_ICMP]
q = 1e-5
n_init = 2000

[NB_IP_TO_IP_PKTS]
param = 10.0.0.1, 10.0.0.2
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1.5, c.Interval)
	assert.Equal(t, "/tmp/netspot.csv", c.RecordFile)
	assert.Equal(t, "eth0", c.Source)
	assert.Equal(t, "tcp port 80", c.SniffingFilter)
	assert.Equal(t, 1e-4, c.DefaultSpot.Q)
	assert.Equal(t, 500, c.DefaultSpot.NInit)

	names := map[string][]string{}
	for _, sc := range c.Stats {
		names[sc.Name] = sc.Params
	}
	assert.Contains(t, names, "R_SYN")
	assert.NotContains(t, names, "R_ACK")
	assert.Contains(t, names, "NB_IP_PKTS")
	assert.Contains(t, names, "R_ICMP")
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, names["NB_IP_TO_IP_PKTS"])

	// the dedicated section overrides the defaults
	for _, sc := range c.Stats {
		switch sc.Name {
		case "R_ICMP":
			assert.Equal(t, 1e-5, sc.Spot.Q)
			assert.Equal(t, 2000, sc.Spot.NInit)
			assert.Equal(t, 0.95, sc.Spot.Level) // inherited
		case "R_SYN":
			assert.Equal(t, 1e-4, sc.Spot.Q)
		}
	}
}

func TestLoadInvalidInterval(t *testing.T) {
	path := writeConfig(t, "[config]\ninterval = fast\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)

	path = writeConfig(t, "[config]\ninterval = -2\n")
	_, err = Load(path)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestLoadInvalidSourceType(t *testing.T) {
	path := writeConfig(t, "[config]\nsource_type = magic\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestLoadMissingParam(t *testing.T) {
	path := writeConfig(t, "[NB_IP_TO_IP_PKTS]\nq = 1e-3\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/no/such/netspot.ini")
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestSaveRoundTrip(t *testing.T) {
	c := Default()
	c.Interval = 3
	c.Source = "capture.pcap"
	c.SourceType = "file"
	c.RecordFile = "/tmp/out.csv"
	c.Stats = []StatConfig{
		{Name: "R_SYN", Spot: c.DefaultSpot},
		{Name: "NB_IP_TO_IP_PKTS", Params: []string{"10.0.0.1", "10.0.0.2"}, Spot: c.DefaultSpot},
	}

	path := filepath.Join(t.TempDir(), "saved.ini")
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c.Interval, loaded.Interval)
	assert.Equal(t, c.Source, loaded.Source)
	assert.Equal(t, c.SourceType, loaded.SourceType)
	assert.Equal(t, c.RecordFile, loaded.RecordFile)
	assert.Equal(t, c.DefaultSpot, loaded.DefaultSpot)

	names := map[string][]string{}
	for _, sc := range loaded.Stats {
		names[sc.Name] = sc.Params
	}
	assert.Contains(t, names, "R_SYN")
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, names["NB_IP_TO_IP_PKTS"])
}
