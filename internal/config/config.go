// Package config loads and saves the netspot INI configuration: the
// [config] section for the monitor, [DEFAULT] for the detector defaults,
// [statistics] flags and one section per tuned or parametric statistic.
package config

import (
	"fmt"
	"strings"

	"github.com/go-ini/ini"

	"github.com/asiffer/netspot/internal/errs"
	"github.com/asiffer/netspot/internal/logging"
	"github.com/asiffer/netspot/internal/spot"
	"github.com/asiffer/netspot/internal/stats"
)

// StatConfig describes one statistic to load.
type StatConfig struct {
	Name   string
	Params []string
	Spot   spot.Config
}

// Config is the full program configuration.
type Config struct {
	Interval       float64 // seconds
	RecordFile     string
	Source         string
	SourceType     string
	SniffingFilter string
	Log            logging.Options
	DefaultSpot    spot.Config
	Stats          []StatConfig
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Interval:    2.0,
		Source:      "all",
		SourceType:  "iface",
		DefaultSpot: spot.DefaultConfig(),
	}
}

// reserved section names that never describe a statistic.
func reserved(name string) bool {
	switch name {
	case "config", "statistics", "DEFAULT", "default", ini.DefaultSection:
		return true
	}
	return false
}

// Load parses an INI configuration file.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", errs.ErrInvalidConfig, path, err)
	}
	c := Default()

	if sec, err := f.GetSection("config"); err == nil {
		if err := c.readConfigSection(sec); err != nil {
			return nil, err
		}
	}

	for _, name := range []string{ini.DefaultSection, "default"} {
		if sec, err := f.GetSection(name); err == nil && len(sec.Keys()) > 0 {
			c.DefaultSpot, err = spotFromSection(sec, c.DefaultSpot)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	// Sections dedicated to a statistic: detector overrides and, for the
	// parametric ones, the constructor parameters.
	for _, sec := range f.Sections() {
		name := sec.Name()
		if reserved(name) {
			continue
		}
		if _, known := stats.Describe(name); !known {
			continue
		}
		spotCfg, err := spotFromSection(sec, c.DefaultSpot)
		if err != nil {
			return nil, err
		}
		var params []string
		if sec.HasKey("param") {
			for _, p := range strings.Split(sec.Key("param").String(), ",") {
				if p = strings.TrimSpace(p); p != "" {
					params = append(params, p)
				}
			}
		}
		if stats.RequiresParams(name) && len(params) == 0 {
			return nil, fmt.Errorf("%w: statistic %s needs a 'param' key", errs.ErrInvalidConfig, name)
		}
		c.Stats = append(c.Stats, StatConfig{Name: name, Params: params, Spot: spotCfg})
	}

	// Parameter-less statistics enabled through boolean flags, with the
	// default detector configuration.
	if sec, err := f.GetSection("statistics"); err == nil {
		for _, key := range sec.Keys() {
			name := strings.ToUpper(key.Name())
			if _, known := stats.Describe(name); !known {
				continue
			}
			enabled, err := key.Bool()
			if err != nil || !enabled || c.hasStat(name) {
				continue
			}
			c.Stats = append(c.Stats, StatConfig{Name: name, Spot: c.DefaultSpot})
		}
	}
	return c, nil
}

func (c *Config) hasStat(name string) bool {
	for _, sc := range c.Stats {
		if sc.Name == name {
			return true
		}
	}
	return false
}

func (c *Config) readConfigSection(sec *ini.Section) error {
	if sec.HasKey("interval") {
		v, err := sec.Key("interval").Float64()
		if err != nil || v <= 0 {
			return fmt.Errorf("%w: the interval must be a positive number", errs.ErrInvalidConfig)
		}
		c.Interval = v
	}
	if sec.HasKey("record_file") {
		c.RecordFile = sec.Key("record_file").String()
	}
	if sec.HasKey("source") {
		c.Source = sec.Key("source").String()
	}
	if sec.HasKey("source_type") {
		st := sec.Key("source_type").String()
		if st != "iface" && st != "file" {
			return fmt.Errorf("%w: source_type must be 'iface' or 'file'", errs.ErrInvalidConfig)
		}
		c.SourceType = st
	}
	if sec.HasKey("sniffing_filter") {
		c.SniffingFilter = sec.Key("sniffing_filter").String()
	}
	c.Log.File = sec.Key("log_file").String()
	c.Log.FileLevel = sec.Key("log_file_level").String()
	c.Log.Socket = sec.Key("log_socket").String()
	c.Log.SocketLevel = sec.Key("log_socket_level").String()
	return nil
}

func spotFromSection(sec *ini.Section, base spot.Config) (spot.Config, error) {
	cfg := base
	var err error
	if sec.HasKey("q") {
		if cfg.Q, err = sec.Key("q").Float64(); err != nil {
			return cfg, fmt.Errorf("%w: bad q in [%s]", errs.ErrInvalidConfig, sec.Name())
		}
	}
	if sec.HasKey("n_init") {
		if cfg.NInit, err = sec.Key("n_init").Int(); err != nil {
			return cfg, fmt.Errorf("%w: bad n_init in [%s]", errs.ErrInvalidConfig, sec.Name())
		}
	}
	if sec.HasKey("level") {
		if cfg.Level, err = sec.Key("level").Float64(); err != nil {
			return cfg, fmt.Errorf("%w: bad level in [%s]", errs.ErrInvalidConfig, sec.Name())
		}
	}
	if sec.HasKey("up") {
		if cfg.Up, err = sec.Key("up").Bool(); err != nil {
			return cfg, fmt.Errorf("%w: bad up in [%s]", errs.ErrInvalidConfig, sec.Name())
		}
	}
	if sec.HasKey("down") {
		if cfg.Down, err = sec.Key("down").Bool(); err != nil {
			return cfg, fmt.Errorf("%w: bad down in [%s]", errs.ErrInvalidConfig, sec.Name())
		}
	}
	if sec.HasKey("bounded") {
		if cfg.Bounded, err = sec.Key("bounded").Bool(); err != nil {
			return cfg, fmt.Errorf("%w: bad bounded in [%s]", errs.ErrInvalidConfig, sec.Name())
		}
	}
	if sec.HasKey("max_excess") {
		if cfg.MaxExcess, err = sec.Key("max_excess").Int(); err != nil {
			return cfg, fmt.Errorf("%w: bad max_excess in [%s]", errs.ErrInvalidConfig, sec.Name())
		}
	}
	return cfg, nil
}

// Save serialises the configuration back to an INI file.
func (c *Config) Save(path string) error {
	f := ini.Empty()
	sec, err := f.NewSection("config")
	if err != nil {
		return err
	}
	sec.NewKey("interval", fmt.Sprintf("%g", c.Interval))
	if c.RecordFile != "" {
		sec.NewKey("record_file", c.RecordFile)
	}
	sec.NewKey("source", c.Source)
	sec.NewKey("source_type", c.SourceType)
	if c.SniffingFilter != "" {
		sec.NewKey("sniffing_filter", c.SniffingFilter)
	}
	if c.Log.File != "" {
		sec.NewKey("log_file", c.Log.File)
	}
	if c.Log.Socket != "" {
		sec.NewKey("log_socket", c.Log.Socket)
	}

	writeSpotSection(f.Section(ini.DefaultSection), c.DefaultSpot)

	flags, _ := f.NewSection("statistics")
	for _, sc := range c.Stats {
		if len(sc.Params) == 0 && sc.Spot == c.DefaultSpot {
			flags.NewKey(sc.Name, "true")
			continue
		}
		statSec := f.Section(sc.Name)
		writeSpotSection(statSec, sc.Spot)
		if len(sc.Params) > 0 {
			statSec.NewKey("param", strings.Join(sc.Params, ", "))
		}
	}
	return f.SaveTo(path)
}

func writeSpotSection(sec *ini.Section, cfg spot.Config) {
	sec.NewKey("q", fmt.Sprintf("%g", cfg.Q))
	sec.NewKey("n_init", fmt.Sprintf("%d", cfg.NInit))
	sec.NewKey("level", fmt.Sprintf("%g", cfg.Level))
	sec.NewKey("up", fmt.Sprintf("%t", cfg.Up))
	sec.NewKey("down", fmt.Sprintf("%t", cfg.Down))
	sec.NewKey("bounded", fmt.Sprintf("%t", cfg.Bounded))
	sec.NewKey("max_excess", fmt.Sprintf("%d", cfg.MaxExcess))
}
