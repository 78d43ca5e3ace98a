package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/asiffer/netspot/internal/config"
	"github.com/asiffer/netspot/internal/logging"
	"github.com/asiffer/netspot/pkg/cli"
	"github.com/asiffer/netspot/pkg/monitor"
	"github.com/asiffer/netspot/pkg/version"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "c", "", "Path to a configuration file")
	flag.StringVar(&configPath, "config", "", "Path to a configuration file")
	debug := flag.Bool("debug", false, "Enable debug logs")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Print(version.FormatInfo())
		return
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger, err := logging.Open(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Close()
	if *debug {
		logger.SetLevel(log.DebugLevel)
	}

	mon, err := monitor.FromConfig(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := cli.New(mon, logger).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
