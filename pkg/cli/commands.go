package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/asiffer/netspot/internal/errs"
	"github.com/asiffer/netspot/internal/stats"
	"github.com/asiffer/netspot/pkg/monitor"
)

func (s *Shell) doMonitor(args []string) {
	if len(args) == 0 {
		s.printError("usage: monitor {start [-l|--live] | stop | status | reset}")
		return
	}
	switch args[0] {
	case "start":
		live := false
		for _, a := range args[1:] {
			if a == "-l" || a == "--live" {
				live = true
			}
		}
		if err := s.mon.Start(live); err != nil {
			if errors.Is(err, errs.ErrPermissionDenied) {
				s.printError("netspot does not have the rights to listen on interfaces")
				return
			}
			s.report(err)
			return
		}
		s.printOk("The monitoring is started")
	case "stop":
		if err := s.mon.Stop(); err != nil {
			s.report(err)
			return
		}
		s.printOk("The monitoring is stopped")
	case "status":
		s.printStatus()
	case "reset":
		if err := s.mon.ResetAllStats(); err != nil {
			s.report(err)
			return
		}
		s.printOk("All the detectors have been reset")
	default:
		s.printError(fmt.Sprintf("unknown monitor command %q", args[0]))
	}
}

func (s *Shell) printStatus() {
	fmt.Fprintf(s.out, "%10s\t%s\n", "Sniffing", s.okno(s.mon.IsSniffing()))
	fmt.Fprintf(s.out, "%10s\t%s\n", "Monitoring", s.okno(s.mon.IsRunning()))
	fmt.Fprintln(s.out, "\nLoaded statistics")
	for _, ls := range s.mon.LoadedStats() {
		fmt.Fprintf(s.out, "%30s\t%s\n", ls.Name(), ls.Description())
	}
}

func (s *Shell) doStat(args []string) {
	if len(args) == 0 {
		s.listStats()
		return
	}
	switch args[0] {
	case "load":
		names, params := splitParams(args[1:])
		if len(names) == 0 {
			s.printError("usage: stat load <NAME...> [-p ARG...]")
			return
		}
		for _, name := range names {
			if err := s.mon.LoadStat(name, params...); err != nil {
				s.report(err)
				continue
			}
			s.printOk(fmt.Sprintf("The statistic %s has been loaded", name))
		}
	case "unload":
		if len(args) == 1 {
			s.printError("usage: stat unload <NAME...|*>")
			return
		}
		if args[1] == "*" {
			if err := s.mon.UnloadAll(); err != nil {
				s.report(err)
				return
			}
			s.printOk("All the statistics have been unloaded")
			return
		}
		for _, name := range args[1:] {
			if err := s.mon.UnloadStat(name); err != nil {
				s.report(err)
				continue
			}
			s.printOk(fmt.Sprintf("The statistic %s has been unloaded", name))
		}
	default:
		s.printError(fmt.Sprintf("unknown stat command %q", args[0]))
	}
}

// splitParams separates the statistic names from the -p parameters.
func splitParams(args []string) (names, params []string) {
	inParams := false
	for _, a := range args {
		if a == "-p" {
			inParams = true
			continue
		}
		if inParams {
			params = append(params, a)
		} else {
			names = append(names, a)
		}
	}
	return names, params
}

// listStats prints the available statistics, emphasising the loaded ones
// and nesting the loaded parametric instances under their class name.
func (s *Shell) listStats() {
	loaded := s.mon.LoadedStats()
	loadedClasses := make(map[string][]string)
	for _, ls := range loaded {
		if p, ok := ls.Statistic.(*stats.NbIPToIPPkts); ok {
			class := "NB_IP_TO_IP_PKTS"
			loadedClasses[class] = append(loadedClasses[class], p.Name())
			continue
		}
		loadedClasses[ls.Name()] = nil
	}
	for _, name := range s.mon.AvailableStats() {
		desc, _ := stats.Describe(name)
		line := fmt.Sprintf("%20s\t%s", name, desc)
		instances, isLoaded := loadedClasses[name]
		if !isLoaded {
			fmt.Fprintln(s.out, line)
			continue
		}
		s.printLoaded(line)
		for _, inst := range instances {
			s.printLoaded(fmt.Sprintf("%30s %s", "|", inst))
		}
	}
}

func (s *Shell) doConfig(args []string) {
	switch len(args) {
	case 0:
		info := s.mon.Info()
		for _, key := range monitor.ConfigKeys() {
			fmt.Fprintf(s.out, "%20s\t%s\n", key, info[key])
		}
	case 1:
		info := s.mon.Info()
		value, ok := info[args[0]]
		if !ok {
			s.printError("unknown parameter")
			return
		}
		fmt.Fprintf(s.out, "%20s\t%s\n", args[0], value)
	case 2:
		if args[0] == "save" {
			if err := s.mon.Snapshot().Save(args[1]); err != nil {
				s.report(err)
				return
			}
			s.printOk(fmt.Sprintf("Configuration saved to %s", args[1]))
			return
		}
		if err := s.setParameter(args[0], args[1]); err != nil {
			s.report(err)
			return
		}
		s.printOk(fmt.Sprintf("Parameter %s changed to %s", args[0], args[1]))
	default:
		s.printError("usage: config [KEY [VALUE]]")
	}
}

func (s *Shell) setParameter(key, value string) error {
	switch key {
	case "interval":
		return s.mon.SetIntervalString(value)
	case "record_file":
		return s.mon.SetRecordFile(value)
	case "source":
		return s.mon.SetSource(value)
	case "source_type":
		return s.mon.SetSourceType(value)
	case "sniffing_filter":
		return s.mon.SetFilter(value)
	}
	return fmt.Errorf("%w: unknown parameter %q", errs.ErrInvalidConfig, key)
}

func (s *Shell) doLive() {
	if err := s.mon.LiveOn(); err != nil {
		s.printError("NetSpot is not monitoring")
		return
	}
	s.printWarn("Live mode is on (exit or ^D turns it off)")
}

// doLog prints the tail of the log file.
func (s *Shell) doLog() {
	path := s.logger.File()
	if path == "" {
		s.printWarn("No log file is configured (set log_file in the config file)")
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		s.report(err)
		return
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	const tail = 40
	if len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	for _, line := range lines {
		fmt.Fprintln(s.out, line)
	}
}

func (s *Shell) doHelp() {
	fmt.Fprint(s.out, `
  monitor {start [-l|--live] | stop | status | reset}
      control the monitoring lifecycle
  stat
      list the available statistics
  stat load <NAME...> [-p ARG...]
      load statistics (use -p to give the parameters of parametric ones)
  stat unload <NAME...|*>
      unload statistics (* unloads everything)
  inspect [NAME] [--full]
      show the detector status of the loaded statistics
  config [KEY [VALUE]]
      list, get or set a configuration parameter
  config save <PATH>
      save the current configuration to a file
  live
      print each computed window
  log
      print the last log entries
  exit
      leave netspot

`)
}

// report prints an error with the colour of its kind: warnings for state
// conflicts, red for everything else.
func (s *Shell) report(err error) {
	switch {
	case errors.Is(err, errs.ErrAlreadyRunning), errors.Is(err, errs.ErrNotRunning):
		s.printWarn(err.Error())
	default:
		s.printError(err.Error())
	}
}
