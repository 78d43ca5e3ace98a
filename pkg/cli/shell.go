// Package cli implements the interactive netspot shell.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/asiffer/netspot/internal/logging"
	"github.com/asiffer/netspot/pkg/monitor"
)

const flag = `
                  _  _ ___ _____ ___ ___  ___ _____
                 | \| | __|_   _/ __| _ \/ _ \_   _|
                 | .' | _|  | | \__ \  _/ (_) || |
                 |_|\_|___| |_| |___/_|  \___/ |_|
`

var (
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

var commands = []string{"monitor", "stat", "inspect", "config", "live", "log", "help", "exit"}

// Shell drives the interactive session around a monitor.
type Shell struct {
	mon    *monitor.Monitor
	logger *logging.Logger
	out    io.Writer
}

// New builds a shell around a monitor.
func New(mon *monitor.Monitor, logger *logging.Logger) *Shell {
	return &Shell{mon: mon, logger: logger, out: os.Stdout}
}

// Run starts the interactive loop. It returns on exit or end-of-input.
func (s *Shell) Run() error {
	fmt.Fprintln(s.out, bannerStyle.Render(flag))

	input := liner.NewLiner()
	defer input.Close()
	input.SetCtrlCAborts(true)
	input.SetTabCompletionStyle(liner.TabPrints)
	input.SetCompleter(s.complete)

	prompt := promptStyle.Render("(netspot) # ")
	for {
		line, err := input.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(s.out)
			if s.confirmExit(input) {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		input.AppendHistory(line)
		if s.execute(input, line) {
			return nil
		}
	}
}

// execute dispatches one command line. It returns true when the shell
// must exit.
func (s *Shell) execute(input *liner.State, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "monitor":
		s.doMonitor(args)
	case "stat":
		s.doStat(args)
	case "inspect":
		s.doInspect(args)
	case "config":
		s.doConfig(args)
	case "live":
		s.doLive()
	case "log":
		s.doLog()
	case "help":
		s.doHelp()
	case "exit":
		return s.confirmExit(input)
	default:
		s.printError(fmt.Sprintf("unknown command %q (try 'help')", cmd))
	}
	return false
}

func (s *Shell) confirmExit(input *liner.State) bool {
	if s.mon.IsLive() {
		// leaving live mode is enough, keep the shell
		s.mon.LiveOff()
		return false
	}
	answer, err := input.Prompt(s.warnText("Leave netspot ? ([y]/n) "))
	if err == io.EOF {
		fmt.Fprintln(s.out)
		return true
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer == "" || answer == "y" {
		if s.mon.IsRunning() {
			s.mon.Stop()
		}
		return true
	}
	return false
}

// complete provides the tab completion of commands and their arguments.
func (s *Shell) complete(line string) []string {
	fields := strings.Fields(line)
	trailing := strings.HasSuffix(line, " ")

	if len(fields) == 0 {
		return commands
	}
	if len(fields) == 1 && !trailing {
		return prefixed(commands, fields[0], "")
	}

	prefix := ""
	if !trailing {
		prefix = fields[len(fields)-1]
	}
	base := strings.Join(fields[:len(fields)-1], " ") + " "
	if trailing {
		base = strings.Join(fields, " ") + " "
	}

	var choices []string
	switch fields[0] {
	case "monitor":
		choices = []string{"start", "stop", "status", "reset"}
	case "config":
		choices = monitor.ConfigKeys()
	case "stat":
		if len(fields) == 1 || (len(fields) == 2 && !trailing) {
			choices = []string{"load", "unload"}
		} else if fields[1] == "load" {
			choices = s.mon.AvailableStats()
		} else if fields[1] == "unload" {
			choices = s.mon.LoadedStatNames()
		}
	case "inspect":
		choices = s.mon.LoadedStatNames()
	default:
		return nil
	}
	return prefixed(choices, prefix, base)
}

func prefixed(choices []string, prefix, base string) []string {
	var out []string
	for _, c := range choices {
		if strings.HasPrefix(c, prefix) {
			out = append(out, base+c)
		}
	}
	return out
}
