package cli

import (
	"github.com/fatih/color"
)

var (
	errorColor  = color.New(color.FgHiRed)
	okColor     = color.New(color.FgHiGreen)
	warnColor   = color.New(color.FgYellow)
	loadedColor = color.New(color.FgHiMagenta)
)

func (s *Shell) printError(msg string) {
	errorColor.Fprintln(s.out, msg)
}

func (s *Shell) printOk(msg string) {
	okColor.Fprintln(s.out, msg)
}

func (s *Shell) printWarn(msg string) {
	warnColor.Fprintln(s.out, msg)
}

func (s *Shell) printLoaded(msg string) {
	loadedColor.Fprintln(s.out, msg)
}

func (s *Shell) warnText(msg string) string {
	return warnColor.Sprint(msg)
}

func (s *Shell) okno(ok bool) string {
	if ok {
		return "[" + okColor.Sprint("OK") + "]"
	}
	return "[" + errorColor.Sprint("NO") + "]"
}
