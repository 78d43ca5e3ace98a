package cli

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/asiffer/netspot/internal/spot"
)

func (s *Shell) doInspect(args []string) {
	full := false
	name := ""
	for _, a := range args {
		if a == "--full" {
			full = true
			continue
		}
		name = a
	}
	if name != "" {
		ls, err := s.mon.StatFromName(name)
		if err != nil {
			s.report(err)
			return
		}
		s.printSpotStatus(name, ls.Detector.Status(), ls.Detector.Config())
		return
	}
	s.printInspectTable(full)
}

// printInspectTable renders one row per loaded statistic. Undefined
// values (disabled side, uncalibrated detector) render as "-".
func (s *Shell) printInspectTable(full bool) {
	header := []string{"statistics", "n", "al_up", "z_up", "al_down", "z_down"}
	if full {
		header = []string{
			"statistics", "n",
			"al_up", "z_up", "t_up", "Nt_up", "ex_up",
			"al_down", "z_down", "t_down", "Nt_down", "ex_down",
		}
	}
	table := tablewriter.NewWriter(s.out)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(header)
	for _, ls := range s.mon.LoadedStats() {
		st := ls.Detector.Status()
		row := []string{ls.Name(), strconv.Itoa(st.N)}
		if full {
			row = append(row,
				cellInt(st.AlUp), cellFloat(st.ZUp), cellFloat(st.TUp), cellInt(st.NtUp), cellInt(st.ExUp),
				cellInt(st.AlDown), cellFloat(st.ZDown), cellFloat(st.TDown), cellInt(st.NtDown), cellInt(st.ExDown),
			)
		} else {
			row = append(row,
				cellInt(st.AlUp), cellFloat(st.ZUp),
				cellInt(st.AlDown), cellFloat(st.ZDown),
			)
		}
		table.Append(row)
	}
	table.Render()
}

// printSpotStatus renders the verbose status of a single detector.
func (s *Shell) printSpotStatus(name string, st spot.Status, cfg spot.Config) {
	fmt.Fprintf(s.out, "\n%s\n", name)
	fmt.Fprintf(s.out, "%8s  %8d  Total number of observations\n", "n", st.N)
	if cfg.Up {
		fmt.Fprintf(s.out, "%8s  %8s  Number of up alerts triggered\n", "al_up", cellInt(st.AlUp))
		fmt.Fprintf(s.out, "%8s  %8s  Value of the up decision threshold\n", "z_up", cellFloat(st.ZUp))
		fmt.Fprintf(s.out, "%8s  %8s  Value of the up transitional threshold\n", "t_up", cellFloat(st.TUp))
		fmt.Fprintf(s.out, "%8s  %8s  Total number of observed up peaks\n", "Nt_up", cellInt(st.NtUp))
		fmt.Fprintf(s.out, "%8s  %8s  Current number of stored up peaks\n", "ex_up", cellInt(st.ExUp))
	}
	if cfg.Down {
		fmt.Fprintf(s.out, "%8s  %8s  Number of down alerts triggered\n", "al_down", cellInt(st.AlDown))
		fmt.Fprintf(s.out, "%8s  %8s  Value of the down decision threshold\n", "z_down", cellFloat(st.ZDown))
		fmt.Fprintf(s.out, "%8s  %8s  Value of the down transitional threshold\n", "t_down", cellFloat(st.TDown))
		fmt.Fprintf(s.out, "%8s  %8s  Total number of observed down peaks\n", "Nt_down", cellInt(st.NtDown))
		fmt.Fprintf(s.out, "%8s  %8s  Current number of stored down peaks\n", "ex_down", cellInt(st.ExDown))
	}
	fmt.Fprintln(s.out)
}

func cellInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func cellFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
