// Package recorder serialises the windowed statistic values to an
// append-only CSV file and optionally mirrors them to the terminal.
package recorder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/asiffer/netspot/internal/errs"
	"github.com/asiffer/netspot/internal/logging"
)

// DefaultChunkSize is the number of rows accumulated in memory before a
// flush to the record file.
const DefaultChunkSize = 15

const (
	timeLayout = "15:04:05.000000"
	timeWidth  = 20
	minWidth   = 7
)

type row struct {
	t      time.Time
	values []float64
}

// Recorder buffers the rows produced by the window loop. It is driven by
// the window task; the live toggle may come from the shell, hence the
// small lock.
type Recorder struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	names       []string
	fmts        []string
	widths      []int
	rows        []row
	chunk       int
	live        bool
	saved       int
	wroteHeader bool
	out         io.Writer
	logger      *logging.Logger
}

// New returns a recorder with the default chunk size and no record file.
func New(logger *logging.Logger) *Recorder {
	return &Recorder{chunk: DefaultChunkSize, out: os.Stdout, logger: logger}
}

// SetChunkSize changes the number of rows accumulated before a flush.
func (r *Recorder) SetChunkSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: the chunk size must be a positive integer", errs.ErrInvalidConfig)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunk = n
	return nil
}

// SetOutput redirects the live printing, mainly for tests.
func (r *Recorder) SetOutput(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = w
}

// InitFormatters rebuilds the header and the per-column print widths from
// the loaded statistics.
func (r *Recorder) InitFormatters(names, fmts []string) error {
	if len(names) != len(fmts) {
		return fmt.Errorf("%w: %d names for %d formats", errs.ErrInvalidConfig, len(names), len(fmts))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append([]string(nil), names...)
	r.fmts = append([]string(nil), fmts...)
	r.widths = make([]int, len(names))
	for i, name := range names {
		r.widths[i] = len(name)
		if r.widths[i] < minWidth {
			r.widths[i] = minWidth
		}
	}
	return nil
}

// SetRecordFile closes any previous record file and opens a new one in
// write-truncate mode.
func (r *Recorder) SetRecordFile(path string) error {
	if dir := filepath.Dir(path); !isDir(dir) {
		return fmt.Errorf("%w: %s is not a directory", errs.ErrInvalidPath, dir)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		r.file.Close()
		r.logger.Info("Record file closed", "file", r.path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidPath, err)
	}
	r.file = f
	r.path = path
	r.wroteHeader = false
	r.logger.Info("Record file opened", "file", path)
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// RecordFile returns the current record file path, empty when unset.
func (r *Recorder) RecordFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// SetLive toggles the live printing of every saved row.
func (r *Recorder) SetLive(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = on
}

// Live reports whether live printing is enabled.
func (r *Recorder) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Len returns the number of buffered rows.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Save appends a row and flushes the buffer when it reaches the chunk
// size. In live mode the row is also printed, with the header repeated
// every chunk.
func (r *Recorder) Save(t time.Time, values []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row{t: t, values: append([]float64(nil), values...)})
	if r.live {
		if r.saved%r.chunk == 0 {
			fmt.Fprintln(r.out, r.headerLine())
		}
		fmt.Fprintln(r.out, r.rowLine(r.rows[len(r.rows)-1]))
	}
	if len(r.rows) >= r.chunk {
		r.flushLocked()
	}
	r.saved++
}

// Reset drops the buffered rows without flushing them.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = r.rows[:0]
	r.saved = 0
}

// Close releases the record file. Rows still buffered are lost, which is
// the accepted trade-off for partial windows.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// flushLocked writes the buffered rows to the record file. On a write
// failure the rows are kept for the next attempt.
func (r *Recorder) flushLocked() {
	if r.file == nil {
		r.rows = r.rows[:0]
		return
	}
	if !r.wroteHeader {
		header := "Time," + strings.Join(r.names, ",") + "\n"
		if _, err := r.file.WriteString(header); err != nil {
			r.logger.Warn("Record flush failed", "file", r.path, "error", err)
			return
		}
		r.wroteHeader = true
	}
	for _, rec := range r.rows {
		fields := make([]string, 0, len(rec.values)+1)
		fields = append(fields, rec.t.Format(timeLayout))
		for _, v := range rec.values {
			fields = append(fields, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if _, err := r.file.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			r.logger.Warn("Record flush failed", "file", r.path, "error", err)
			return
		}
	}
	r.rows = r.rows[:0]
}

func (r *Recorder) headerLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%*s", timeWidth, "Time")
	for i, name := range r.names {
		fmt.Fprintf(&b, " %*s", r.widths[i], name)
	}
	return b.String()
}

func (r *Recorder) rowLine(rec row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%*s", timeWidth, rec.t.Format(timeLayout))
	for i, v := range rec.values {
		b.WriteString(" ")
		b.WriteString(formatValue(r.fmts[i], r.widths[i], v))
	}
	return b.String()
}

// formatValue renders a value with the statistic's printf verb, right
// aligned on the column width.
func formatValue(verb string, width int, v float64) string {
	var s string
	if strings.ContainsRune(verb, 'd') {
		s = fmt.Sprintf(verb, int64(v))
	} else {
		s = fmt.Sprintf(verb, v)
	}
	return fmt.Sprintf("%*s", width, s)
}
