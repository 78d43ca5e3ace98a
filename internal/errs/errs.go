// Package errs defines the error kinds surfaced at the netspot API
// boundary. Callers match them with errors.Is; the concrete message is
// carried by wrapping.
package errs

import "errors"

var (
	// ErrInvalidConfig covers malformed addresses, non-numeric values,
	// unknown statistic names and missing parameters.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidSource covers missing interfaces and unreadable capture files.
	ErrInvalidSource = errors.New("invalid source")

	// ErrInvalidPath covers record or log paths whose parent is not a directory.
	ErrInvalidPath = errors.New("invalid path")

	// ErrAlreadyRunning is returned by state-changing operations attempted
	// while the monitor or the sniffer is active.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning is returned by operations that need an active monitor.
	ErrNotRunning = errors.New("not running")

	// ErrPermissionDenied means the OS refused to open a raw capture handle.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDetector is propagated from a failed detector step or tail fit.
	ErrDetector = errors.New("detector error")
)
