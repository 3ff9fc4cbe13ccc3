package domain

import "errors"

// Error taxonomy for the harvesting and search core. Callers classify
// failures with errors.Is; human-readable detail travels in the wrap.
var (
	// ErrInvalidArgument marks a malformed request, rejected before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnreachable marks a share or host that could not be accessed.
	ErrUnreachable = errors.New("host not reachable")

	// ErrNoFilesFound marks a reachable log directory with zero files.
	ErrNoFilesFound = errors.New("no log files found")

	// ErrTransferFailed marks a chunk or stream copy error. Retried by the
	// harvester up to its attempt limit.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrParseIO marks a local read failure after a successful harvest.
	// Surfaced, not retried: the local file is presumed stable.
	ErrParseIO = errors.New("log read failed")

	// ErrPatternInvalid marks a regex that failed to compile. Scoped to one
	// session scan, non-fatal to the overall search.
	ErrPatternInvalid = errors.New("invalid search pattern")

	// ErrSearchSuperseded marks a search cancelled because a newer one
	// started. Its results are never delivered.
	ErrSearchSuperseded = errors.New("search superseded")
)
