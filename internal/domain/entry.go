package domain

import "time"

// LogEntry is one logical log record. Continuation lines (stack traces,
// wrapped messages) are joined into Text with '\n'; only the first line
// carries the recognized timestamp prefix. An entry's identity is its 0-based
// position within the owning session's entry slice, which is not stable
// across a refresh.
type LogEntry struct {
	// Text is the full entry, continuation lines included.
	Text string `json:"text"`

	// Timestamp is parsed from the leading MM/DD/YYYY HH:MM:SS.mmm prefix.
	// Zero when the entry did not start with a recognized prefix.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// FirstLine returns the entry's first physical line.
func (e LogEntry) FirstLine() string {
	for i := 0; i < len(e.Text); i++ {
		if e.Text[i] == '\n' {
			return e.Text[:i]
		}
	}
	return e.Text
}

// SessionState tracks a log session through its lifecycle.
type SessionState int32

const (
	SessionEmpty SessionState = iota
	SessionLoading
	SessionReady
	SessionFailed
	SessionRefreshing
)

func (s SessionState) String() string {
	switch s {
	case SessionEmpty:
		return "empty"
	case SessionLoading:
		return "loading"
	case SessionReady:
		return "ready"
	case SessionFailed:
		return "failed"
	case SessionRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}
