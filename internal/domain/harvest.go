package domain

import "time"

// HarvestRequest identifies one remote log file to retrieve. Both fields are
// required; validation happens before any network I/O.
type HarvestRequest struct {
	HostID    string `json:"host_id"`
	LogItemID string `json:"log_item_id"`
}

// HarvestResult is the terminal outcome of one harvest operation. Exactly one
// of (Success and LocalPath) or (ErrorMessage) is populated.
type HarvestResult struct {
	HostID       string `json:"host_id"`
	Success      bool   `json:"success"`
	LocalPath    string `json:"local_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RemoteFile describes a candidate log file on a remote share.
type RemoteFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}
