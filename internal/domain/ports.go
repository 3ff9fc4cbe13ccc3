package domain

import (
	"context"
	"io"
)

// Transport resolves and reads remote log files. Implementations abstract the
// addressing scheme (administrative file share, SSH, object storage) behind a
// path produced by Resolve.
type Transport interface {
	// Resolve locates the most relevant log file for the host/item pair:
	// the file with the newest modification time in the item's directory,
	// ties broken by name descending. Returns ErrUnreachable when the
	// directory cannot be accessed and ErrNoFilesFound when it is empty.
	Resolve(ctx context.Context, hostID, logItemID string) (RemoteFile, error)

	// Open returns a sequential reader over the whole remote file.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenRange returns a reader over length bytes starting at offset, used
	// by chunked parallel transfers.
	OpenRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error)
}

// FileRegistry tracks live local files so an external cleanup collaborator
// can guarantee removal on session close or process exit. The core never
// deletes a file it has not announced through Release. Implementations must
// be safe for concurrent use: harvesters register while sessions release.
type FileRegistry interface {
	// RegisterLocalFile records path as live under the given owner.
	RegisterLocalFile(owner, path string)

	// ReleaseLocalFile removes path from the registry and reports whether it
	// was registered. Releasing an unknown path is a no-op returning false.
	ReleaseLocalFile(owner, path string) bool

	// OwnedFiles returns the live paths registered under owner.
	OwnedFiles(owner string) []string
}

// EntrySink receives incremental notifications as a session loads. Batches
// arrive in file order; the consumer schedules their application at whatever
// priority suits it (the core has no UI-priority concept).
type EntrySink interface {
	// EntryBatch reports that a session appended a batch of count entries.
	EntryBatch(sourceLabel string, count int)

	// SessionStatus reports a session state transition with display text.
	SessionStatus(sourceLabel string, state SessionState, detail string)
}
