package transport

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/logquarry/internal/domain"
)

// ShareTransport reads log files from administrative file shares exposed
// under a local mount root. The remote directory layout is a template with
// {host} and {item} placeholders, so the UNC convention
// \\{host}\D$\Proj\LogFiles\{item} maps straight onto a mounted share and can
// be swapped for any other directory scheme without code changes.
type ShareTransport struct {
	root     string
	template string
	logger   *slog.Logger
}

// NewShareTransport creates a ShareTransport rooted at the given mount point.
func NewShareTransport(root, template string, logger *slog.Logger) *ShareTransport {
	return &ShareTransport{
		root:     root,
		template: template,
		logger:   logger.With("component", "share_transport"),
	}
}

// Resolve picks the candidate file with the newest modification time, ties
// broken by name descending.
func (t *ShareTransport) Resolve(ctx context.Context, hostID, logItemID string) (domain.RemoteFile, error) {
	dir := t.dirFor(hostID, logItemID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return domain.RemoteFile{}, fmt.Errorf("%w: %s: %v", domain.ErrUnreachable, dir, err)
	}

	var (
		best     domain.RemoteFile
		bestName string
		found    bool
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			t.logger.Warn("skipping unreadable directory entry", "dir", dir, "name", entry.Name(), "error", err)
			continue
		}
		if !found || newer(info, best, entry.Name(), bestName) {
			best = domain.RemoteFile{
				Path:    filepath.Join(dir, entry.Name()),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			}
			bestName = entry.Name()
			found = true
		}
	}

	if !found {
		return domain.RemoteFile{}, fmt.Errorf("%w in %s", domain.ErrNoFilesFound, dir)
	}
	return best, nil
}

// Open returns a sequential reader over the whole remote file.
func (t *ShareTransport) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open remote file %s: %w", path, err)
	}
	return f, nil
}

// OpenRange returns a reader over length bytes of the file starting at offset.
func (t *ShareTransport) OpenRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open remote file %s: %w", path, err)
	}
	return &sectionReadCloser{
		SectionReader: io.NewSectionReader(f, offset, length),
		file:          f,
	}, nil
}

func (t *ShareTransport) dirFor(hostID, logItemID string) string {
	p := strings.ReplaceAll(t.template, "{host}", hostID)
	p = strings.ReplaceAll(p, "{item}", logItemID)
	// Tolerate UNC-style templates with backslashes and leading slashes.
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimLeft(p, "/")
	return filepath.Join(t.root, filepath.FromSlash(p))
}

func newer(info fs.FileInfo, best domain.RemoteFile, name, bestName string) bool {
	if info.ModTime().After(best.ModTime) {
		return true
	}
	if info.ModTime().Equal(best.ModTime) {
		return name > bestName
	}
	return false
}

type sectionReadCloser struct {
	*io.SectionReader
	file *os.File
}

func (s *sectionReadCloser) Close() error {
	return s.file.Close()
}
