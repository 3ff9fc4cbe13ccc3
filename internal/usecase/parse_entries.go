package usecase

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/user/logquarry/internal/adapter/metrics"
	"github.com/user/logquarry/internal/domain"
)

const (
	// timestampLen is the fixed width of the MM/DD/YYYY HH:MM:SS.mmm prefix.
	timestampLen = 23

	// maxLineBytes bounds a single physical line. Continuation-heavy logs
	// occasionally carry serialized payloads, so this is generous.
	maxLineBytes = 16 << 20
)

// StreamParser reads a local log file incrementally, reassembles multi-line
// entries, and hands them to the consumer in fixed-size batches. Only the
// current batch is buffered; the file is never held in memory whole.
// Files with a .zst suffix (rotated, compressed logs) are decompressed on
// the fly.
type StreamParser struct {
	bufferSize int
	batchSize  int
	metrics    *metrics.QuarryMetrics
	logger     *slog.Logger
}

// NewStreamParser creates a StreamParser. m may be nil.
func NewStreamParser(bufferSize, batchSize int, m *metrics.QuarryMetrics, logger *slog.Logger) *StreamParser {
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}
	if batchSize <= 0 {
		batchSize = 2000
	}
	return &StreamParser{
		bufferSize: bufferSize,
		batchSize:  batchSize,
		metrics:    m,
		logger:     logger.With("component", "stream_parser"),
	}
}

// Stream parses the file at path and calls emit once per full batch, plus
// once for the final partial batch. Batches arrive in file order. A non-nil
// error from emit aborts the stream and is returned as-is; read failures are
// wrapped as ErrParseIO and never retried here, the local file is presumed
// stable after a successful harvest.
func (p *StreamParser) Stream(ctx context.Context, path string, emit func([]domain.LogEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", domain.ErrParseIO, path, err)
	}
	defer f.Close()

	var scanner *bufio.Scanner
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("%w: zstd open %s: %v", domain.ErrParseIO, path, err)
		}
		defer zr.Close()
		scanner = bufio.NewScanner(zr)
	} else {
		scanner = bufio.NewScanner(f)
	}
	scanner.Buffer(make([]byte, 0, p.bufferSize), maxLineBytes)

	batch := make([]domain.LogEntry, 0, p.batchSize)
	var (
		current   strings.Builder
		startedAt time.Time
		open      bool
	)

	finalize := func() {
		batch = append(batch, domain.LogEntry{Text: current.String(), Timestamp: startedAt})
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		if hasTimestampPrefix(line) {
			if open {
				finalize()
				if len(batch) == p.batchSize {
					if err := p.deliver(ctx, emit, batch); err != nil {
						return err
					}
					batch = batch[:0]
				}
			}
			current.WriteString(line)
			startedAt = parseTimestamp(line)
			open = true
			continue
		}

		// Continuation line: attach to the in-progress entry. A file that
		// does not start with a timestamp still opens an entry.
		if open {
			current.WriteByte('\n')
		} else {
			startedAt = time.Time{}
			open = true
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrParseIO, path, err)
	}

	if open {
		finalize()
	}
	if len(batch) > 0 {
		return p.deliver(ctx, emit, batch)
	}
	return nil
}

// ParseAll collects the whole file into one slice. Convenience for callers
// that want the full sequence rather than incremental batches.
func (p *StreamParser) ParseAll(ctx context.Context, path string) ([]domain.LogEntry, error) {
	var entries []domain.LogEntry
	err := p.Stream(ctx, path, func(batch []domain.LogEntry) error {
		entries = append(entries, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *StreamParser) deliver(ctx context.Context, emit func([]domain.LogEntry) error, batch []domain.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.EntriesParsedTotal.Add(float64(len(batch)))
	}
	out := make([]domain.LogEntry, len(batch))
	copy(out, batch)
	return emit(out)
}

// hasTimestampPrefix tests for the fixed-width MM/DD/YYYY HH:MM:SS.mmm prefix
// followed by a space (or end of line). Every digit and separator position is
// checked positionally; a general date parser would be slower and would let a
// malformed date corrupt the entry boundary logic.
func hasTimestampPrefix(line string) bool {
	if len(line) < timestampLen {
		return false
	}
	if len(line) > timestampLen && line[timestampLen] != ' ' {
		return false
	}
	for i := 0; i < timestampLen; i++ {
		c := line[i]
		switch i {
		case 2, 5:
			if c != '/' {
				return false
			}
		case 10:
			if c != ' ' {
				return false
			}
		case 13, 16:
			if c != ':' {
				return false
			}
		case 19:
			if c != '.' {
				return false
			}
		default:
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// parseTimestamp converts a prefix already vetted by hasTimestampPrefix.
func parseTimestamp(line string) time.Time {
	num := func(s string) int {
		n := 0
		for i := 0; i < len(s); i++ {
			n = n*10 + int(s[i]-'0')
		}
		return n
	}
	month := num(line[0:2])
	day := num(line[3:5])
	year := num(line[6:10])
	hour := num(line[11:13])
	minute := num(line[14:16])
	sec := num(line[17:19])
	ms := num(line[20:23])
	return time.Date(year, time.Month(month), day, hour, minute, sec, ms*int(time.Millisecond), time.UTC)
}
