package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/user/logquarry/internal/adapter/metrics"
	"github.com/user/logquarry/internal/domain"
)

// copyBufferSize is deliberately large: remote shares charge heavily per
// round trip, so sequential copies read in 1 MiB slabs.
const copyBufferSize = 1 << 20

// HarvesterOptions tunes one Harvester.
type HarvesterOptions struct {
	// StagingDir receives downloaded files.
	StagingDir string

	// ChunkThreshold is the remote size, in bytes, above which the transfer
	// switches to parallel chunked mode.
	ChunkThreshold int64

	// ChunkCount is the number of concurrent chunk downloads.
	ChunkCount int

	// Retries is the total number of harvest attempts (resolve + copy).
	Retries int

	// RetryBackoff scales the delay between attempts: attempt i is followed
	// by a 2*i*RetryBackoff pause. Production uses one second; tests inject
	// a millisecond.
	RetryBackoff time.Duration
}

func (o HarvesterOptions) withDefaults() HarvesterOptions {
	if o.ChunkThreshold <= 0 {
		o.ChunkThreshold = 32 << 20
	}
	if o.ChunkCount < 1 {
		o.ChunkCount = 4
	}
	if o.Retries < 1 {
		o.Retries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	return o
}

// Harvester downloads the most relevant remote log file for a host/item pair
// into local staging. Small files are copied in one sequential pass; large
// files are split into equal chunks downloaded concurrently, each written at
// its absolute offset of a pre-sized destination.
type Harvester struct {
	transport domain.Transport
	registry  domain.FileRegistry
	limiter   *rate.Limiter
	metrics   *metrics.QuarryMetrics
	logger    *slog.Logger
	opts      HarvesterOptions
}

// NewHarvester creates a Harvester. limiter and m may be nil.
func NewHarvester(transport domain.Transport, registry domain.FileRegistry, limiter *rate.Limiter, m *metrics.QuarryMetrics, logger *slog.Logger, opts HarvesterOptions) *Harvester {
	return &Harvester{
		transport: transport,
		registry:  registry,
		limiter:   limiter,
		metrics:   m,
		logger:    logger.With("component", "harvester"),
		opts:      opts.withDefaults(),
	}
}

// Harvest runs the full retrieve operation and always returns a terminal
// result; failures are never propagated as faults past this boundary.
func (h *Harvester) Harvest(ctx context.Context, req domain.HarvestRequest) domain.HarvestResult {
	if req.HostID == "" || req.LogItemID == "" {
		// Fail fast, before any network attempt.
		err := fmt.Errorf("%w: host id and log item id are required", domain.ErrInvalidArgument)
		return h.failure(req, err)
	}

	var lastErr error
	for attempt := 1; attempt <= h.opts.Retries; attempt++ {
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		localPath, size, err := h.attempt(ctx, req)
		if err == nil {
			h.registry.RegisterLocalFile(req.HostID, localPath)
			if h.metrics != nil {
				h.metrics.HarvestAttemptsTotal.WithLabelValues("success").Inc()
				h.metrics.HarvestBytesTotal.Add(float64(size))
			}
			h.logger.Info("harvest complete", "host", req.HostID, "item", req.LogItemID, "path", localPath, "bytes", size, "attempt", attempt)
			return domain.HarvestResult{HostID: req.HostID, Success: true, LocalPath: localPath}
		}

		lastErr = err
		if h.metrics != nil {
			h.metrics.HarvestAttemptsTotal.WithLabelValues(statusLabel(err)).Inc()
		}
		h.logger.Warn("harvest attempt failed", "host", req.HostID, "item", req.LogItemID, "attempt", attempt, "error", err)

		if attempt == h.opts.Retries {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * 2 * h.opts.RetryBackoff):
		case <-ctx.Done():
			return h.failure(req, ctx.Err())
		}
	}

	return h.failure(req, lastErr)
}

// attempt performs one resolve + copy pass. Any failure removes the partial
// local file; nothing is registered for cleanup between attempts.
func (h *Harvester) attempt(ctx context.Context, req domain.HarvestRequest) (string, int64, error) {
	remote, err := h.transport.Resolve(ctx, req.HostID, req.LogItemID)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(h.opts.StagingDir, 0755); err != nil {
		return "", 0, fmt.Errorf("%w: create staging dir: %v", domain.ErrTransferFailed, err)
	}
	dest := filepath.Join(h.opts.StagingDir, fmt.Sprintf("%s-%s%s", req.HostID, uuid.NewString(), filepath.Ext(remote.Path)))

	if remote.Size >= h.opts.ChunkThreshold && remote.Size > 0 {
		err = h.copyChunked(ctx, remote, dest)
		if err == nil && h.metrics != nil {
			h.metrics.ChunkedHarvestsTotal.Inc()
		}
	} else {
		err = h.copySequential(ctx, remote, dest)
	}
	if err != nil {
		os.Remove(dest)
		return "", 0, err
	}

	// The copy paths already fail on short writes; the stat is the final
	// guard that the destination matches the remote size exactly.
	info, err := os.Stat(dest)
	if err != nil || info.Size() != remote.Size {
		os.Remove(dest)
		return "", 0, fmt.Errorf("%w: size mismatch for %s", domain.ErrTransferFailed, remote.Path)
	}

	return dest, remote.Size, nil
}

func (h *Harvester) copySequential(ctx context.Context, remote domain.RemoteFile, dest string) error {
	src, err := h.transport.Open(ctx, remote.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrTransferFailed, dest, err)
	}

	_, err = io.CopyBuffer(dst, src, make([]byte, copyBufferSize))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: copy %s: %v", domain.ErrTransferFailed, remote.Path, err)
	}
	return nil
}

// copyChunked splits the byte range into equal contiguous chunks and
// downloads them concurrently, each writing directly into its offset of the
// pre-sized destination. Any chunk failure fails the whole attempt; no
// partial file survives.
func (h *Harvester) copyChunked(ctx context.Context, remote domain.RemoteFile, dest string) error {
	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrTransferFailed, dest, err)
	}
	defer dst.Close()

	if err := dst.Truncate(remote.Size); err != nil {
		return fmt.Errorf("%w: presize %s: %v", domain.ErrTransferFailed, dest, err)
	}

	chunks := h.opts.ChunkCount
	chunkSize := remote.Size / int64(chunks)

	var wg sync.WaitGroup
	errChan := make(chan error, chunks)

	for i := 0; i < chunks; i++ {
		offset := int64(i) * chunkSize
		length := chunkSize
		if i == chunks-1 {
			length = remote.Size - offset // last chunk takes the remainder
		}

		wg.Add(1)
		go func(offset, length int64) {
			defer wg.Done()

			src, err := h.transport.OpenRange(ctx, remote.Path, offset, length)
			if err != nil {
				errChan <- fmt.Errorf("chunk at %d: %w", offset, err)
				return
			}
			defer src.Close()

			w := io.NewOffsetWriter(dst, offset)
			n, err := io.CopyBuffer(w, src, make([]byte, copyBufferSize))
			if err != nil {
				errChan <- fmt.Errorf("chunk at %d: %w", offset, err)
				return
			}
			if n != length {
				errChan <- fmt.Errorf("chunk at %d: short read %d of %d bytes", offset, n, length)
			}
		}(offset, length)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	return dst.Sync()
}

func (h *Harvester) failure(req domain.HarvestRequest, err error) domain.HarvestResult {
	return domain.HarvestResult{
		HostID:       req.HostID,
		Success:      false,
		ErrorMessage: h.failureMessage(err),
	}
}

// failureMessage keeps the user-visible taxonomy: not reachable, no files,
// and exhausted transfer retries stay distinguishable.
func (h *Harvester) failureMessage(err error) string {
	switch {
	case err == nil:
		return "harvest failed"
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnreachable),
		errors.Is(err, domain.ErrNoFilesFound):
		return err.Error()
	default:
		return fmt.Sprintf("exhausted %d attempts after transfer errors: %v", h.opts.Retries, err)
	}
}

func statusLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, domain.ErrNoFilesFound):
		return "no_files"
	default:
		return "transfer_error"
	}
}
