package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/user/logquarry/internal/adapter/metrics"
	"github.com/user/logquarry/internal/domain"
)

// SearchOptions tunes one SearchCoordinator.
type SearchOptions struct {
	// ResultCap bounds matches per session; reaching it stops that session's
	// scan early and flags the outcome as truncated.
	ResultCap int

	// CheckEvery is the entry interval between cancellation checks.
	CheckEvery int

	// PreviewWidth caps the preview text, in runes.
	PreviewWidth int

	// Parallelism bounds concurrent session scans. Defaults to NumCPU.
	Parallelism int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.ResultCap <= 0 {
		o.ResultCap = 5000
	}
	if o.CheckEvery <= 0 {
		o.CheckEvery = 1000
	}
	if o.PreviewWidth <= 0 {
		o.PreviewWidth = 200
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.NumCPU()
	}
	return o
}

// SearchCoordinator runs one logical search at a time across all open
// sessions. Starting a new search cancels the running one; a superseded
// search never delivers its results. Each session is scanned independently
// and in parallel against a borrowed entry snapshot, so a pathological query
// stays bounded by the per-session cap and the periodic cancellation check.
type SearchCoordinator struct {
	manager *SessionManager
	metrics *metrics.QuarryMetrics
	logger  *slog.Logger
	opts    SearchOptions

	mu      sync.Mutex
	cancel  context.CancelFunc
	current uint64

	// searchStarted is a test seam, invoked after a search has claimed its
	// generation and before any scanning begins.
	searchStarted func()
}

// NewSearchCoordinator creates a SearchCoordinator. m may be nil.
func NewSearchCoordinator(manager *SessionManager, m *metrics.QuarryMetrics, logger *slog.Logger, opts SearchOptions) *SearchCoordinator {
	return &SearchCoordinator{
		manager: manager,
		metrics: m,
		logger:  logger.With("component", "search_coordinator"),
		opts:    opts.withDefaults(),
	}
}

// Search scans every open session for the query and returns grouped, ranked
// results. A blank pattern short-circuits to an empty outcome (clearing any
// prior results) instead of matching everything. Returns
// domain.ErrSearchSuperseded when a newer search started before this one
// finished.
func (c *SearchCoordinator) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchOutcome, error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if query.Blank() {
		c.cancel = nil
		c.current++
		c.mu.Unlock()
		return &domain.SearchOutcome{}, nil
	}
	searchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.current++
	generation := c.current
	c.mu.Unlock()
	defer cancel()

	if c.searchStarted != nil {
		c.searchStarted()
	}

	start := time.Now()
	sessions := c.manager.Sessions()

	scans := make([]sessionScan, len(sessions))
	sem := make(chan struct{}, c.opts.Parallelism)
	var wg sync.WaitGroup

	for i, session := range sessions {
		wg.Add(1)
		go func(i int, session *LogSession) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			scans[i] = c.scanSession(searchCtx, session, query)
		}(i, session)
	}
	wg.Wait()

	c.mu.Lock()
	superseded := generation != c.current
	c.mu.Unlock()
	if superseded {
		return nil, domain.ErrSearchSuperseded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Sessions arrive sorted by source label, so groups inherit that order;
	// per-group results are already in ordinal order from the scan.
	outcome := &domain.SearchOutcome{}
	for _, scan := range scans {
		if len(scan.results) == 0 {
			continue
		}
		outcome.Groups = append(outcome.Groups, domain.SearchResultGroup{
			SourceLabel: scan.label,
			Results:     scan.results,
		})
		if scan.truncated {
			outcome.Truncated = true
		}
	}

	if c.metrics != nil {
		c.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		if outcome.Truncated {
			c.metrics.SearchesTruncated.Inc()
		}
	}
	c.logger.Debug("search complete", "pattern", query.Pattern, "groups", len(outcome.Groups), "matches", outcome.TotalMatches(), "truncated", outcome.Truncated, "duration_ms", time.Since(start).Milliseconds())
	return outcome, nil
}

type sessionScan struct {
	label     string
	results   []domain.SearchResult
	truncated bool
}

func (c *SearchCoordinator) scanSession(ctx context.Context, session *LogSession, query domain.SearchQuery) sessionScan {
	scan := sessionScan{label: session.SourceLabel}

	match, err := c.matcher(query)
	if err != nil {
		// A bad pattern silences this session only; other scans proceed.
		c.logger.Warn("search pattern rejected", "source", session.SourceLabel, "error", err)
		return scan
	}

	entries := session.Entries()
	for i, entry := range entries {
		// Cooperative cancellation: checked per batch of entries, not per
		// entry, so the check cost stays negligible while cancellation
		// latency stays within one batch interval.
		if i%c.opts.CheckEvery == 0 && ctx.Err() != nil {
			return sessionScan{label: session.SourceLabel}
		}
		if !match(entry.Text) {
			continue
		}
		scan.results = append(scan.results, domain.SearchResult{
			SourceLabel: session.SourceLabel,
			Ordinal:     i,
			LineNumber:  i + 1,
			EntryText:   entry.Text,
			PreviewText: c.preview(entry),
		})
		if len(scan.results) >= c.opts.ResultCap {
			scan.truncated = true
			break
		}
	}
	return scan
}

// matcher builds the per-scan match predicate. Regex patterns compile once
// per session scan and are reused across every entry of that session.
func (c *SearchCoordinator) matcher(query domain.SearchQuery) (func(string) bool, error) {
	if query.IsRegex {
		pattern := query.Pattern
		if !query.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPatternInvalid, err)
		}
		return re.MatchString, nil
	}

	if query.CaseSensitive {
		needle := query.Pattern
		return func(text string) bool {
			return strings.Contains(text, needle)
		}, nil
	}
	needle := strings.ToLower(query.Pattern)
	return func(text string) bool {
		return strings.Contains(strings.ToLower(text), needle)
	}, nil
}

func (c *SearchCoordinator) preview(entry domain.LogEntry) string {
	line := entry.FirstLine()
	runes := []rune(line)
	if len(runes) <= c.opts.PreviewWidth {
		return line
	}
	return string(runes[:c.opts.PreviewWidth])
}
