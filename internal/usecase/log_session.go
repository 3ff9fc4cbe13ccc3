package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/user/logquarry/internal/adapter/metrics"
	"github.com/user/logquarry/internal/domain"
)

// LogSession owns one open log view: the harvested local file and the parsed
// entry sequence. Loads and refreshes build a private buffer and swap it in
// atomically, so a search or navigation in flight never observes a half-built
// sequence. A failed refresh leaves the previous entries intact.
type LogSession struct {
	ID          string
	SourceLabel string

	request   domain.HarvestRequest
	harvester *Harvester
	parser    *StreamParser
	registry  domain.FileRegistry
	sink      domain.EntrySink
	logger    *slog.Logger

	inFlight atomic.Bool
	cancel   context.CancelFunc

	mu           sync.RWMutex
	state        domain.SessionState
	statusText   string
	entries      []domain.LogEntry
	localPath    string
	lastLoadTime time.Duration
}

func newLogSession(label string, req domain.HarvestRequest, harvester *Harvester, parser *StreamParser, registry domain.FileRegistry, sink domain.EntrySink, logger *slog.Logger) *LogSession {
	return &LogSession{
		ID:          uuid.NewString(),
		SourceLabel: label,
		request:     req,
		harvester:   harvester,
		parser:      parser,
		registry:    registry,
		sink:        sink,
		logger:      logger.With("component", "log_session", "source", label),
		state:       domain.SessionEmpty,
	}
}

// Load harvests and parses a fresh copy of the remote log. When the session
// is already Ready this is a refresh: the old entries stay visible until the
// new sequence is fully built, and stay untouched if anything fails. At most
// one load/refresh runs per session; a request arriving while one is in
// flight is a no-op.
func (s *LogSession) Load(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	refreshing := s.state == domain.SessionReady || s.state == domain.SessionRefreshing
	if refreshing {
		s.state = domain.SessionRefreshing
	} else {
		s.state = domain.SessionLoading
	}
	state := s.state
	s.mu.Unlock()
	s.notifyStatus(state, "")

	start := time.Now()

	result := s.harvester.Harvest(ctx, s.request)
	if !result.Success {
		return s.fail(refreshing, result.ErrorMessage)
	}

	buffer := make([]domain.LogEntry, 0, len(s.Entries()))
	err := s.parser.Stream(ctx, result.LocalPath, func(batch []domain.LogEntry) error {
		buffer = append(buffer, batch...)
		if s.sink != nil {
			s.sink.EntryBatch(s.SourceLabel, len(batch))
		}
		return nil
	})
	if err != nil {
		// The fresh file is already registered; hand it straight back so the
		// cleanup collaborator can reclaim it.
		s.registry.ReleaseLocalFile(s.request.HostID, result.LocalPath)
		return s.fail(refreshing, err.Error())
	}

	s.mu.Lock()
	oldPath := s.localPath
	s.entries = buffer
	s.localPath = result.LocalPath
	s.state = domain.SessionReady
	s.statusText = fmt.Sprintf("%d entries", len(buffer))
	s.lastLoadTime = time.Since(start)
	s.mu.Unlock()

	if oldPath != "" && oldPath != result.LocalPath {
		s.registry.ReleaseLocalFile(s.request.HostID, oldPath)
	}

	s.notifyStatus(domain.SessionReady, fmt.Sprintf("%d entries", len(buffer)))
	s.logger.Info("session loaded", "entries", len(buffer), "duration_ms", time.Since(start).Milliseconds(), "refresh", refreshing)
	return nil
}

func (s *LogSession) fail(refreshing bool, message string) error {
	s.mu.Lock()
	if refreshing {
		// Refresh failures never discard good data.
		s.state = domain.SessionReady
	} else {
		s.state = domain.SessionFailed
	}
	s.statusText = message
	state := s.state
	s.mu.Unlock()

	s.notifyStatus(state, message)
	return errors.New(message)
}

// Entries returns the current entry snapshot. The slice is replaced wholesale
// on refresh and must be treated as read-only; searches borrow it for the
// duration of one pass without copying.
func (s *LogSession) Entries() []domain.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// State returns the session state and its display text.
func (s *LogSession) State() (domain.SessionState, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.statusText
}

// LocalPath returns the path of the live local file, empty before first load.
func (s *LogSession) LocalPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localPath
}

// MinRefreshInterval is the floor for scheduled refreshes:
// ceil(lastLoadSeconds/60)+1 minutes, so a refresh can never be scheduled
// faster than the session can plausibly reload. Exposed as data; the caller
// enforces it.
func (s *LogSession) MinRefreshInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	minutes := int(math.Ceil(s.lastLoadTime.Seconds()/60)) + 1
	return time.Duration(minutes) * time.Minute
}

// startAutoRefresh refreshes the session on a fixed cadence until ctx is
// cancelled. The interval is clamped to MinRefreshInterval on every cycle.
func (s *LogSession) startAutoRefresh(ctx context.Context, interval time.Duration) {
	go func() {
		for {
			wait := interval
			if min := s.MinRefreshInterval(); wait < min {
				wait = min
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			if err := s.Load(ctx); err != nil {
				s.logger.Warn("auto refresh failed", "error", err)
			}
		}
	}()
}

// close releases the session's local file.
func (s *LogSession) close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	path := s.localPath
	s.localPath = ""
	s.entries = nil
	s.state = domain.SessionEmpty
	s.mu.Unlock()

	if path != "" {
		s.registry.ReleaseLocalFile(s.request.HostID, path)
	}
}

func (s *LogSession) notifyStatus(state domain.SessionState, detail string) {
	if s.sink != nil {
		s.sink.SessionStatus(s.SourceLabel, state, detail)
	}
}

// SessionManager owns all open sessions. Opening a session kicks off the
// initial load in the background and starts the periodic refresh loop.
type SessionManager struct {
	harvester       *Harvester
	parser          *StreamParser
	registry        domain.FileRegistry
	sink            domain.EntrySink
	metrics         *metrics.QuarryMetrics
	logger          *slog.Logger
	refreshInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*LogSession
}

// NewSessionManager creates a SessionManager. sink and m may be nil.
func NewSessionManager(harvester *Harvester, parser *StreamParser, registry domain.FileRegistry, sink domain.EntrySink, m *metrics.QuarryMetrics, logger *slog.Logger, refreshInterval time.Duration) *SessionManager {
	return &SessionManager{
		harvester:       harvester,
		parser:          parser,
		registry:        registry,
		sink:            sink,
		metrics:         m,
		logger:          logger,
		refreshInterval: refreshInterval,
		sessions:        make(map[string]*LogSession),
	}
}

// OpenSession creates a session for the given source and returns it
// immediately; the initial load runs in the background.
func (m *SessionManager) OpenSession(ctx context.Context, label string, req domain.HarvestRequest) (*LogSession, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: source label is required", domain.ErrInvalidArgument)
	}
	if req.HostID == "" || req.LogItemID == "" {
		return nil, fmt.Errorf("%w: host id and log item id are required", domain.ErrInvalidArgument)
	}

	session := newLogSession(label, req, m.harvester, m.parser, m.registry, m.sink, m.logger)

	sessionCtx, cancel := context.WithCancel(ctx)
	session.cancel = cancel

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}

	go func() {
		if err := session.Load(sessionCtx); err != nil {
			m.logger.Warn("initial session load failed", "source", label, "error", err)
		}
	}()
	if m.refreshInterval > 0 {
		session.startAutoRefresh(sessionCtx, m.refreshInterval)
	}

	return session, nil
}

// Session returns the session with the given id.
func (m *SessionManager) Session(id string) (*LogSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns all open sessions sorted by source label.
func (m *SessionManager) Sessions() []*LogSession {
	m.mu.RLock()
	out := make([]*LogSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceLabel == out[j].SourceLabel {
			return out[i].ID < out[j].ID
		}
		return out[i].SourceLabel < out[j].SourceLabel
	})
	return out
}

// CloseSession stops the session's refresh loop and releases its local file.
func (m *SessionManager) CloseSession(id string) bool {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	session.close()
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}
	return true
}

// CloseAll closes every open session, for shutdown.
func (m *SessionManager) CloseAll() {
	for _, s := range m.Sessions() {
		m.CloseSession(s.ID)
	}
}
