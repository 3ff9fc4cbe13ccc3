package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/user/logquarry/internal/domain"
)

// Event is one notification pushed to SSE subscribers. Type is either
// "entry_batch" or "session_status".
type Event struct {
	Type        string `json:"type"`
	SourceLabel string `json:"source_label"`
	Count       int    `json:"count,omitempty"`
	State       string `json:"state,omitempty"`
	Detail      string `json:"detail,omitempty"`
	At          int64  `json:"at"`
}

// EventBroker fans session notifications out to SSE clients. It implements
// domain.EntrySink: sessions call it from their load goroutines and the
// broker hands events to consumers on a buffered channel, so slow clients
// never block loading. Consumers decide at what priority to apply batches.
type EventBroker struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	clients  map[chan []byte]struct{}
	incoming chan Event
}

// NewEventBroker creates an EventBroker and starts its broadcast loop.
func NewEventBroker(ctx context.Context, logger *slog.Logger) *EventBroker {
	b := &EventBroker{
		logger:   logger.With("component", "event_broker"),
		clients:  make(map[chan []byte]struct{}),
		incoming: make(chan Event, 1024),
	}
	go b.run(ctx)
	return b
}

// EntryBatch implements domain.EntrySink.
func (b *EventBroker) EntryBatch(sourceLabel string, count int) {
	b.publish(Event{Type: "entry_batch", SourceLabel: sourceLabel, Count: count, At: time.Now().UnixMilli()})
}

// SessionStatus implements domain.EntrySink.
func (b *EventBroker) SessionStatus(sourceLabel string, state domain.SessionState, detail string) {
	b.publish(Event{Type: "session_status", SourceLabel: sourceLabel, State: state.String(), Detail: detail, At: time.Now().UnixMilli()})
}

func (b *EventBroker) publish(ev Event) {
	select {
	case b.incoming <- ev:
	default:
		// Never block a load on a full notification queue.
		b.logger.Warn("event queue full, dropping notification", "type", ev.Type, "source", ev.SourceLabel)
	}
}

// ServeHTTP streams events to one SSE client until it disconnects.
func (b *EventBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	messages := make(chan []byte, 64)
	b.addClient(messages)
	defer b.removeClient(messages)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (b *EventBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("event client connected")
}

func (b *EventBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("event client disconnected")
	}
}

func (b *EventBroker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.incoming:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- data:
				default:
					// Slow client; skip rather than stall the broadcast.
				}
			}
			b.mu.RUnlock()
		}
	}
}
