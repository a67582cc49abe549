package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"shgbook/internal/core"
	"shgbook/internal/log"
	"shgbook/internal/store"
)

// streamEvent is one snapshot pushed to a stream subscriber.
type streamEvent struct {
	name string
	data any
}

func errorEvent(err error) streamEvent {
	return streamEvent{name: "error", data: errorBody{Error: core.Message(err), Kind: core.KindOf(err).String()}}
}

// latestEvent keeps only the newest pending snapshot; slow clients skip
// intermediate states.
type latestEvent struct {
	mu      sync.Mutex
	pending *streamEvent
	notify  chan struct{}
}

func newLatestEvent() *latestEvent {
	return &latestEvent{notify: make(chan struct{}, 1)}
}

func (l *latestEvent) put(ev streamEvent) {
	l.mu.Lock()
	l.pending = &ev
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latestEvent) take() (streamEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return streamEvent{}, false
	}
	ev := *l.pending
	l.pending = nil
	return ev, true
}

// subscribeFunc starts a store subscription that reports through put.
type subscribeFunc func(ctx context.Context, put func(streamEvent)) (store.Cancel, error)

// handleYearEvents streams the year's snapshots as server-sent events:
// "year" with the ledger, "missing" while it does not exist, and "error"
// before the stream closes on a subscription failure.
func (s *Server) handleYearEvents(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.stream(w, r, "year", func(ctx context.Context, put func(streamEvent)) (store.Cancel, error) {
		return s.svc.Ledger.Watch(ctx, year, func(y core.YearLedger, found bool, err error) {
			switch {
			case err != nil:
				put(errorEvent(err))
			case !found:
				put(streamEvent{name: "missing", data: map[string]int{"year": year}})
			default:
				s.invalidateYear(year)
				put(streamEvent{name: "year", data: y})
			}
		})
	}, log.FieldYear, year)
}

// handleMemberEvents streams the member list as "members" events.
func (s *Server) handleMemberEvents(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, "members", func(ctx context.Context, put func(streamEvent)) (store.Cancel, error) {
		return s.svc.Members.Watch(ctx, func(members []core.Member, err error) {
			if err != nil {
				put(errorEvent(err))
				return
			}
			put(streamEvent{name: "members", data: members})
		})
	})
}

// handleActivityEvents streams the newest ?count activity records as
// "activity" events after every append.
func (s *Server) handleActivityEvents(w http.ResponseWriter, r *http.Request) {
	count, err := queryInt(r, "count", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.stream(w, r, "activity", func(ctx context.Context, put func(streamEvent)) (store.Cancel, error) {
		return s.svc.Audit.Watch(ctx, count, func(items []core.Activity, err error) {
			if err != nil {
				put(errorEvent(err))
				return
			}
			put(streamEvent{name: "activity", data: items})
		})
	})
}

// stream holds the response open as an event stream until the client goes
// away or the subscription reports an error.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, topic string, subscribe subscribeFunc, attrs ...any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Streaming is not supported", Kind: "persistence"})
		return
	}

	ctx := r.Context()
	logger := log.FromContext(ctx).With(append([]any{"stream", topic}, attrs...)...)
	latest := newLatestEvent()

	cancel, err := subscribe(ctx, latest.put)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cancel()

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.InfoContext(ctx, "Stream opened", log.FieldOperation, log.OpSubscribe)
	defer logger.InfoContext(ctx, "Stream closed")

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-latest.notify:
			ev, ok := latest.take()
			if !ok {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.name == "error" {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev streamEvent) error {
	data, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}
