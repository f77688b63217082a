package httptransport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scholar/internal/submission"
)

// HandleEvents streams record transitions as Server-Sent Events. The first
// event is the backlog; every later event carries one full record.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	var (
		initial InitialState
		snapErr error
	)
	sub := h.feed.Subscribe(func() {
		initial.Logs, snapErr = h.submissions.Records(ctx)
		initial.Stats = submission.ComputeStats(initial.Logs)
	})
	defer sub.Close()
	if snapErr != nil {
		h.logger.ErrorContext(ctx, "failed to snapshot records for feed", "error", snapErr)
		http.Error(w, "feed unavailable", http.StatusServiceUnavailable)
		return
	}
	if initial.Logs == nil {
		initial.Logs = []submission.Record{}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if h.metrics != nil {
		h.metrics.IncrementActiveStreams()
		defer h.metrics.DecrementActiveStreams()
	}
	h.logger.DebugContext(ctx, "feed client connected", "backlog", len(initial.Logs))

	if err := writeEvent(w, submission.EventInitialState, "", initial); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "event stream cannot flush", "error", err)
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			h.logger.DebugContext(ctx, "feed client disconnected", "dropped", sub.Dropped())
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case _, open := <-sub.Ready():
			if !open {
				return
			}
			for _, e := range sub.Drain() {
				id := fmt.Sprintf("%s:%d", e.Record.ID, e.Record.Version)
				if err := writeEvent(w, e.Type, id, e.Record); err != nil {
					return
				}
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, event, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
