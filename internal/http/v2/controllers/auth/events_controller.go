package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/chatpal/internal/events"
	dto "github.com/dropDatabas3/chatpal/internal/http/v2/dto/auth"
	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

const (
	sseBuffer    = 16
	sseHeartbeat = 15 * time.Second
)

// EventsController streams the session bus as Server-Sent Events on
// GET /v2/auth/events. The SSE event name is the bus name
// (googleLoginSuccess, kakaoLogoutSuccess, ...).
type EventsController struct {
	source    EventSource
	heartbeat time.Duration
}

func NewEventsController(source EventSource) *EventsController {
	return &EventsController{source: source, heartbeat: sseHeartbeat}
}

func (c *EventsController) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("EventsController.Stream"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	rc := http.NewResponseController(w)
	ch, cancel := c.source.SubscribeChan(sseBuffer)
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-store")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Warn("streaming unsupported", logger.Err(err))
		return
	}

	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev := <-ch:
			if err := writeEvent(w, ev); err != nil {
				log.Debug("event stream closed", logger.Err(err))
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev events.Event) error {
	payload := dto.Event{
		Name:     ev.Name(),
		Provider: ev.Provider.String(),
		User:     ev.User,
		At:       ev.At,
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", payload.Name, b)
	return err
}
