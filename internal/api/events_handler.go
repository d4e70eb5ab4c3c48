package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"marknote/internal/event"
	"marknote/internal/logging"
	"marknote/internal/watcher"
)

// EventsHandler streams FileChange messages to a websocket client.
// ?kind=create,remove limits the stream to those kinds.
type EventsHandler struct {
	Stream         *EventStream
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireWSToken(w, r, h.AuthToken, h.Logger) {
		return
	}

	kinds, err := parseKindQuery(r.URL.Query()["kind"])
	if err != nil {
		rejectWS(w, r, h.Logger, wsRejection{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	events, cancel, err := h.Stream.Subscribe(kinds)
	if err != nil {
		rejection := wsRejection{Status: http.StatusServiceUnavailable, Message: "event stream unavailable", Err: err}
		if errors.Is(err, event.ErrSubscriberLimit) {
			rejection.Message = "too many event clients"
		}
		rejectWS(w, r, h.Logger, rejection)
		return
	}
	defer cancel()

	conn, err := upgradeWebSocket(w, r, h.AllowedOrigins)
	if err != nil {
		logWSRejection(h.Logger, r, wsRejection{
			Status:  http.StatusBadRequest,
			Message: "websocket upgrade failed",
			Err:     err,
		})
		return
	}
	defer conn.Close()

	writer := startWSWriter(wsStream[FileChange]{
		Conn:   conn,
		Output: events,
	})
	defer writer.Stop()

	h.Logger.Debug("event stream connected", map[string]string{
		logging.FieldCategory: "api",
		logging.FieldSource:   "backend",
		"remote_addr":         r.RemoteAddr,
	})
	drainWSReads(conn)
}

// parseKindQuery accepts repeated or comma separated kind values.
func parseKindQuery(values []string) ([]watcher.Kind, error) {
	var kinds []watcher.Kind
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			kind, ok := watcher.ParseKind(part)
			if !ok {
				return nil, fmt.Errorf("unknown event kind %q", strings.TrimSpace(part))
			}
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}
