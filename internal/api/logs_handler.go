package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"marknote/internal/logging"

	"github.com/gorilla/websocket"
)

// LogsHandler streams backend log entries to a websocket client. Clients
// may send {"level":"warning"} to change the minimum level.
type LogsHandler struct {
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

type logFilterMessage struct {
	Level string `json:"level"`
}

type levelFilter struct {
	mu    sync.RWMutex
	level logging.Level
}

func (f *levelFilter) Get() logging.Level {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.level
}

func (f *levelFilter) Set(level logging.Level) {
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireWSToken(w, r, h.AuthToken, h.Logger) {
		return
	}

	filter := &levelFilter{}
	if rawLevel := r.URL.Query().Get("level"); rawLevel != "" {
		if level, ok := logging.ParseLevel(rawLevel); ok {
			filter.Set(level)
		}
	}

	output, cancel, err := h.Logger.Subscribe(func(entry logging.LogEntry) bool {
		return logging.LevelAtLeast(entry.Level, filter.Get())
	})
	if err != nil {
		rejectWS(w, r, h.Logger, wsRejection{
			Status:  http.StatusServiceUnavailable,
			Message: "log stream unavailable",
			Err:     err,
		})
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

	writer := startWSWriter(wsStream[logging.LogEntry]{
		Conn:   conn,
		Output: output,
	})
	defer writer.Stop()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var payload logFilterMessage
		if err := json.Unmarshal(msg, &payload); err != nil {
			continue
		}
		if level, ok := logging.ParseLevel(payload.Level); ok {
			filter.Set(level)
		}
	}
}
