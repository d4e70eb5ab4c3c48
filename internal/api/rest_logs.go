package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"marknote/internal/logging"
)

const defaultLogLimit = 100

// uiLogLine is a log line reported by the editor UI.
type uiLogLine struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

func (h *RestHandler) handleLogs(w http.ResponseWriter, r *http.Request) *apiError {
	buffer := h.Logger.Buffer()
	if buffer == nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "log buffer unavailable"}
	}
	switch r.Method {
	case http.MethodGet:
		query, err := logQueryFromURL(r)
		if err != nil {
			return err
		}
		entries := buffer.Select(query)
		if entries == nil {
			entries = []logging.LogEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
		return nil
	case http.MethodPost:
		return h.recordUILog(w, r)
	default:
		return methodNotAllowed(w, "GET, POST")
	}
}

func (h *RestHandler) recordUILog(w http.ResponseWriter, r *http.Request) *apiError {
	var line uiLogLine
	if err := decodeJSON(w, r, &line); err != nil {
		return err
	}
	message := strings.TrimSpace(line.Message)
	if message == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "missing log message"}
	}
	level, ok := logging.ParseLevel(line.Level)
	if !ok {
		return &apiError{Status: http.StatusBadRequest, Message: "invalid log level"}
	}

	fields := make(map[string]string, len(line.Context)+1)
	for key, value := range line.Context {
		if strings.TrimSpace(key) != "" {
			fields[key] = value
		}
	}
	fields[logging.FieldSource] = "frontend"
	h.Logger.Log(level, message, fields)

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// logQueryFromURL reads ?level=, ?since= (RFC 3339) and ?limit=.
func logQueryFromURL(r *http.Request) (logging.Query, *apiError) {
	values := r.URL.Query()
	query := logging.Query{Limit: defaultLogLimit}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid limit"}
		}
		query.Limit = limit
	}
	if raw := strings.TrimSpace(values.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid since timestamp"}
		}
		query.Since = since
	}
	if raw := strings.TrimSpace(values.Get("level")); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid log level"}
		}
		query.MinLevel = level
	}
	return query, nil
}
