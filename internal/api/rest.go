package api

import (
	"net/http"
	"strings"

	"marknote/internal/logging"
	"marknote/internal/metrics"
	"marknote/internal/version"
	"marknote/internal/watcher"
)

// WatchSession is the part of watcher.Session the HTTP surface drives.
type WatchSession interface {
	Start(path string) error
	Stop()
	Status() watcher.Status
}

type RestHandler struct {
	Session WatchSession
	Stream  *EventStream
	Logger  *logging.Logger
	Metrics *metrics.Registry
}

type watchRequest struct {
	Path string `json:"path"`
}

type watchStatusResponse struct {
	Active    bool   `json:"active"`
	Path      string `json:"path,omitempty"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	Listeners int    `json:"listeners"`
}

func (h *RestHandler) handleWatch(w http.ResponseWriter, r *http.Request) *apiError {
	if h.Session == nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "watch session unavailable"}
	}

	switch r.Method {
	case http.MethodGet:
		status := h.Session.Status()
		writeJSON(w, http.StatusOK, watchStatusResponse{
			Active:    status.Active,
			Path:      status.Path,
			State:     string(status.State),
			Error:     status.Error,
			Listeners: h.Stream.Listeners(),
		})
		return nil
	case http.MethodPost:
		var request watchRequest
		if err := decodeJSON(w, r, &request); err != nil {
			return err
		}
		if err := h.Session.Start(strings.TrimSpace(request.Path)); err != nil {
			return watchError(err)
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	case http.MethodDelete:
		h.Session.Stop()
		w.WriteHeader(http.StatusNoContent)
		return nil
	default:
		return methodNotAllowed(w, "GET, POST, DELETE")
	}
}

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	registry := h.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		writeJSON(w, http.StatusOK, registry.Snapshot())
		return nil
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = registry.WritePrometheus(w)
	return nil
}

func (h *RestHandler) handleVersion(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	writeJSON(w, http.StatusOK, version.GetInfo())
	return nil
}
