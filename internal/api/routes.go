// Package api serves the marknote command surface over HTTP and pushes
// change notifications to UI clients over websockets.
package api

import (
	"net/http"

	"marknote/internal/logging"
	"marknote/internal/metrics"
)

type Deps struct {
	Session        WatchSession
	Stream         *EventStream
	Logger         *logging.Logger
	Metrics        *metrics.Registry
	AuthToken      string
	AllowedOrigins []string
}

func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	rest := &RestHandler{
		Session: deps.Session,
		Stream:  deps.Stream,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	}
	token := deps.AuthToken
	logger := deps.Logger

	mux.Handle("/ws/events", securityHeadersMiddleware(cacheControlNoStore, &EventsHandler{
		Stream:         deps.Stream,
		Logger:         logger,
		AuthToken:      token,
		AllowedOrigins: deps.AllowedOrigins,
	}))
	mux.Handle("/ws/logs", securityHeadersMiddleware(cacheControlNoStore, &LogsHandler{
		Logger:         logger,
		AuthToken:      token,
		AllowedOrigins: deps.AllowedOrigins,
	}))

	mux.Handle("/api/watch", restHandler(token, logger, rest.handleWatch))
	mux.Handle("/api/fs/dir", restHandler(token, logger, rest.handleDirectory))
	mux.Handle("/api/fs/file", restHandler(token, logger, rest.handleFile))
	mux.Handle("/api/fs/rename", restHandler(token, logger, rest.handleRename))
	mux.Handle("/api/logs", restHandler(token, logger, rest.handleLogs))
	mux.Handle("/api/metrics", restHandler(token, logger, rest.handleMetrics))
	mux.Handle("/api/version", restHandler(token, logger, rest.handleVersion))
}
