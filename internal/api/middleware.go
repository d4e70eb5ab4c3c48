package api

import (
	"net/http"
	"strconv"

	"marknote/internal/logging"
)

type apiError struct {
	Status  int
	Message string
	Code    string
}

type apiHandler func(http.ResponseWriter, *http.Request) *apiError

const cacheControlNoStore = "no-store, must-revalidate"

func setSecurityHeaders(w http.ResponseWriter, cacheControl string) {
	headers := w.Header()
	headers.Set("X-Content-Type-Options", "nosniff")
	if cacheControl != "" {
		headers.Set("Cache-Control", cacheControl)
	}
}

func securityHeadersMiddleware(cacheControl string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, cacheControl)
		next.ServeHTTP(w, r)
	})
}

func authMiddleware(token string, next apiHandler) apiHandler {
	return func(w http.ResponseWriter, r *http.Request) *apiError {
		if !validateToken(r, token) {
			return &apiError{Status: http.StatusUnauthorized, Message: "unauthorized"}
		}
		return next(w, r)
	}
}

func jsonErrorMiddleware(logger *logging.Logger, next apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			if err.Status >= http.StatusInternalServerError {
				logger.Warn("api request failed", map[string]string{
					logging.FieldCategory: "api",
					logging.FieldSource:   "backend",
					"method":              r.Method,
					"path":                r.URL.Path,
					"status":              strconv.Itoa(err.Status),
					"error":               err.Message,
				})
			}
			writeJSONError(w, err)
		}
	}
}

func loggingMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("api request", map[string]string{
			logging.FieldCategory: "api",
			logging.FieldSource:   "backend",
			"method":              r.Method,
			"path":                r.URL.Path,
		})
		next.ServeHTTP(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter, allow string) *apiError {
	w.Header().Set("Allow", allow)
	return &apiError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"}
}

func restHandler(token string, logger *logging.Logger, handler apiHandler) http.Handler {
	return loggingMiddleware(logger, securityHeadersMiddleware(cacheControlNoStore, jsonErrorMiddleware(logger, authMiddleware(token, handler))))
}
