package api

import (
	"errors"
	"net/http"

	"marknote/internal/notes"
	"marknote/internal/watcher"
)

const codeWatchSetupFailed = "watch_setup_failed"

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		if status >= http.StatusInternalServerError {
			return "internal_error"
		}
	}
	return ""
}

// watchError maps a watch session error to a response.
func watchError(err error) *apiError {
	var validationErr *watcher.ValidationError
	var setupErr *watcher.SetupError
	switch {
	case errors.As(err, &validationErr):
		return &apiError{Status: http.StatusBadRequest, Message: err.Error()}
	case errors.As(err, &setupErr):
		return &apiError{Status: http.StatusInternalServerError, Message: err.Error(), Code: codeWatchSetupFailed}
	case errors.Is(err, watcher.ErrSessionClosed):
		return &apiError{Status: http.StatusServiceUnavailable, Message: err.Error()}
	default:
		return &apiError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
}

// notesError maps a file operation error to a response.
func notesError(err error) *apiError {
	switch {
	case errors.Is(err, notes.ErrNotExist):
		return &apiError{Status: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, notes.ErrExist):
		return &apiError{Status: http.StatusConflict, Message: err.Error()}
	case errors.Is(err, notes.ErrEmptyPath),
		errors.Is(err, notes.ErrIsDirectory),
		errors.Is(err, notes.ErrNotDirectory),
		errors.Is(err, notes.ErrInvalidUTF8):
		return &apiError{Status: http.StatusBadRequest, Message: err.Error()}
	default:
		return &apiError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
}
