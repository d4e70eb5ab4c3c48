package api

import (
	"net/http"
	"strings"

	"marknote/internal/notes"
)

type pathRequest struct {
	Path string `json:"path"`
}

type fileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type fileResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type renameRequest struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

func queryPath(r *http.Request) (string, *apiError) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		return "", &apiError{Status: http.StatusBadRequest, Message: "missing path"}
	}
	return path, nil
}

func (h *RestHandler) handleDirectory(w http.ResponseWriter, r *http.Request) *apiError {
	switch r.Method {
	case http.MethodGet:
		path, apiErr := queryPath(r)
		if apiErr != nil {
			return apiErr
		}
		items, err := notes.ReadDirectory(path)
		if err != nil {
			return notesError(err)
		}
		writeJSON(w, http.StatusOK, items)
		return nil
	case http.MethodPost:
		var request pathRequest
		if apiErr := decodeJSON(w, r, &request); apiErr != nil {
			return apiErr
		}
		if err := notes.CreateDirectory(strings.TrimSpace(request.Path)); err != nil {
			return notesError(err)
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	case http.MethodDelete:
		path, apiErr := queryPath(r)
		if apiErr != nil {
			return apiErr
		}
		if err := notes.DeleteDirectory(path); err != nil {
			return notesError(err)
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	default:
		return methodNotAllowed(w, "GET, POST, DELETE")
	}
}

func (h *RestHandler) handleFile(w http.ResponseWriter, r *http.Request) *apiError {
	switch r.Method {
	case http.MethodGet:
		path, apiErr := queryPath(r)
		if apiErr != nil {
			return apiErr
		}
		content, err := notes.ReadFile(path)
		if err != nil {
			return notesError(err)
		}
		writeJSON(w, http.StatusOK, fileResponse{Path: path, Content: content})
		return nil
	case http.MethodPut:
		var request fileRequest
		if apiErr := decodeJSON(w, r, &request); apiErr != nil {
			return apiErr
		}
		if err := notes.WriteFile(strings.TrimSpace(request.Path), request.Content); err != nil {
			return notesError(err)
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	case http.MethodPost:
		var request pathRequest
		if apiErr := decodeJSON(w, r, &request); apiErr != nil {
			return apiErr
		}
		if err := notes.CreateFile(strings.TrimSpace(request.Path)); err != nil {
			return notesError(err)
		}
		w.WriteHeader(http.StatusCreated)
		return nil
	case http.MethodDelete:
		path, apiErr := queryPath(r)
		if apiErr != nil {
			return apiErr
		}
		if err := notes.DeleteFile(path); err != nil {
			return notesError(err)
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	default:
		return methodNotAllowed(w, "GET, PUT, POST, DELETE")
	}
}

func (h *RestHandler) handleRename(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, "POST")
	}
	var request renameRequest
	if apiErr := decodeJSON(w, r, &request); apiErr != nil {
		return apiErr
	}
	oldPath := strings.TrimSpace(request.OldPath)
	newPath := strings.TrimSpace(request.NewPath)
	if oldPath == "" || newPath == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "old_path and new_path are required"}
	}
	if err := notes.RenamePath(oldPath, newPath); err != nil {
		return notesError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
