// Package client talks to a running marknote server.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WatchStatus mirrors the GET /api/watch response.
type WatchStatus struct {
	Active    bool   `json:"active"`
	Path      string `json:"path,omitempty"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	Listeners int    `json:"listeners"`
}

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func FetchWatchStatus(client *http.Client, baseURL, token string) (WatchStatus, error) {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return WatchStatus{}, errors.New("base URL is required")
	}

	request, err := http.NewRequest(http.MethodGet, baseURL+"/api/watch", nil)
	if err != nil {
		return WatchStatus{}, fmt.Errorf("build status request failed: %w", err)
	}
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return WatchStatus{}, fmt.Errorf("status request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return WatchStatus{}, readHTTPError(response)
	}

	var status WatchStatus
	if err := json.NewDecoder(response.Body).Decode(&status); err != nil {
		return WatchStatus{}, fmt.Errorf("decode status response: %w", err)
	}
	return status, nil
}

// StartWatch asks the server to watch path, replacing any current watch.
func StartWatch(client *http.Client, baseURL, token, path string) error {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return errors.New("base URL is required")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}

	body, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return fmt.Errorf("encode watch request: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, baseURL+"/api/watch", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build watch request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("watch request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNoContent || response.StatusCode == http.StatusOK {
		return nil
	}
	return readHTTPError(response)
}

// StopWatch asks the server to stop watching. Stopping an idle server
// succeeds.
func StopWatch(client *http.Client, baseURL, token string) error {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return errors.New("base URL is required")
	}

	request, err := http.NewRequest(http.MethodDelete, baseURL+"/api/watch", nil)
	if err != nil {
		return fmt.Errorf("build unwatch request: %w", err)
	}
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("unwatch request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNoContent || response.StatusCode == http.StatusOK {
		return nil
	}
	return readHTTPError(response)
}

func ensureClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return http.DefaultClient
}

func addToken(request *http.Request, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	request.Header.Set("Authorization", "Bearer "+token)
}

func readHTTPError(response *http.Response) *HTTPError {
	if response == nil {
		return &HTTPError{Message: "request failed"}
	}
	httpErr := &HTTPError{StatusCode: response.StatusCode}
	body, _ := io.ReadAll(response.Body)
	text := strings.TrimSpace(string(body))
	if text == "" {
		httpErr.Message = response.Status
		return httpErr
	}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		httpErr.Message = payload.Error
		httpErr.Code = payload.Code
		return httpErr
	}
	httpErr.Message = text
	return httpErr
}
