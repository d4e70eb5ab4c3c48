package watcher

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPath         = errors.New("path is required")
	ErrPathNotFound      = errors.New("path does not exist")
	ErrNotDirectory      = errors.New("path is not a directory")
	ErrSessionClosed     = errors.New("watch session is closed")
	ErrWatcherTerminated = errors.New("filesystem watcher terminated")
	ErrRootRemoved       = errors.New("watched directory was removed")
	// ErrNoListeners is returned by an Emitter when no UI is connected.
	ErrNoListeners = errors.New("no event listeners connected")
)

// ValidationError reports a watch path the caller should not have passed.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid watch path %q: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SetupError reports that the operating system refused to establish a watch.
type SetupError struct {
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("failed to watch directory %q: %v", e.Path, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// NotificationError reports a failure of an active watch.
type NotificationError struct {
	Path string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("watch of %q failed: %v", e.Path, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
