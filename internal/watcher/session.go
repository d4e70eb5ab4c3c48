package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"marknote/internal/logging"
	"marknote/internal/metrics"
)

const defaultEventBuffer = 64

// watch is one running pipeline: source, debouncer and forwarder.
type watch struct {
	path      string
	source    *Source
	stop      chan struct{}
	done      chan struct{}
	once      sync.Once
	startedAt time.Time
	// runtimeErr is the last error the source reported without ending.
	runtimeErr atomic.Pointer[NotificationError]
}

// shutdown stops the pipeline and waits for all of its goroutines.
func (current *watch) shutdown() {
	current.once.Do(func() {
		close(current.stop)
		_ = current.source.Close()
		<-current.done
	})
}

func (current *watch) dark() bool {
	select {
	case <-current.done:
		select {
		case <-current.stop:
			return false
		default:
			return true
		}
	default:
		return false
	}
}

// Session owns the single active directory watch. Every transition holds
// one mutex, so a stale pipeline is always fully stopped before the next
// one starts. Emitters must not call back into the Session.
type Session struct {
	mutex       sync.Mutex
	current     *watch
	lastErr     error
	closed      bool
	state       State
	emitter     Emitter
	logger      *logging.Logger
	metrics     *metrics.Registry
	debounce    time.Duration
	ignore      *IgnoreMatcher
	eventBuffer int
}

// NewSession builds an idle session. A nil Options.Ignore selects
// DefaultIgnorePatterns; an empty non-nil slice disables ignoring.
func NewSession(emitter Emitter, options Options) (*Session, error) {
	patterns := options.Ignore
	if patterns == nil {
		patterns = DefaultIgnorePatterns
	}
	matcher, err := NewIgnoreMatcher(patterns)
	if err != nil {
		return nil, err
	}
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	eventBuffer := options.EventBuffer
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}
	registry := options.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	logger := options.Logger.With(map[string]string{
		logging.FieldCategory: "watcher",
		logging.FieldSource:   "backend",
	})
	return &Session{
		state:       StateInactive,
		emitter:     emitter,
		logger:      logger,
		metrics:     registry,
		debounce:    debounce,
		ignore:      matcher,
		eventBuffer: eventBuffer,
	}, nil
}

// Start replaces the current watch with one on path. The path is validated
// before the current watch is touched, so a bad path leaves it running. A
// setup failure leaves the session with no watch.
func (session *Session) Start(path string) error {
	root, err := validateDirectory(path)
	if err != nil {
		return err
	}

	session.mutex.Lock()
	defer session.mutex.Unlock()

	if session.closed {
		return ErrSessionClosed
	}

	session.teardownLocked("replaced")

	session.setStateLocked(StateStarting, root)
	current, err := session.startLocked(root)
	if err != nil {
		session.lastErr = err
		session.metrics.IncWatchFailed()
		session.setStateLocked(StateInactive, root)
		session.logger.Warn("watch start failed", map[string]string{
			"path":  root,
			"error": err.Error(),
		})
		return err
	}

	session.current = current
	session.lastErr = nil
	session.metrics.IncWatchStarted()
	session.setStateLocked(StateActive, root)
	session.logger.Info("watch started", map[string]string{
		"path":     root,
		"debounce": session.debounce.String(),
	})
	return nil
}

// Stop ends the current watch. It is a no-op when nothing is watched.
func (session *Session) Stop() {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.teardownLocked("stopped")
	session.lastErr = nil
}

// Status reports the current watch. A watch whose source terminated on its
// own is released here and reported inactive with the terminating error. An
// active watch carries the last runtime error its source reported.
func (session *Session) Status() Status {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.reapLocked()
	status := Status{State: session.state}
	if session.current != nil {
		status.Active = true
		status.Path = session.current.path
		if runtimeErr := session.current.runtimeErr.Load(); runtimeErr != nil {
			status.Error = runtimeErr.Error()
		}
	}
	if session.lastErr != nil {
		status.Error = session.lastErr.Error()
	}
	return status
}

// Path returns the watched directory, if any.
func (session *Session) Path() (string, bool) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.reapLocked()
	if session.current == nil {
		return "", false
	}
	return session.current.path, true
}

func (session *Session) Active() bool {
	_, ok := session.Path()
	return ok
}

// Err returns the error that ended the last watch, if any.
func (session *Session) Err() error {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.reapLocked()
	return session.lastErr
}

// Close stops the current watch and rejects later calls to Start.
func (session *Session) Close() error {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	if session.closed {
		return nil
	}
	session.closed = true
	session.teardownLocked("closed")
	return nil
}

func (session *Session) startLocked(root string) (*watch, error) {
	current := &watch{
		path:      root,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now().UTC(),
	}
	source, err := NewSource(root, SourceOptions{
		Logger:  session.logger,
		Metrics: session.metrics,
		Ignore:  session.ignore,
		Buffer:  session.eventBuffer,
		OnError: func(err *NotificationError) {
			current.runtimeErr.Store(err)
		},
	})
	if err != nil {
		return nil, err
	}
	current.source = source

	debounced := make(chan Event, session.eventBuffer)
	debouncer := newDebouncer(session.debounce, session.metrics)
	forwarder := &forwarder{
		emitter: session.emitter,
		logger:  session.logger,
		metrics: session.metrics,
		root:    root,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		debouncer.run(source.Events(), debounced, current.stop)
	}()
	go func() {
		defer wg.Done()
		forwarder.run(debounced, current.stop)
	}()
	go func() {
		wg.Wait()
		close(current.done)
		if current.dark() {
			session.logger.Warn("watch went dark", map[string]string{
				"path":  root,
				"error": errorString(source.Err()),
			})
		}
	}()
	return current, nil
}

func (session *Session) teardownLocked(reason string) {
	current := session.current
	if current == nil {
		return
	}
	session.setStateLocked(StateStopping, current.path)
	current.shutdown()
	session.current = nil
	session.metrics.IncWatchStopped()
	session.setStateLocked(StateInactive, current.path)
	session.logger.Info("watch stopped", map[string]string{
		"path":     current.path,
		"reason":   reason,
		"duration": time.Since(current.startedAt).Round(time.Millisecond).String(),
	})
}

func (session *Session) reapLocked() {
	current := session.current
	if current == nil || !current.dark() {
		return
	}
	cause := current.source.Err()
	if cause == nil {
		cause = &NotificationError{Path: current.path, Err: ErrWatcherTerminated}
	}
	session.metrics.IncWatchDark()
	session.teardownLocked("terminated")
	session.lastErr = cause
}

func (session *Session) setStateLocked(state State, path string) {
	if session.state == state {
		return
	}
	session.logger.Debug("watch state changed", map[string]string{
		"path": path,
		"from": string(session.state),
		"to":   string(state),
	})
	session.state = state
}

// validateDirectory resolves path to an absolute directory.
func validateDirectory(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &ValidationError{Path: path, Err: ErrEmptyPath}
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return "", &ValidationError{Path: path, Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &ValidationError{Path: root, Err: ErrPathNotFound}
		}
		return "", &SetupError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return "", &ValidationError{Path: root, Err: ErrNotDirectory}
	}
	return root, nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
