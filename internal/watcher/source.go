package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"marknote/internal/logging"
	"marknote/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

const defaultRawBuffer = 64

// SourceOptions configures a Source.
type SourceOptions struct {
	Logger  *logging.Logger
	Metrics *metrics.Registry
	Ignore  *IgnoreMatcher
	// Buffer sizes the raw event channel.
	Buffer int
	// OnError receives runtime errors that do not end the watch.
	OnError func(*NotificationError)
}

// Source watches one directory tree through a single fsnotify watcher and
// publishes RawEvents. Directories created under the root are added as they
// appear. The Events channel is closed once the read loop exits, either after
// Close or when the underlying watcher terminates.
type Source struct {
	root      string
	watcher   *fsnotify.Watcher
	events    chan RawEvent
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
	closeErr  error
	mutex     sync.Mutex
	err       error
	logger    *logging.Logger
	metrics   *metrics.Registry
	ignore    *IgnoreMatcher
	onError   func(*NotificationError)
}

// NewSource starts watching root recursively. root must be an absolute path
// to an existing directory.
func NewSource(root string, options SourceOptions) (*Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &SetupError{Path: root, Err: ErrNotDirectory}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}

	buffer := options.Buffer
	if buffer <= 0 {
		buffer = defaultRawBuffer
	}

	source := &Source{
		root:    root,
		watcher: fsWatcher,
		events:  make(chan RawEvent, buffer),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		logger:  options.Logger,
		metrics: options.Metrics,
		ignore:  options.Ignore,
		onError: options.OnError,
	}

	if _, err := source.addTree(root, false); err != nil {
		_ = fsWatcher.Close()
		return nil, &SetupError{Path: root, Err: err}
	}

	go source.run()
	return source, nil
}

func (source *Source) Events() <-chan RawEvent {
	return source.events
}

// Err returns the error that terminated the source, if any.
func (source *Source) Err() error {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	return source.err
}

// Done is closed once the read loop has exited.
func (source *Source) Done() <-chan struct{} {
	return source.exited
}

// Close releases the OS watch and waits for the read loop to exit.
func (source *Source) Close() error {
	source.closeOnce.Do(func() {
		close(source.done)
		source.closeErr = source.watcher.Close()
		<-source.exited
	})
	return source.closeErr
}

func (source *Source) run() {
	defer close(source.exited)
	defer close(source.events)

	for {
		select {
		case <-source.done:
			return
		case event, ok := <-source.watcher.Events:
			if !ok {
				source.terminate(ErrWatcherTerminated)
				return
			}
			if !source.handleEvent(event) {
				return
			}
		case err, ok := <-source.watcher.Errors:
			if !ok {
				source.terminate(ErrWatcherTerminated)
				return
			}
			source.handleError(err)
		}
	}
}

// handleEvent translates and publishes one fsnotify event. It returns false
// when the read loop should stop.
func (source *Source) handleEvent(event fsnotify.Event) bool {
	if event.Name == "" {
		return true
	}
	if source.ignore.Match(source.root, event.Name) {
		source.metrics.IncIgnoredEvent()
		return true
	}

	kind := kindFromOp(event.Op)
	now := time.Now().UTC()

	if filepath.Clean(event.Name) == source.root && (kind == KindRemove || kind == KindRename) {
		source.send(RawEvent{Kind: kind, Paths: []string{event.Name}, Time: now})
		source.terminate(ErrRootRemoved)
		return false
	}

	if !source.send(RawEvent{Kind: kind, Paths: []string{event.Name}, Time: now}) {
		return false
	}

	if kind == KindCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return source.watchNewDirectory(event.Name)
		}
	}
	return true
}

// watchNewDirectory adds a freshly created directory and reports entries that
// appeared inside it before its watch was in place.
func (source *Source) watchNewDirectory(dir string) bool {
	if source.ignore.MatchDir(source.root, dir) {
		return true
	}
	found, err := source.addTree(dir, true)
	if err != nil {
		source.logger.Warn("watch add failed", map[string]string{
			"path":  dir,
			"error": err.Error(),
		})
		return true
	}
	now := time.Now().UTC()
	for _, path := range found {
		if !source.send(RawEvent{Kind: KindCreate, Paths: []string{path}, Time: now}) {
			return false
		}
	}
	return true
}

// addTree adds root and every non-ignored directory below it to the OS
// watcher. With collect set it returns the entries found below root.
func (source *Source) addTree(root string, collect bool) ([]string, error) {
	var found []string
	added := 0
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			source.logger.Warn("watch walk failed", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}
		if path != root {
			if entry.IsDir() && source.ignore.MatchDir(source.root, path) {
				return filepath.SkipDir
			}
			if !entry.IsDir() && source.ignore.Match(source.root, path) {
				return nil
			}
			if collect {
				found = append(found, path)
			}
		}
		if !entry.IsDir() {
			return nil
		}
		if err := source.watcher.Add(path); err != nil {
			if path != root && errors.Is(err, fs.ErrPermission) {
				source.logger.Warn("watch add skipped", map[string]string{
					"path":  path,
					"error": err.Error(),
				})
				return filepath.SkipDir
			}
			return err
		}
		added++
		return nil
	})
	if err != nil {
		return nil, err
	}
	source.logger.Debug("watch tree added", map[string]string{
		"path":        root,
		"directories": strconv.Itoa(added),
	})
	return found, nil
}

func (source *Source) send(event RawEvent) bool {
	select {
	case source.events <- event:
		source.metrics.IncRawEvents(1)
		return true
	case <-source.done:
		return false
	}
}

func (source *Source) handleError(err error) {
	if err == nil {
		return
	}
	source.metrics.IncRuntimeError()
	notificationErr := &NotificationError{Path: source.root, Err: err}
	source.logger.Warn("watcher error", map[string]string{
		"path":     source.root,
		"error":    err.Error(),
		"overflow": strconv.FormatBool(errors.Is(err, fsnotify.ErrEventOverflow)),
	})
	if source.onError != nil {
		source.onError(notificationErr)
	}
}

// terminate records why the source ended on its own. It is a no-op once
// Close has been called.
func (source *Source) terminate(cause error) {
	select {
	case <-source.done:
		return
	default:
	}
	source.mutex.Lock()
	if source.err == nil {
		source.err = &NotificationError{Path: source.root, Err: cause}
	}
	source.mutex.Unlock()
	source.logger.Warn("watcher terminated", map[string]string{
		"path":  source.root,
		"error": cause.Error(),
	})
}
