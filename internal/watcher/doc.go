// Package watcher turns raw filesystem notifications for one directory tree
// into a debounced stream of change notifications for the editor UI.
//
// A Session owns at most one active watch. Each watch is a pipeline of three
// goroutines: a Source reading fsnotify events, a debouncer coalescing them
// per path, and a forwarder relaying the result to an Emitter. Stopping or
// replacing a watch closes the pipeline and joins all three goroutines before
// returning, so no notification from a stopped watch reaches the Emitter.
//
// Event kinds are create, modify, remove, rename and other. A rename is
// reported as a rename on the old path followed by a create on the new path.
// The debouncer emits one event per distinct path once that path has been
// quiet for the debounce window; see mergeKind for how kinds combine.
package watcher
