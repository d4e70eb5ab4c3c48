package watcher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultIgnorePatterns skip VCS metadata and editor scratch files.
var DefaultIgnorePatterns = []string{
	"**/.git/**",
	"**/.DS_Store",
	"**/*.swp",
	"**/*.swx",
	"**/*~",
	"**/.#*",
}

// IgnoreMatcher filters paths by glob patterns relative to the watch root.
// Patterns use '/' as separator; "**" crosses directories.
type IgnoreMatcher struct {
	patterns []string
	globs    []glob.Glob
}

func NewIgnoreMatcher(patterns []string) (*IgnoreMatcher, error) {
	matcher := &IgnoreMatcher{}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile ignore pattern %q: %w", pattern, err)
		}
		matcher.patterns = append(matcher.patterns, pattern)
		matcher.globs = append(matcher.globs, compiled)
	}
	return matcher, nil
}

func (m *IgnoreMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Match reports whether path, below root, is ignored.
func (m *IgnoreMatcher) Match(root, path string) bool {
	return m.match(root, path, false)
}

// MatchDir is Match for a directory: "dir/**" patterns also cover dir itself.
func (m *IgnoreMatcher) MatchDir(root, path string) bool {
	return m.match(root, path, true)
}

func (m *IgnoreMatcher) match(root, path string, isDir bool) bool {
	if m == nil || len(m.globs) == 0 {
		return false
	}
	candidate := relativeSlashPath(root, path)
	base := filepath.Base(path)
	for _, compiled := range m.globs {
		if compiled.Match(candidate) || compiled.Match(base) {
			return true
		}
		if isDir && compiled.Match(candidate+"/") {
			return true
		}
	}
	return false
}

// relativeSlashPath renders path relative to root with a leading slash, so
// "**/name" also matches entries directly under the root.
func relativeSlashPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	if rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}
