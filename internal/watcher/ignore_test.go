package watcher

import (
	"path/filepath"
	"testing"
)

func TestIgnoreMatcherDefaults(t *testing.T) {
	matcher, err := NewIgnoreMatcher(DefaultIgnorePatterns)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	root := filepath.FromSlash("/notes")

	ignored := []string{
		"/notes/.git/HEAD",
		"/notes/.git/objects/ab/cdef",
		"/notes/sub/.DS_Store",
		"/notes/.a.md.swp",
		"/notes/draft.md~",
		"/notes/.#draft.md",
	}
	for _, path := range ignored {
		if !matcher.Match(root, filepath.FromSlash(path)) {
			t.Fatalf("expected %q to be ignored", path)
		}
	}

	kept := []string{
		"/notes/a.md",
		"/notes/sub/b.markdown",
		"/notes/.github/workflow.yml",
		"/notes",
	}
	for _, path := range kept {
		if matcher.Match(root, filepath.FromSlash(path)) {
			t.Fatalf("expected %q to be kept", path)
		}
	}
}

func TestIgnoreMatcherDirectory(t *testing.T) {
	matcher, err := NewIgnoreMatcher([]string{"**/.git/**", "/build/**"})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	root := filepath.FromSlash("/notes")

	if !matcher.MatchDir(root, filepath.FromSlash("/notes/.git")) {
		t.Fatal("expected .git directory to be ignored")
	}
	if !matcher.MatchDir(root, filepath.FromSlash("/notes/build")) {
		t.Fatal("expected build directory to be ignored")
	}
	if matcher.Match(root, filepath.FromSlash("/notes/build")) {
		t.Fatal("expected plain match not to treat build as a directory")
	}
	if matcher.MatchDir(root, filepath.FromSlash("/notes/sub/build")) {
		t.Fatal("expected anchored pattern to skip nested build directory")
	}
}

func TestIgnoreMatcherRejectsBadPattern(t *testing.T) {
	if _, err := NewIgnoreMatcher([]string{"[unclosed"}); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestIgnoreMatcherNilAndEmpty(t *testing.T) {
	var matcher *IgnoreMatcher
	if matcher.Match("/notes", "/notes/.git/HEAD") {
		t.Fatal("expected nil matcher to ignore nothing")
	}
	empty, err := NewIgnoreMatcher([]string{"", "  "})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	if len(empty.Patterns()) != 0 {
		t.Fatalf("expected blank patterns to be skipped, got %v", empty.Patterns())
	}
}
