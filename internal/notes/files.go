// Package notes implements the file operations the editor runs against a
// notes directory: listing, reading, writing and reorganizing files.
package notes

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

var markdownExtensions = []string{".md", ".markdown", ".mdown"}

// FileItem is one directory entry as shown in the file tree.
type FileItem struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDirectory bool   `json:"is_directory"`
	IsMarkdown  bool   `json:"is_markdown"`
}

// IsMarkdown reports whether name has a markdown extension, ignoring case.
func IsMarkdown(name string) bool {
	lower := strings.ToLower(name)
	for _, extension := range markdownExtensions {
		if strings.HasSuffix(lower, extension) {
			return true
		}
	}
	return false
}

// ReadDirectory lists the entries of dir with directories first, then by
// case-insensitive name.
func ReadDirectory(dir string) ([]FileItem, error) {
	if err := requireDirectory("read directory", dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrap("read directory", dir, err)
	}

	items := make([]FileItem, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		isDirectory := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil {
				isDirectory = info.IsDir()
			}
		}
		items = append(items, FileItem{
			Name:        entry.Name(),
			Path:        path,
			IsDirectory: isDirectory,
			IsMarkdown:  !isDirectory && IsMarkdown(entry.Name()),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDirectory != items[j].IsDirectory {
			return items[i].IsDirectory
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// ReadFile returns the UTF-8 contents of path.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", &PathError{Op: "read file", Path: path, Err: ErrEmptyPath}
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "", &PathError{Op: "read file", Path: path, Err: ErrIsDirectory}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", wrap("read file", path, err)
	}
	if !utf8.Valid(data) {
		return "", &PathError{Op: "read file", Path: path, Err: ErrInvalidUTF8}
	}
	return string(data), nil
}

// WriteFile replaces the contents of path, creating missing parent
// directories.
func WriteFile(path, content string) error {
	if path == "" {
		return &PathError{Op: "write file", Path: path, Err: ErrEmptyPath}
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return &PathError{Op: "write file", Path: path, Err: ErrIsDirectory}
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return wrap("write file", path, err)
	}
	if err := os.WriteFile(path, []byte(content), fileMode); err != nil {
		return wrap("write file", path, err)
	}
	return nil
}

// CreateFile writes an empty file at path.
func CreateFile(path string) error {
	return WriteFile(path, "")
}

// CreateDirectory creates path and any missing parents.
func CreateDirectory(path string) error {
	if path == "" {
		return &PathError{Op: "create directory", Path: path, Err: ErrEmptyPath}
	}
	if err := os.MkdirAll(path, dirMode); err != nil {
		return wrap("create directory", path, err)
	}
	return nil
}

// DeleteFile removes a regular file. Directories are refused.
func DeleteFile(path string) error {
	info, err := stat("delete file", path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &PathError{Op: "delete file", Path: path, Err: ErrIsDirectory}
	}
	if err := os.Remove(path); err != nil {
		return wrap("delete file", path, err)
	}
	return nil
}

// DeleteDirectory removes a directory and everything below it.
func DeleteDirectory(path string) error {
	if err := requireDirectory("delete directory", path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return wrap("delete directory", path, err)
	}
	return nil
}

// RenamePath moves oldPath to newPath. The destination must not exist.
func RenamePath(oldPath, newPath string) error {
	if _, err := stat("rename", oldPath); err != nil {
		return err
	}
	if newPath == "" {
		return &PathError{Op: "rename", Path: newPath, Err: ErrEmptyPath}
	}
	if _, err := os.Lstat(newPath); err == nil {
		return &PathError{Op: "rename", Path: newPath, Err: ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return wrap("rename", newPath, err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return wrap("rename", oldPath, err)
	}
	return nil
}

func requireDirectory(op, path string) error {
	info, err := stat(op, path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &PathError{Op: op, Path: path, Err: ErrNotDirectory}
	}
	return nil
}

func stat(op, path string) (fs.FileInfo, error) {
	if path == "" {
		return nil, &PathError{Op: op, Path: path, Err: ErrEmptyPath}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, wrap(op, path, err)
	}
	return info, nil
}

// wrap maps os errors onto the package sentinels where one applies.
func wrap(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &PathError{Op: op, Path: path, Err: ErrNotExist}
	case errors.Is(err, fs.ErrExist):
		return &PathError{Op: op, Path: path, Err: ErrExist}
	default:
		return &PathError{Op: op, Path: path, Err: err}
	}
}
