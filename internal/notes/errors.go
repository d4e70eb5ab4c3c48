package notes

import (
	"errors"
	"fmt"
)

var (
	ErrNotExist     = errors.New("path does not exist")
	ErrExist        = errors.New("path already exists")
	ErrIsDirectory  = errors.New("path is a directory")
	ErrNotDirectory = errors.New("path is not a directory")
	ErrInvalidUTF8  = errors.New("file is not valid UTF-8")
	ErrEmptyPath    = errors.New("path is required")
)

// PathError records the operation and path that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
