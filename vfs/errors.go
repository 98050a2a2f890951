package vfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotExist indicates a path or one of its parents doesn't exist
	ErrNotExist = errors.New("path not found")

	// ErrExist indicates the path already exists
	ErrExist = errors.New("path already exists")

	// ErrNotDir indicates a directory was required
	ErrNotDir = errors.New("not a directory")

	// ErrIsDir indicates a non-directory was required
	ErrIsDir = errors.New("is a directory")

	// ErrNotEmpty indicates attempt to remove a non-empty directory
	ErrNotEmpty = errors.New("directory not empty")

	// ErrReadOnly indicates attempt to modify lazily fetched content
	ErrReadOnly = errors.New("content is read-only")

	// ErrInvalidPath indicates a path that names no entry, such as ""
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidOffset indicates a negative offset or size
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrTooLarge indicates content would grow past MaxFileSize
	ErrTooLarge = errors.New("file too large")
)

// Common operation names for consistent error reporting
const (
	OpLookup = "lookup"
	OpCreate = "create"
	OpMkdir  = "mkdir"
	OpRemove = "remove"
	OpRead   = "read"
	OpWrite  = "write"
	OpResize = "resize"
)

// Error wraps filesystem errors with the operation and affected path.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("vfs %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("vfs %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}
