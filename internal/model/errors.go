package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated means there is no current identity; the caller
	// must redirect to login before retrying.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotFound means a referenced conversation or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTimeout means a remote call exceeded its bounded wait. The engine
	// never retries on its own; retry policy belongs to the caller.
	ErrTimeout = errors.New("remote call timed out")
)

// CodecError reports malformed or undecryptable content. Callers recover by
// displaying the raw input instead of failing the whole operation.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// RemoteError wraps a failure from the remote document store, preserving
// whether it happened on the read or the write path.
type RemoteError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
