package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrEmptyTaskID   = errors.New("task id is required")
	ErrUnknownHandle = errors.New("unknown or released subscription handle")
	ErrEngineClosed  = errors.New("sync engine is closed")
)

// ParseError reports a snapshot payload that failed structural validation.
type ParseError struct {
	TaskID string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.TaskID != "" && e.Field != "":
		return fmt.Sprintf("parse task %s: field %s: %v", e.TaskID, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("parse task: field %s: %v", e.Field, e.Err)
	case e.TaskID != "":
		return fmt.Sprintf("parse task %s: %v", e.TaskID, e.Err)
	default:
		return fmt.Sprintf("parse task: %v", e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// FetchError is a transport failure, timeout or non-success response from the remote service.
// StatusCode is zero when no response was received.
type FetchError struct {
	Op         string
	TaskID     string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Op, e.TaskID, e.StatusCode, http.StatusText(e.StatusCode), msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.TaskID, msg)
}

func (e *FetchError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound && e.Err == nil {
		return ErrTaskNotFound
	}
	return e.Err
}

// NotFound reports whether the remote service answered 404.
func (e *FetchError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ResolveError wraps a failed download grant request.
type ResolveError struct {
	TaskID string
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve download for task %s: %v", e.TaskID, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// ValidationError rejects a create request before any task exists.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task request: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
