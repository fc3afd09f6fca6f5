package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTransient    = errors.New("transient external failure")
	ErrInternal     = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// StageError is fatal to the current run: a stage precondition failed (no
// inputs for the range, missing prior-stage output). It names the stage and
// the filesystem location that was checked so the run can be fixed and
// resumed from the same point.
type StageError struct {
	Stage int
	Name  string
	Path  string
	Cause error
}

func (e *StageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("stage %d (%s) failed at %s: %v", e.Stage, e.Name, e.Path, e.Cause)
	}
	return fmt.Sprintf("stage %d (%s) failed: %v", e.Stage, e.Name, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

func NewStageError(stage int, name, path string, cause error) *StageError {
	return &StageError{Stage: stage, Name: name, Path: path, Cause: cause}
}
