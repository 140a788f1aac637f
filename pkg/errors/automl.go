package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// FileNotFoundError is returned when a dataset path does not exist or cannot be opened.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tabautoml: file not found: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("tabautoml: file not found: %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *FileNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).Str("type", "FileNotFoundError")
}

// NewFileNotFoundError creates a FileNotFoundError with a stack trace.
func NewFileNotFoundError(path string, cause error) error {
	return errors.WithStack(&FileNotFoundError{Path: path, Err: cause})
}

// UnsupportedFileFormatError is returned when no reader is registered for an extension.
type UnsupportedFileFormatError struct {
	Name      string
	Extension string
	Supported []string
}

func (e *UnsupportedFileFormatError) Error() string {
	ext := e.Extension
	if ext == "" {
		ext = "<none>"
	}
	return fmt.Sprintf("tabautoml: unsupported file format %q for %q (supported: %s)",
		ext, e.Name, strings.Join(e.Supported, ", "))
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnsupportedFileFormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("name", e.Name).
		Str("extension", e.Extension).
		Strs("supported", e.Supported).
		Str("type", "UnsupportedFileFormatError")
}

// NewUnsupportedFileFormatError creates an UnsupportedFileFormatError with a stack trace.
func NewUnsupportedFileFormatError(name, ext string, supported []string) error {
	return errors.WithStack(&UnsupportedFileFormatError{Name: name, Extension: ext, Supported: supported})
}

// ColumnNotFoundError is returned when a requested index or target column is absent.
type ColumnNotFoundError struct {
	Column string
	Role   string // "index", "target", "feature"
}

func (e *ColumnNotFoundError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("tabautoml: column %q not found", e.Column)
	}
	return fmt.Sprintf("tabautoml: %s column %q not found", e.Role, e.Column)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ColumnNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).Str("role", e.Role).Str("type", "ColumnNotFoundError")
}

// NewColumnNotFoundError creates a ColumnNotFoundError with a stack trace.
func NewColumnNotFoundError(column, role string) error {
	return errors.WithStack(&ColumnNotFoundError{Column: column, Role: role})
}

// TaskTypeRequiredError is returned when no task type label was given.
type TaskTypeRequiredError struct{}

func (e *TaskTypeRequiredError) Error() string {
	return "tabautoml: task type is required"
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *TaskTypeRequiredError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "TaskTypeRequiredError")
}

// NewTaskTypeRequiredError creates a TaskTypeRequiredError with a stack trace.
func NewTaskTypeRequiredError() error {
	return errors.WithStack(&TaskTypeRequiredError{})
}

// UnsupportedTaskTypeError is returned for a task label outside the supported set.
type UnsupportedTaskTypeError struct {
	TaskType  string
	Supported []string
}

func (e *UnsupportedTaskTypeError) Error() string {
	return fmt.Sprintf("tabautoml: unsupported task type %q (supported: %s)",
		e.TaskType, strings.Join(e.Supported, ", "))
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnsupportedTaskTypeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("task_type", e.TaskType).
		Strs("supported", e.Supported).
		Str("type", "UnsupportedTaskTypeError")
}

// NewUnsupportedTaskTypeError creates an UnsupportedTaskTypeError with a stack trace.
func NewUnsupportedTaskTypeError(taskType string, supported []string) error {
	return errors.WithStack(&UnsupportedTaskTypeError{TaskType: taskType, Supported: supported})
}

// StageError is returned when a stage is called before the stage it depends on.
type StageError struct {
	Stage    string
	Requires string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("tabautoml: %s: %s must be called first", e.Stage, e.Requires)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *StageError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).Str("requires", e.Requires).Str("type", "StageError")
}

// NewStageError creates a StageError with a stack trace.
func NewStageError(stage, requires string) error {
	return errors.WithStack(&StageError{Stage: stage, Requires: requires})
}
