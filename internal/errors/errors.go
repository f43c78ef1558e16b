package errors

import (
	"fmt"
)

// FailKind classifies per-call invocation failures. These are returned to
// the one request that triggered them and never terminate the server.
type FailKind string

const (
	FailUnknownTool     FailKind = "unknown_tool"
	FailMissingArgument FailKind = "missing_argument"
	FailTypeMismatch    FailKind = "type_mismatch"
	FailTimeout         FailKind = "timeout"
	FailBackendError    FailKind = "backend_error"
	FailRuntimeError    FailKind = "runtime_error"
)

// DetectionError reports that a project could not be analyzed at all:
// the root is unreadable or nothing in it resembles a callable surface.
// An empty tool list from a readable project is not a DetectionError.
type DetectionError struct {
	Path       string
	Reason     string
	Underlying error
}

// NewDetectionError creates a detection error for a project root.
func NewDetectionError(path, reason string, err error) *DetectionError {
	return &DetectionError{Path: path, Reason: reason, Underlying: err}
}

func (e *DetectionError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("detection failed for %s: %s: %v", e.Path, e.Reason, e.Underlying)
	}
	return fmt.Sprintf("detection failed for %s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *DetectionError) Unwrap() error {
	return e.Underlying
}

// SchemaError reports a persisted configuration that is malformed at the
// document level (unreadable file, invalid JSON, wrong shape). Semantic
// inconsistencies in a well-shaped document are the validator's job.
type SchemaError struct {
	Path       string
	Underlying error
}

// NewSchemaError creates a schema error for a configuration document.
func NewSchemaError(path string, err error) *SchemaError {
	return &SchemaError{Path: path, Underlying: err}
}

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid configuration %s: %v", e.Path, e.Underlying)
	}
	return fmt.Sprintf("invalid configuration: %v", e.Underlying)
}

// Unwrap returns the underlying error
func (e *SchemaError) Unwrap() error {
	return e.Underlying
}
