// Package errors provides structured error types for cratesieve.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the vendoring pipeline
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages naming the offending crate, path, or rule
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - CONFIG_*: contradictory or unsupported policy input
//   - GRAPH_*: inconsistencies in the resolved dependency graph
//   - FILESYSTEM_*: copy/delete/write failures while building the tree
//   - CHECKSUM_*: missing or unreadable crate checksum manifests
//   - ARCHIVE_*: packaging and external compressor failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfigPlatform, "multiple exact platforms: %s, %s", a, b)
//	if errors.Is(err, errors.ErrCodeConfigPlatform) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFilesystem, origErr, "copy crate %s", name)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors, reported before any filesystem work begins.
	ErrCodeConfig         Code = "CONFIG_ERROR"
	ErrCodeConfigPlatform Code = "CONFIG_PLATFORM"
	ErrCodeConfigTier     Code = "CONFIG_TIER"
	ErrCodeConfigDepKinds Code = "CONFIG_DEP_KINDS"
	ErrCodeConfigExclude  Code = "CONFIG_EXCLUDE"
	ErrCodeConfigFormat   Code = "CONFIG_FORMAT"

	// Dependency graph errors.
	ErrCodeGraph           Code = "GRAPH_ERROR"
	ErrCodeGraphMetadata   Code = "GRAPH_METADATA"
	ErrCodeGraphMissingPkg Code = "GRAPH_MISSING_PACKAGE"
	ErrCodeGraphSourcePath Code = "GRAPH_SOURCE_PATH"

	// Filesystem errors while copying, pruning, or writing.
	ErrCodeFilesystem Code = "FILESYSTEM_ERROR"

	// Checksum manifest errors.
	ErrCodeChecksum Code = "CHECKSUM_ERROR"

	// Archive and compressor errors.
	ErrCodeArchive           Code = "ARCHIVE_ERROR"
	ErrCodeArchiveCompressor Code = "ARCHIVE_COMPRESSOR"
	ErrCodeArchiveEpoch      Code = "ARCHIVE_EPOCH"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsCategory reports whether err belongs to the category identified by the
// given code prefix (e.g. "CONFIG", "ARCHIVE"). Category membership is
// determined by the first underscore-delimited component of the code.
func IsCategory(err error, category string) bool {
	code := string(GetCode(err))
	if code == "" {
		return false
	}
	prefix, _, found := strings.Cut(code, "_")
	if !found {
		return code == category
	}
	return prefix == category
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
