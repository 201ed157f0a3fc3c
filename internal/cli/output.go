package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/restbridge/internal/postgrest"
	"github.com/roach88/restbridge/internal/registry"
	"github.com/roach88/restbridge/internal/rest"
	"github.com/roach88/restbridge/internal/syncer"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Remote or validation failure (rejected filter, failed sync, ...)
	ExitCommandError = 2 // Command error (bad flags, unreadable input, missing config, ...)
)

// Error codes reported in CLI responses. Registry load errors carry their
// own codes (registry.ErrCode*).
const (
	ErrCodeGeneric      = "E001"
	ErrCodeNotFound     = "E005"
	ErrCodeConfig       = "E301"
	ErrCodeInput        = "E302"
	ErrCodeRemote       = "E303"
	ErrCodePrecondition = "E304"
)

// ExitError carries an exit code out of a command.
type ExitError struct {
	Code    int // ExitFailure or ExitCommandError
	Message string
	Err     error // optional
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as JSON or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. Text output prints data with fmt unless the command
// rendered its own text first.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetEscapeHTML(false)
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes an error response.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes to ErrWriter in verbose mode.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err and returns the matching ExitError. Usage errors
// (bad input, config) exit 2; remote and validation failures exit 1.
func (f *OutputFormatter) Fail(err error) error {
	code, exit, details := classify(err)
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(exit, code, err)
}

func classify(err error) (code string, exit int, details any) {
	var (
		loadErr    *registry.LoadError
		filterErr  *registry.FilterError
		unknownErr *registry.UnknownResourceError
		inputErr   *inputError
		configErr  *configError
	)
	switch {
	case errors.As(err, &inputErr):
		return ErrCodeInput, ExitCommandError, nil
	case errors.As(err, &configErr):
		return ErrCodeConfig, ExitCommandError, nil
	case errors.As(err, &loadErr):
		return loadErr.Code, ExitCommandError, nil
	case errors.As(err, &unknownErr):
		return registry.ErrCodeUnknown, ExitCommandError, nil
	case errors.As(err, &filterErr):
		return registry.ErrCodeInvalid, ExitFailure, filterErr.Keys
	case syncer.IsPrecondition(err):
		return ErrCodePrecondition, ExitFailure, nil
	case errors.Is(err, rest.ErrNotFound):
		return ErrCodeNotFound, ExitFailure, nil
	}
	if pe, ok := postgrest.AsError(err); ok {
		if pe.Structured() {
			return ErrCodeRemote, ExitFailure, pe.Payload
		}
		return ErrCodeRemote, ExitFailure, pe.Code
	}
	return ErrCodeGeneric, ExitFailure, nil
}

// inputError marks unreadable or malformed command input.
type inputError struct{ err error }

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

// configError marks missing or invalid configuration.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }
