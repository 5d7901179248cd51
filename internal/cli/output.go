package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue/token"

	"github.com/roach88/ruleidx/internal/compiler"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Test/validation failure (scenarios failed, invalid rules)
	ExitCommandError = 2 // Command error (invalid paths, database not found, compile errors)
)

// ExitError carries the process exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
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

// CLIResponse is the JSON envelope every command writes in json format.
type CLIResponse struct {
	Status string      `json:"status"`           // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`   // payload, also set on failures that have a partial result
	Error  *CLIError   `json:"error,omitempty"`  // first error
	RunID  string      `json:"run_id,omitempty"` // catalog run the output was recorded under
}

// CLIError is one error in a CLIResponse.
type CLIError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Position   string      `json:"position,omitempty"`   // file:line:col in the rule sources
	Constraint string      `json:"constraint,omitempty"` // source text of the offending constraint
	Details    interface{} `json:"details,omitempty"`
}

// cliErrorFor maps a load, decode, compile or validation error to its
// CLIError, keeping the rule source position and constraint text when the
// error carries them.
func cliErrorFor(err error) CLIError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return CLIError{
			Code:       compileErr.Code,
			Message:    err.Error(),
			Position:   position(compileErr.Pos),
			Constraint: compileErr.Constraint,
		}
	}
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return CLIError{
			Code:     loadErr.Code,
			Message:  loadErr.Message,
			Position: position(loadErr.Pos),
		}
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return CLIError{
			Code:       validationErr.Code,
			Message:    err.Error(),
			Constraint: validationErr.Constraint,
		}
	}
	return CLIError{Code: compiler.ErrCodeGeneric, Message: err.Error()}
}

func position(pos token.Pos) string {
	if !pos.IsValid() {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column())
}

// writeEnvelope encodes resp as indented JSON.
func writeEnvelope(w io.Writer, resp CLIResponse) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose and log output, defaults to Writer
	Verbose   bool
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	return f.SuccessWithRun(data, "")
}

// SuccessWithRun is Success tagged with the catalog run id, if any.
func (f *OutputFormatter) SuccessWithRun(data interface{}, runID string) error {
	if f.Format == "json" {
		return writeEnvelope(f.Writer, CLIResponse{Status: "ok", Data: data, RunID: runID})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs a single error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	return f.Failure(nil, CLIError{Code: code, Message: message, Details: details})
}

// Failure outputs errs in the configured format. In json format the first
// error becomes the envelope's error and data is carried alongside it.
// In text format each error is written as an optional position line
// followed by its code and message.
func (f *OutputFormatter) Failure(data interface{}, errs ...CLIError) error {
	if len(errs) == 0 {
		return errors.New("failure reported without errors")
	}
	if f.Format == "json" {
		return writeEnvelope(f.Writer, CLIResponse{Status: "error", Data: data, Error: &errs[0]})
	}

	for _, e := range errs {
		if e.Position != "" {
			fmt.Fprintln(f.Writer, e.Position)
		}
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
		if f.Verbose && e.Details != nil {
			fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
		}
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled. It writes
// to ErrWriter so JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
