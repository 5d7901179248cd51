package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Compilation error codes (E200-E209).
const (
	ErrCodeUnsupportedShape   = "E200" // constraint variant is neither single nor multiple
	ErrCodeNoIndexType        = "E201" // neither operand carries a type
	ErrCodeMissingCallScope   = "E202" // method call on the right has no receiver
	ErrCodeMissingLeftOperand = "E203" // decode kind present without a left operand
)

// Rule file decoding error code.
const ErrCodeDecode = "E120"

// CompileError represents a failure to compile a constraint or decode a
// rule file. Constraint holds the constraint's source text when known.
type CompileError struct {
	Code       string
	Field      string
	Message    string
	Constraint string
	Pos        token.Pos
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint %q)", e.Constraint)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	}
	return msg
}

// IsStructuralDefect reports whether err is an invariant violation left by
// an earlier stage: a missing index type, a receiverless call, or a decode
// kind without a left operand.
func IsStructuralDefect(err error) bool {
	var ce *CompileError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Code {
	case ErrCodeNoIndexType, ErrCodeMissingCallScope, ErrCodeMissingLeftOperand:
		return true
	}
	return false
}

// IsUnsupported reports whether err rejects an unknown constraint variant.
func IsUnsupported(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Code == ErrCodeUnsupportedShape
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	ce := &CompileError{
		Code:    ErrCodeDecode,
		Field:   "cue",
		Message: firstErr.Error(),
	}
	if positions := cueerrors.Positions(firstErr); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
