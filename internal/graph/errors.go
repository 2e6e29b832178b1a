package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes syntax errors.
type ErrorCode string

const (
	// ErrCodeMalformedExpression indicates unbalanced delimiters, empty items,
	// invalid names or non-numeric pagination.
	ErrCodeMalformedExpression ErrorCode = "MALFORMED_EXPRESSION"

	// ErrCodeMalformedCondition indicates a filter clause with no recognised
	// operator or no column.
	ErrCodeMalformedCondition ErrorCode = "MALFORMED_CONDITION"

	// ErrCodeUnknownAggregateKind indicates an aggregate suffix that is
	// neither count nor sum.
	ErrCodeUnknownAggregateKind ErrorCode = "UNKNOWN_AGGREGATE_KIND"
)

// SyntaxError reports where and why an expression failed to parse.
type SyntaxError struct {
	Code    ErrorCode
	Message string

	// Pos is the byte offset into Input.
	Pos   int
	Input string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s (at offset %d)", e.Code, e.Message, e.Pos)
}

// ErrorCode returns the error's code as a plain string.
func (e *SyntaxError) ErrorCode() string {
	return string(e.Code)
}

// IsCode reports whether err is a SyntaxError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func syntaxErr(code ErrorCode, pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// withInput attaches the full expression to a SyntaxError on its way out of
// Parse. Other errors pass through unchanged.
func withInput(err error, input string) error {
	var se *SyntaxError
	if errors.As(err, &se) {
		se.Input = input
	}
	return err
}
