package resolve

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes resolution failures.
type ErrorCode string

const (
	// ErrCodeUnknownGraphKey indicates a graph_key with no stored expression.
	ErrCodeUnknownGraphKey ErrorCode = "UNKNOWN_GRAPH_KEY"

	// ErrCodeKeysNotConfigured indicates a graph_key request on a resolver
	// built without a KeySource.
	ErrCodeKeysNotConfigured ErrorCode = "GRAPH_KEYS_NOT_CONFIGURED"

	// ErrCodeCipherNotConfigured indicates a graph_cipher request on a
	// resolver built without a secret.
	ErrCodeCipherNotConfigured ErrorCode = "CIPHER_NOT_CONFIGURED"
)

// ResolveError reports why a request could not be turned into a graph
// expression.
type ResolveError struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the error's code as a plain string.
func (e *ResolveError) ErrorCode() string {
	return string(e.Code)
}

// IsCode reports whether err is a ResolveError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
