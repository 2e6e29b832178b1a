package plan

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes plan compilation failures.
type ErrorCode string

const (
	// ErrCodeMissingSumField indicates a sum aggregate without a field.
	ErrCodeMissingSumField ErrorCode = "MISSING_SUM_FIELD"

	// ErrCodeUnqueryableColumn indicates a filter or sum on a column outside
	// the target entity's allow-list.
	ErrCodeUnqueryableColumn ErrorCode = "UNQUERYABLE_COLUMN"

	// ErrCodeUnsupportedCardinality indicates a many-to-many relation.
	ErrCodeUnsupportedCardinality ErrorCode = "UNSUPPORTED_RELATION_CARDINALITY"

	// ErrCodeUnknownRelation indicates a title the entity does not declare.
	ErrCodeUnknownRelation ErrorCode = "UNKNOWN_RELATION"

	// ErrCodeUnknownEntity indicates an entity the provider cannot supply.
	ErrCodeUnknownEntity ErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeDuplicateRelation indicates the same relation title used twice
	// for the same purpose within one group.
	ErrCodeDuplicateRelation ErrorCode = "DUPLICATE_RELATION"
)

// CompileError reports why a graph could not be compiled into a plan.
//
// Path is the dotted relation path from the root ("" for the root itself,
// "children.products" two levels down).
type CompileError struct {
	Code    ErrorCode
	Path    string
	Column  string
	Message string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
}

// ErrorCode returns the error's code as a plain string.
func (e *CompileError) ErrorCode() string {
	return string(e.Code)
}

// IsCode reports whether err is a CompileError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
