package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitsmind/graphsql/internal/entity"
)

// LoadResult contains the entities loaded from a path.
type LoadResult struct {
	Registry  *entity.Registry
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred while loading entities.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ErrorCode reports the CLI error code.
func (e *LoadError) ErrorCode() string { return e.Code }

// LoadEntities loads entity declarations from a CUE file or directory and
// validates their relations.
func LoadEntities(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("entities path not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing entities path: %v", err), Err: err}
	}

	count := 1
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Err: err}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		count = len(files)
	}

	reg, err := entity.LoadPath(path)
	if err != nil {
		return nil, &LoadError{Code: loadErrorCode(err), Message: err.Error(), Err: err}
	}
	if len(reg.Names()) == 0 {
		return nil, &LoadError{Code: ErrCodeNoEntities, Message: fmt.Sprintf("no entities declared in %s", path)}
	}
	return &LoadResult{Registry: reg, FileCount: count}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadErrorCode classifies an entity loading failure.
func loadErrorCode(err error) string {
	var defErr *entity.DefinitionError
	if errors.As(err, &defErr) {
		return ErrCodeInvalidRelation
	}
	var compileErr *entity.CompileError
	if errors.As(err, &compileErr) {
		return ErrCodeInvalidEntity
	}
	return ErrCodeLoadFailed
}

// Error code constants for failures that carry no domain code.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or build failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeNoEntities  = "E006" // No entities declared
	ErrCodeWriteFailed = "E007" // File write error

	// Entity validation errors
	ErrCodeInvalidEntity   = "E101" // Entity declaration does not compile
	ErrCodeInvalidRelation = "E102" // Relation target, cardinality or keys invalid

	// Store and cache errors
	ErrCodeStore = "E201" // Graph-key store failure
	ErrCodeCache = "E202" // Cache backend failure
)
