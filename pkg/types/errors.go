package types

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptyQuery = errors.New("query cannot be empty")
	ErrEmptyInput = errors.New("no documents provided to index")
	ErrNoPassages = errors.New("chunking produced no passages")

	// Passage validation
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrMissingPath       = errors.New("relative path is required")
	ErrInvalidChunkIndex = errors.New("chunk index must be >= 0")
)

// InvalidVersionFormatError reports a version token that is neither "latest"
// nor v followed by digits.
type InvalidVersionFormatError struct {
	Token string
}

func (e *InvalidVersionFormatError) Error() string {
	return fmt.Sprintf("invalid version format %q: use \"latest\" or v<number> (e.g. v53)", e.Token)
}

// VersionUnavailableError reports a well-formed version with no vector index
// on disk. Message is the resolver's human-readable description.
type VersionUnavailableError struct {
	Version   string
	Available []string
	Message   string
}

func (e *VersionUnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Available) == 0 {
		return fmt.Sprintf("version %s is not available: no versions are initialized", e.Version)
	}
	return fmt.Sprintf("version %s is not available. Available versions: %s",
		e.Version, strings.Join(e.Available, ", "))
}

// IndexLoadError wraps a failure to read a persisted vector index.
type IndexLoadError struct {
	Version string
	Path    string
	Err     error
}

func (e *IndexLoadError) Error() string {
	return fmt.Sprintf("load index for %s from %s: %v", e.Version, e.Path, e.Err)
}

func (e *IndexLoadError) Unwrap() error { return e.Err }

// IndexPersistError wraps a failure to save or verify a vector index.
type IndexPersistError struct {
	Version string
	Path    string
	Err     error
}

func (e *IndexPersistError) Error() string {
	return fmt.Sprintf("persist index for %s to %s: %v", e.Version, e.Path, e.Err)
}

func (e *IndexPersistError) Unwrap() error { return e.Err }

// ConfigError marks a missing or invalid setting, such as absent embedding
// credentials. It is reported separately from generic failures.
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Setting, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
