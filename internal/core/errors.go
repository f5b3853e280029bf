package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when blank text reaches the chunking or
	// query path. Embedding an empty list is not an error; see EmbedStats.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrUnknownStrategy is returned for an unrecognized chunking method.
	ErrUnknownStrategy = errors.New("unknown chunking strategy")

	// ErrUnknownBackend is returned for an unrecognized embedding backend.
	ErrUnknownBackend = errors.New("unknown embedding backend")
)

// ConfigurationError reports a missing credential or an invariant broken by
// configuration, such as a dimension mismatch between an embedding backend
// and the vector index. It fails fast at startup or on first use.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// BackendUnavailableError reports a failed call to a remote collaborator
// (embedding backend, vector index, cache). Callers recover via a local
// fallback where one exists and surface the failure otherwise.
type BackendUnavailableError struct {
	Op      string
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable during %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}
