package rag

import (
	"errors"
	"fmt"
)

// ErrFetchFailed is returned by the web cache when a refresh failed and no
// previous entry exists to serve instead.
var ErrFetchFailed = errors.New("web fetch failed")

// ErrDimensionMismatch is returned when an embedding's length does not match
// the dimensionality a store was created with.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbeddingError reports a failed embedding request. It is propagated to the
// caller unchanged; embedding calls are never retried.
type EmbeddingError struct {
	// Provider names the embedding backend (ollama, openai, ...).
	Provider string

	// Inputs is the number of texts in the failed batch.
	Inputs int

	// Err is the underlying cause.
	Err error
}

// NewEmbeddingError wraps err for provider. A nil err yields nil.
func NewEmbeddingError(provider string, inputs int, err error) error {
	if err == nil {
		return nil
	}
	var existing *EmbeddingError
	if errors.As(err, &existing) {
		return err
	}
	return &EmbeddingError{Provider: provider, Inputs: inputs, Err: err}
}

// Error implements error.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding: %s failed for %d input(s): %v", e.Provider, e.Inputs, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EmbeddingError) Unwrap() error { return e.Err }
