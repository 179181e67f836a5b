// Package embedding turns text chunks into vectors for topic clustering.
package embedding

import (
	"context"
	"errors"
)

// Static errors for embedding operations.
var (
	// ErrAPIKeyRequired is returned when a hosted embedder has no API key.
	ErrAPIKeyRequired = errors.New("embedding: API key is required")
	// ErrCountMismatch is returned when the provider returns a different number of vectors than inputs.
	ErrCountMismatch = errors.New("embedding: vector count does not match input count")
)

// Embedder maps each text to one vector, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
