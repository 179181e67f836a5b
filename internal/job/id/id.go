// Package id provides unique identifier generation for jobs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every job ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<uuid>
// Example: job-3f1c2b9e-8d4a-4f61-9b1e-2c7a5d0e9f42
func Generate() string {
	return Prefix + uuid.NewString()
}

// Valid reports whether s has the shape produced by Generate.
func Valid(s string) bool {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return false
	}
	return uuid.Validate(rest) == nil
}
