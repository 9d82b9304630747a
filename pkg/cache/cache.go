// Package cache holds storage for values captured from HTTP responses.
//
// Values saved here survive for the lifetime of a batch and are consumed by
// request templates of calls executed later in the same batch.
package cache

import "errors"

// ErrMissingKey occurs when cache doesn't have any value under given key.
var ErrMissingKey = errors.New("missing key")

// Cache describes ability to store and retrieve arbitrary captured values.
type Cache interface {
	// Save preserves provided value under given key.
	Save(key string, value any)

	// GetSaved retrieves value saved under given key.
	GetSaved(key string) (any, error)

	// Reset turns cache into init state - clears all entries.
	Reset()

	// All returns all cache entries.
	All() map[string]any
}
