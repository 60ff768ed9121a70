package storage

import "context"

// Storage stores uploaded objects and resolves their public URLs.
type Storage interface {
	// Store writes content under the given object key (e.g. "logos/abc.png")
	// and returns the key actually stored.
	Store(ctx context.Context, key, contentType string, content []byte) (string, error)
	// FileURL returns a public URL for a stored object key.
	FileURL(key string) string
	// Delete removes a stored object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}
