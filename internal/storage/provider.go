// Package storage defines the corpus file-system abstraction.
package storage

import "github.com/starford/backlinker/internal/models"

// Provider is the interface for corpus file operations. Paths are
// slash-separated and relative to the corpus root.
type Provider interface {
	// List returns every note document in the corpus, sorted by path.
	List() ([]models.DocumentMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
}
