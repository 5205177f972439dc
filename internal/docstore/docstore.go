// Package docstore persists the canonical raw form of indexed documents. The
// deindexer reads it back to know what to remove, so a document must be
// stored exactly as index.Encode produced it.
package docstore

import (
	"context"

	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
)

// Op is an ordered write: a replacement of the document at Key, or its
// removal when Raw is nil.
type Op struct {
	Key string
	Raw index.RawDocument
}

// Put replaces the stored form of key.
func Put(key string, raw index.RawDocument) Op {
	return Op{Key: key, Raw: raw}
}

// Delete removes key.
func Delete(key string) Op {
	return Op{Key: key}
}

// Store is a canonical document backend.
type Store interface {
	index.DocumentReader
	// Apply performs ops in order.
	Apply(ctx context.Context, ops []Op) error
	Close() error
}
