// Package index turns documents into the inverted-index structures read by
// the query side (token postings, geohash buckets, filter sets) and removes
// them again. Deindexing re-derives what was written from the stored raw
// form of the document; see Encode.
package index

import (
	"context"
	"fmt"

	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
)

// Indexer runs the configured units over documents. It holds no per-document
// state and is safe for concurrent use.
type Indexer struct {
	cfg        config.IndexConfig
	cache      *Cache
	indexers   []Unit
	deindexers []Unit
}

// New builds an Indexer sharing cache for tokenization.
func New(cfg config.IndexConfig, cache *Cache) (*Indexer, error) {
	indexers, err := LookupUnits(cfg.Indexers)
	if err != nil {
		return nil, fmt.Errorf("indexers: %w", err)
	}
	deindexers, err := LookupUnits(cfg.Deindexers)
	if err != nil {
		return nil, fmt.Errorf("deindexers: %w", err)
	}
	return &Indexer{
		cfg:        cfg,
		cache:      cache,
		indexers:   indexers,
		deindexers: deindexers,
	}, nil
}

// Cache returns the tokenization cache.
func (ix *Indexer) Cache() *Cache {
	return ix.cache
}

// Index writes the index entries of doc to w. Writes are staged until every
// unit succeeded: a validation failure leaves w untouched.
func (ix *Indexer) Index(w Writer, doc Document) error {
	id := doc.ID()
	if id == "" {
		return apperrors.New(apperrors.ErrMissingField, "id must not be null")
	}
	key := DocumentKey(id)
	var staged Ops
	tokens := make(Tokens)
	for _, u := range ix.indexers {
		if err := u.index(ix, &staged, key, doc, tokens); err != nil {
			return fmt.Errorf("document %s: %s: %w", id, u.Name(), err)
		}
	}
	staged.Replay(w)
	tokens.writeTo(w, key)
	return nil
}

// Deindex removes the index entries of the stored document id. It reports
// whether the document existed; a missing document is not an error.
func (ix *Indexer) Deindex(ctx context.Context, docs DocumentReader, w Writer, id string) (bool, error) {
	key := DocumentKey(id)
	raw, err := docs.Fetch(ctx, key)
	if err != nil {
		return false, fmt.Errorf("fetching %s: %w", key, err)
	}
	if len(raw) == 0 {
		return false, nil
	}
	for _, u := range ix.deindexers {
		u.deindex(ix, w, key, raw)
	}
	return true, nil
}

// Encode returns the stored form of doc for this index layout.
func (ix *Indexer) Encode(doc Document) RawDocument {
	return Encode(doc, ix.cfg.HousenumbersField)
}

// ZCarder is implemented by the Redis client.
type ZCarder interface {
	ZCard(ctx context.Context, key string) (int64, error)
}

// TokenFrequency returns how many documents hold token.
func (ix *Indexer) TokenFrequency(ctx context.Context, store ZCarder, token string) (int64, error) {
	n, err := store.ZCard(ctx, TokenKey(token))
	if err != nil {
		return 0, fmt.Errorf("counting postings of %q: %w", token, err)
	}
	return n, nil
}
