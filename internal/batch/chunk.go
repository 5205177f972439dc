package batch

import (
	"context"
	"fmt"

	"github.com/AntoineBreitwillerCSTB/addok/internal/docstore"
	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/logger"
)

// ChunkResult counts what happened to the documents of one chunk.
type ChunkResult struct {
	Indexed   int
	Deindexed int
	Skipped   int
	Ignored   int
	Writes    int
}

func withChunk(ctx context.Context, seq int) context.Context {
	return logger.WithChunk(ctx, seq)
}

// pending lets later documents of a chunk see the stored form written by
// earlier ones before the chunk is flushed.
type pending struct {
	store docstore.Store
	raw   map[string]index.RawDocument
}

func (p *pending) Fetch(ctx context.Context, key string) (index.RawDocument, error) {
	if raw, ok := p.raw[key]; ok {
		return raw, nil
	}
	return p.store.Fetch(ctx, key)
}

// ProcessDocuments indexes, updates and deletes docs according to their
// action and flushes the resulting writes in one Redis pipeline, followed by
// the document store changes. Documents failing validation are logged and
// skipped; any other error fails the whole chunk.
func (p *Pipeline) ProcessDocuments(ctx context.Context, docs []index.Document) (ChunkResult, error) {
	var res ChunkResult
	log := logger.FromContext(ctx).With("component", "batch")
	b := p.client.NewBatch(ctx)
	view := &pending{store: p.docs, raw: make(map[string]index.RawDocument)}
	ops := make([]docstore.Op, 0, len(docs))

	for _, doc := range docs {
		if doc = apply(p.docProcs, doc); doc == nil {
			res.Skipped++
			continue
		}
		id := doc.ID()
		key := index.DocumentKey(id)
		action := doc.Action()
		switch action {
		case index.ActionIndex, index.ActionUpdate, index.ActionDelete:
		default:
			log.Debug("unknown action, document ignored", "doc_id", id, "action", string(action))
			res.Ignored++
			continue
		}

		if action == index.ActionDelete || action == index.ActionUpdate {
			found, err := p.indexer.Deindex(ctx, view, b, id)
			if err != nil {
				return res, err
			}
			if found {
				res.Deindexed++
			}
			view.raw[key] = nil
			ops = append(ops, docstore.Delete(key))
		}
		if action == index.ActionDelete {
			continue
		}

		if err := p.indexer.Index(b, doc); err != nil {
			if apperrors.IsValidation(err) {
				log.Warn("document skipped", "doc_id", id, "error", err)
				res.Skipped++
				continue
			}
			return res, err
		}
		raw := p.indexer.Encode(doc)
		view.raw[key] = raw
		ops = append(ops, docstore.Put(key, raw))
		res.Indexed++
	}

	writes := b.Len()
	if err := b.Exec(ctx); err != nil {
		return res, err
	}
	if err := p.docs.Apply(ctx, ops); err != nil {
		return res, fmt.Errorf("storing documents: %w", err)
	}
	res.Writes = writes
	log.Debug("chunk flushed", "documents", len(docs), "writes", writes,
		"indexed", res.Indexed, "deindexed", res.Deindexed, "skipped", res.Skipped)
	return res, nil
}
