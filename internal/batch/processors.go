package batch

import (
	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
)

// Processor transforms a document on its way to the indexer. Returning nil
// drops the document.
type Processor func(index.Document) index.Document

// RequireID drops documents without an id.
func RequireID(doc index.Document) index.Document {
	if doc.ID() == "" {
		return nil
	}
	return doc
}

// LookupProcessors resolves processor names. Batch processors run on the
// reading goroutine, document processors inside chunk workers.
func LookupProcessors(names []string, ix *index.Indexer) ([]Processor, error) {
	procs := make([]Processor, 0, len(names))
	for _, name := range names {
		switch name {
		case "require_id":
			procs = append(procs, RequireID)
		case "prepare_housenumbers":
			procs = append(procs, ix.PrepareHousenumbers)
		default:
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "unknown document processor %q", name)
		}
	}
	return procs, nil
}

func apply(procs []Processor, doc index.Document) index.Document {
	for _, p := range procs {
		if doc == nil {
			return nil
		}
		doc = p(doc)
	}
	return doc
}
