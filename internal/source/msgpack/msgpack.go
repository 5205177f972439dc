// Package msgpack registers a decoder for ".msgpack" files: a stream of
// MessagePack maps, one per document. Import it for its side effect.
package msgpack

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	"github.com/AntoineBreitwillerCSTB/addok/internal/source"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	source.RegisterDecoder(".msgpack", Decode)
}

// Decode yields each top-level map of r as a document. Values that are not
// maps are dropped; a corrupt stream ends the iteration with an error.
func Decode(r io.Reader) source.Records {
	return func(yield func(index.Document, error) bool) {
		dec := msgpack.NewDecoder(r)
		for n := 1; ; n++ {
			v, err := dec.DecodeInterface()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("decoding record %d: %w", n, err))
				return
			}
			m, ok := v.(map[string]any)
			if !ok {
				slog.Warn("skipping non-map record", "record", n, "type", fmt.Sprintf("%T", v))
				m = nil
			}
			if !yield(index.Document(m), nil) {
				return
			}
		}
	}
}
