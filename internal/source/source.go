// Package source turns input files, stdin and Kafka topics into streams of
// documents for the batch pipeline.
//
// A stream yields (doc, nil) for each record, (nil, nil) for a record that
// could not be decoded, and (nil, err) once for a failure that ends it.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/kafka"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Records is a document stream.
type Records = iter.Seq2[index.Document, error]

// Decoder reads documents from r.
type Decoder func(r io.Reader) Records

var (
	decodersMu sync.RWMutex
	decoders   = map[string]Decoder{
		"":         JSONLines,
		".json":    JSONLines,
		".jsonl":   JSONLines,
		".ndjson":  JSONLines,
		".geojson": JSONLines,
	}
)

// RegisterDecoder makes d available for files with extension ext (".csv").
// Decoders with extra dependencies register themselves from init.
func RegisterDecoder(ext string, d Decoder) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[strings.ToLower(ext)] = d
}

func decoderFor(ext string) (Decoder, error) {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	d, ok := decoders[strings.ToLower(ext)]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrMissingDecoder, "no decoder for %q files", ext)
	}
	return d, nil
}

// maxLine bounds a single JSON record.
const maxLine = 64 << 20

// JSONLines decodes one JSON object per line. Blank lines are skipped.
func JSONLines(r io.Reader) Records {
	return func(yield func(index.Document, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		line := 0
		for sc.Scan() {
			line++
			b := bytes.TrimSpace(sc.Bytes())
			if len(b) == 0 {
				continue
			}
			doc, err := decodeLine(b)
			if err != nil {
				slog.Debug("skipping malformed record", "line", line, "error", err)
				doc = nil
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, fmt.Errorf("reading line %d: %w", line+1, err))
		}
	}
}

func decodeLine(b []byte) (index.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc index.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("not an object")
	}
	return doc, nil
}

// Stdin reads line JSON from standard input.
func Stdin() Records {
	return JSONLines(os.Stdin)
}

// File returns the documents of path. The decoder is chosen by extension
// after stripping a .gz or .zst suffix, which is decompressed on the fly.
// The file is opened when the stream is iterated.
func File(path string) (Records, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.ErrFileNotFound, "%s", path)
		}
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	base, compression := splitCompression(path)
	decode, err := decoderFor(filepath.Ext(base))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return func(yield func(index.Document, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, fmt.Errorf("opening %s: %w", path, err))
			return
		}
		defer f.Close()

		r, closeFn, err := decompress(f, compression)
		if err != nil {
			yield(nil, fmt.Errorf("opening %s: %w", path, err))
			return
		}
		defer closeFn()

		slog.Info("reading file", "path", path)
		for doc, err := range decode(r) {
			if err != nil {
				err = fmt.Errorf("%s: %w", path, err)
			}
			if !yield(doc, err) || err != nil {
				return
			}
		}
	}, nil
}

func splitCompression(path string) (string, string) {
	for _, ext := range []string{".gz", ".zst"} {
		if strings.HasSuffix(strings.ToLower(path), ext) {
			return path[:len(path)-len(ext)], ext
		}
	}
	return path, ""
}

func decompress(r io.Reader, compression string) (io.Reader, func(), error) {
	switch compression {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

// Files expands each pattern (doublestar globs, "**" included) and chains
// the matching files in order. A pattern matching nothing is an error.
func Files(patterns []string) (Records, error) {
	var streams []Records
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "bad pattern %q: %v", pattern, err)
		}
		if len(matches) == 0 {
			return nil, apperrors.Newf(apperrors.ErrFileNotFound, "%s", pattern)
		}
		for _, path := range matches {
			s, err := File(path)
			if err != nil {
				return nil, err
			}
			streams = append(streams, s)
		}
	}
	return Concat(streams...), nil
}

// Concat yields the streams one after another, stopping at the first error.
func Concat(streams ...Records) Records {
	return func(yield func(index.Document, error) bool) {
		for _, s := range streams {
			for doc, err := range s {
				if !yield(doc, err) || err != nil {
					return
				}
			}
		}
	}
}

// Kafka decodes JSON records consumed from a topic until the consumer stops.
func Kafka(ctx context.Context, c *kafka.Consumer) Records {
	return func(yield func(index.Document, error) bool) {
		for value, err := range c.Messages(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			doc, err := decodeLine(value)
			if err != nil {
				slog.Warn("skipping malformed message", "error", err)
				doc = nil
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}
