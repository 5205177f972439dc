// Package benchmark contains Go benchmarks for the text pipeline, the
// indexer and the batch pipeline, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/AntoineBreitwillerCSTB/addok/internal/batch"
	"github.com/AntoineBreitwillerCSTB/addok/internal/docstore"
	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	"github.com/AntoineBreitwillerCSTB/addok/internal/text"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	pkgredis "github.com/AntoineBreitwillerCSTB/addok/pkg/redis"
	"github.com/alicebob/miniredis/v2"
)

var streets = []string{"Rue de Rivoli", "Avenue des Champs-Élysées", "Boulevard Saint-Germain", "Quai de la Tournelle"}

func newIndexer(b *testing.B) *index.Indexer {
	b.Helper()
	ix, err := index.New(config.DefaultIndex(), index.NewCache(general, []text.Processor{text.ExpandOrdinal}))
	if err != nil {
		b.Fatal(err)
	}
	return ix
}

func address(i int) index.Document {
	return index.Document{
		"id":       fmt.Sprintf("addr-%d", i),
		"type":     "street",
		"name":     streets[i%len(streets)],
		"postcode": fmt.Sprintf("750%02d", i%20+1),
		"city":     "Paris",
		"lat":      48.80 + float64(i%100)/1000,
		"lon":      2.30 + float64(i%70)/1000,
		"housenumbers": map[string]any{
			"1":     map[string]any{"lat": 48.85, "lon": 2.35},
			"3 bis": map[string]any{"lat": 48.851, "lon": 2.351},
		},
	}
}

// BenchmarkIndex measures per-document derivation of index writes, without
// any store round trip.
func BenchmarkIndex(b *testing.B) {
	ix := newIndexer(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var ops index.Ops
		doc := ix.PrepareHousenumbers(address(i))
		if err := ix.Index(&ops, doc); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEncode measures building the stored raw form.
func BenchmarkEncode(b *testing.B) {
	ix := newIndexer(b)
	doc := ix.PrepareHousenumbers(address(0))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ix.Encode(doc)
	}
}

// BenchmarkPipeline measures end-to-end chunk processing against an
// in-process Redis at various chunk sizes.
func BenchmarkPipeline(b *testing.B) {
	for _, size := range []int{100, 1000} {
		b.Run(fmt.Sprintf("chunk_%d", size), func(b *testing.B) {
			mr := miniredis.RunT(b)
			client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
			if err != nil {
				b.Fatal(err)
			}
			defer client.Close()

			cfg := config.Default().Batch
			cfg.ChunkSize = size
			cfg.Throttle = 0
			ix := newIndexer(b)
			p, err := batch.New(cfg, ix, client, docstore.NewRedis(client))
			if err != nil {
				b.Fatal(err)
			}

			docs := make([]index.Document, size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				for j := range docs {
					docs[j] = address(i*size + j)
				}
				if _, err := p.ProcessDocuments(context.Background(), docs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
