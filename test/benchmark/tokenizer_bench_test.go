package benchmark

import (
	"strings"
	"testing"

	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	"github.com/AntoineBreitwillerCSTB/addok/internal/text"
)

var sampleTexts = map[string]string{
	"short":  "18 bis Rue des Écoles",
	"medium": "Résidence du Château d'Eau, 112 Boulevard de Ménilmontant, 75011 Paris, Île-de-France",
	"long":   strings.Repeat("Chemin départemental n°4 dit de la Côte-Saint-André, lieu-dit Les Égliseaux ", 20),
}

var general = []text.Processor{
	text.Tokenize,
	text.Normalize,
	text.Synonymize(map[string]string{"bd": "boulevard", "st": "saint"}),
}

func drain(s string) int {
	n := 0
	for range text.Pipe(s, general) {
		n++
	}
	return n
}

func BenchmarkPipe(b *testing.B) {
	for name, s := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(s)))
			for i := 0; i < b.N; i++ {
				drain(s)
			}
		})
	}
}

func BenchmarkPipeParallel(b *testing.B) {
	s := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(s)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			drain(s)
		}
	})
}

// BenchmarkCachedPreprocess measures the memoized path taken by every string
// seen before, which dominates address datasets.
func BenchmarkCachedPreprocess(b *testing.B) {
	cache := index.NewCache(general, []text.Processor{text.ExpandOrdinal})
	s := sampleTexts["medium"]
	cache.Preprocess(s)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = cache.Preprocess(s)
		}
	})
}
