package index

import (
	"slices"
	"sync"

	"github.com/AntoineBreitwillerCSTB/addok/internal/text"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes tokenization for the lifetime of a run. Entries are never
// evicted: a batch run sees a bounded set of distinct field values. Safe for
// concurrent use by chunk workers.
type Cache struct {
	general      []text.Processor
	housenumbers []text.Processor
	hnOnce       sync.Once
	hnPipeline   []text.Processor

	tokens   *memo
	hnTokens *memo
}

// NewCache builds a cache around the general pipeline. housenumbers holds the
// processors run before the general ones for housenumber labels.
func NewCache(general, housenumbers []text.Processor) *Cache {
	return &Cache{
		general:      general,
		housenumbers: housenumbers,
		tokens:       newMemo(),
		hnTokens:     newMemo(),
	}
}

// Preprocess returns the tokens of s. Callers must not modify the result.
func (c *Cache) Preprocess(s string) []string {
	return c.tokens.get(s, c.general)
}

// PreprocessHousenumber tokenizes a housenumber label.
func (c *Cache) PreprocessHousenumber(s string) []string {
	c.hnOnce.Do(func() {
		c.hnPipeline = slices.Concat(c.housenumbers, c.general)
	})
	return c.hnTokens.get(s, c.hnPipeline)
}

// Len returns the number of memoized strings across both pipelines.
func (c *Cache) Len() int {
	return c.tokens.len() + c.hnTokens.len()
}

type memo struct {
	mu    sync.RWMutex
	m     map[string][]string
	group singleflight.Group
}

func newMemo() *memo {
	return &memo{m: make(map[string][]string)}
}

func (m *memo) get(s string, procs []text.Processor) []string {
	m.mu.RLock()
	toks, ok := m.m[s]
	m.mu.RUnlock()
	if ok {
		return toks
	}
	v, _, _ := m.group.Do(s, func() (any, error) {
		m.mu.RLock()
		toks, ok := m.m[s]
		m.mu.RUnlock()
		if ok {
			return toks, nil
		}
		toks = slices.Collect(text.Pipe(s, procs))
		m.mu.Lock()
		m.m[s] = toks
		m.mu.Unlock()
		return toks, nil
	})
	return v.([]string)
}

func (m *memo) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}
