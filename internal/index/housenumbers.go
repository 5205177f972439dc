package index

import (
	"maps"
	"strings"
)

// PrepareHousenumbers rewrites the housenumbers of doc keyed by normalized
// token, so a user's normalized query can be matched against them directly.
// Each entry keeps the original label under "raw" next to its coordinates.
func (ix *Indexer) PrepareHousenumbers(doc Document) Document {
	name := ix.cfg.HousenumbersField
	hns, ok := doc[name].(map[string]any)
	if name == "" || !ok || len(hns) == 0 {
		return doc
	}
	prepared := make(map[string]any, len(hns))
	for number, data := range hns {
		m, _ := data.(map[string]any)
		label := strings.Join(strings.Fields(number), "")
		for _, tok := range ix.cache.PreprocessHousenumber(label) {
			entry := make(map[string]any, len(m)+1)
			maps.Copy(entry, m)
			entry["raw"] = number
			prepared[tok] = entry
		}
	}
	doc[name] = prepared
	return doc
}
