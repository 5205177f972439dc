package index

// Tokens accumulates the postings of one document: token to boost.
type Tokens map[string]float64

// extract tokenizes s and spreads boost over its tokens. A token already
// present keeps the larger boost, so a word repeated across fields counts
// once at its best weight.
func (ix *Indexer) extract(tokens Tokens, s string, boost float64) {
	els := ix.cache.Preprocess(s)
	if len(els) == 0 {
		return
	}
	boost = ix.cfg.DefaultBoost / float64(len(els)) * boost
	for _, tok := range els {
		if tokens[tok] < boost {
			tokens[tok] = boost
		}
	}
}

func (t Tokens) writeTo(w Writer, key string) {
	for tok, boost := range t {
		w.ZAdd(TokenKey(tok), boost, key)
	}
}
