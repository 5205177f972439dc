// Package text provides the normalization pipeline that turns a field value
// into search tokens. A pipeline is an ordered list of Processors, each
// consuming and producing a lazy sequence of strings.
package text

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Processor transforms a token sequence.
type Processor func(iter.Seq[string]) iter.Seq[string]

// Pipe feeds s through procs in order.
func Pipe(s string, procs []Processor) iter.Seq[string] {
	seq := iter.Seq[string](func(yield func(string) bool) {
		yield(s)
	})
	for _, p := range procs {
		seq = p(seq)
	}
	return seq
}

// Tokenize splits each input on UAX#29 word boundaries and drops the
// segments holding neither a letter nor a digit.
func Tokenize(in iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		for s := range in {
			segs := words.FromString(s)
			for segs.Next() {
				w := segs.Value()
				if !strings.ContainsFunc(w, isWordRune) {
					continue
				}
				if !yield(w) {
					return
				}
			}
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Normalize lowercases and strips diacritics: "Élysée" becomes "elysee".
func Normalize(in iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		// transform.Chain is stateful, so one per sequence.
		t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		for s := range in {
			out, _, err := transform.String(t, s)
			if err != nil {
				out = s
			}
			if out = strings.ToLower(out); out == "" {
				continue
			}
			if !yield(out) {
				return
			}
		}
	}
}

// Synonymize replaces whole tokens found in synonyms.
func Synonymize(synonyms map[string]string) Processor {
	return func(in iter.Seq[string]) iter.Seq[string] {
		return func(yield func(string) bool) {
			for s := range in {
				if alt, ok := synonyms[s]; ok {
					s = alt
				}
				if !yield(s) {
					return
				}
			}
		}
	}
}

var ordinalRe = regexp.MustCompile(`^(\d+)\s*([btq])$`)

var ordinals = map[string]string{
	"b": "bis",
	"t": "ter",
	"q": "quater",
}

// ExpandOrdinal rewrites abbreviated housenumber suffixes: "12b" becomes
// "12bis".
func ExpandOrdinal(in iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		for s := range in {
			if m := ordinalRe.FindStringSubmatch(strings.ToLower(s)); m != nil {
				s = m[1] + ordinals[m[2]]
			}
			if !yield(s) {
				return
			}
		}
	}
}

// Lookup resolves processor names to a pipeline.
func Lookup(names []string, synonyms map[string]string) ([]Processor, error) {
	procs := make([]Processor, 0, len(names))
	for _, name := range names {
		switch name {
		case "tokenize":
			procs = append(procs, Tokenize)
		case "normalize":
			procs = append(procs, Normalize)
		case "synonymize":
			procs = append(procs, Synonymize(synonyms))
		case "expand_ordinal":
			procs = append(procs, ExpandOrdinal)
		default:
			return nil, fmt.Errorf("unknown text processor %q", name)
		}
	}
	return procs, nil
}
