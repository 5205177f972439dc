package index

import (
	"fmt"
	"strings"

	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
)

// Unit is one indexing step together with its exact inverse. The set is
// closed: FieldsUnit, GeohashUnit, HousenumbersUnit and FiltersUnit.
type Unit interface {
	Name() string
	index(ix *Indexer, w Writer, key string, doc Document, tokens Tokens) error
	deindex(ix *Indexer, w Writer, key string, raw RawDocument)
}

// LookupUnits resolves configured unit names, keeping their order.
func LookupUnits(names []string) ([]Unit, error) {
	units := make([]Unit, 0, len(names))
	for _, name := range names {
		switch name {
		case "fields":
			units = append(units, FieldsUnit{})
		case "geohash":
			units = append(units, GeohashUnit{})
		case "housenumbers":
			units = append(units, HousenumbersUnit{})
		case "filters":
			units = append(units, FiltersUnit{})
		default:
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "unknown indexer %q", name)
		}
	}
	return units, nil
}

// valueStrings renders the values of v exactly as RawDocument.values reads
// them back from the stored form, so index and deindex see the same set.
func valueStrings(v any) []string {
	items := listOf(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if isEmpty(item) {
			continue
		}
		for _, s := range strings.Split(encodeValue(item), ValueSeparator) {
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// FieldsUnit extracts weighted tokens from the configured text fields.
type FieldsUnit struct{}

func (FieldsUnit) Name() string { return "fields" }

func (FieldsUnit) index(ix *Indexer, _ Writer, _ string, doc Document, tokens Tokens) error {
	var importance float64
	if v, ok := doc["importance"]; ok && !isEmpty(v) {
		f, err := ParseFloat(v)
		if err != nil {
			return apperrors.Newf(apperrors.ErrInvalidValue, "importance: %v", err)
		}
		importance = f * ix.cfg.ImportanceWeight
	}
	for _, field := range ix.cfg.Fields {
		values := doc[field.Key]
		if isEmpty(values) {
			if !field.Nullable() {
				return apperrors.Newf(apperrors.ErrMissingField, "%s must not be null", field.Key)
			}
			continue
		}
		if field.Key == ix.cfg.HousenumbersField {
			continue
		}
		boost := field.BoostFor(doc, ix.cfg.DefaultBoost) + importance
		for _, s := range valueStrings(values) {
			ix.extract(tokens, s, boost)
		}
	}
	return nil
}

func (FieldsUnit) deindex(ix *Indexer, w Writer, key string, raw RawDocument) {
	for _, field := range ix.cfg.Fields {
		if field.Key == ix.cfg.HousenumbersField {
			continue
		}
		for _, s := range raw.values(field.Key) {
			for _, tok := range ix.cache.Preprocess(s) {
				w.ZRem(TokenKey(tok), key)
			}
		}
	}
}

// GeohashUnit places the document in the bucket of its own coordinates.
type GeohashUnit struct{}

func (GeohashUnit) Name() string { return "geohash" }

func (GeohashUnit) index(ix *Indexer, w Writer, key string, doc Document, _ Tokens) error {
	lat, lon, err := coordinates(doc)
	if err != nil {
		return err
	}
	ix.indexGeohash(w, key, lat, lon)
	return nil
}

func (GeohashUnit) deindex(ix *Indexer, w Writer, key string, raw RawDocument) {
	lat, okLat := raw["lat"]
	lon, okLon := raw["lon"]
	if okLat && okLon {
		ix.deindexGeohash(w, key, lat, lon)
	}
}

// HousenumbersUnit indexes every prepared housenumber token at the default
// boost, and the number's own coordinates in the geohash buckets.
type HousenumbersUnit struct{}

func (HousenumbersUnit) Name() string { return "housenumbers" }

func (HousenumbersUnit) index(ix *Indexer, w Writer, key string, doc Document, _ Tokens) error {
	v, ok := doc[ix.cfg.HousenumbersField]
	if !ok || isEmpty(v) {
		return nil
	}
	hns, ok := v.(map[string]any)
	if !ok {
		return apperrors.Newf(apperrors.ErrInvalidValue, "%s must be a mapping, got %T", ix.cfg.HousenumbersField, v)
	}
	for tok, data := range hns {
		m, ok := data.(map[string]any)
		if !ok {
			return apperrors.Newf(apperrors.ErrInvalidValue, "housenumber %s: expected a mapping, got %T", tok, data)
		}
		lat, lon, err := coordinates(m)
		if err != nil {
			return fmt.Errorf("housenumber %s: %w", tok, err)
		}
		w.ZAdd(TokenKey(tok), ix.cfg.DefaultBoost, key)
		ix.indexGeohash(w, key, lat, lon)
	}
	return nil
}

func (HousenumbersUnit) deindex(ix *Indexer, w Writer, key string, raw RawDocument) {
	for field, value := range raw {
		tok, ok := strings.CutPrefix(field, housenumberPrefix)
		if !ok {
			continue
		}
		if _, lat, lon, ok := decodeHousenumber(value); ok {
			ix.deindexGeohash(w, key, lat, lon)
		}
		w.ZRem(TokenKey(tok), key)
	}
}

// FiltersUnit maintains the exact-match sets of the configured filters.
type FiltersUnit struct{}

func (FiltersUnit) Name() string { return "filters" }

func (FiltersUnit) index(ix *Indexer, w Writer, key string, doc Document, _ Tokens) error {
	for _, name := range ix.cfg.Filters {
		for _, s := range valueStrings(doc[name]) {
			w.SAdd(FilterKey(name, s), key)
		}
	}
	// Housenumbers carry no type of their own; the parent document stands in.
	if ix.cfg.HasFilter("type") && ix.cfg.HousenumbersField != "" && !isEmpty(doc[ix.cfg.HousenumbersField]) {
		w.SAdd(FilterKey("type", "housenumber"), key)
	}
	return nil
}

func (FiltersUnit) deindex(ix *Indexer, w Writer, key string, raw RawDocument) {
	for _, name := range ix.cfg.Filters {
		for _, s := range raw.values(name) {
			w.SRem(FilterKey(name, s), key)
		}
	}
	if ix.cfg.HasFilter("type") {
		w.SRem(FilterKey("type", "housenumber"), key)
	}
}
