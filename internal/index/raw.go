package index

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// ValueSeparator joins the values of a list field in the stored raw form.
const ValueSeparator = "|~|"

// housenumberSeparator joins raw label, lat, lon and extra values of a stored
// housenumber.
const housenumberSeparator = "|"

// RawDocument is the canonical stored form of a document: flat string fields.
// Every deindex unit re-derives what was indexed from this shape, so Encode
// and the deindexers must change together.
type RawDocument map[string]string

// values splits a stored list field back into its values.
func (r RawDocument) values(name string) []string {
	v, ok := r[name]
	if !ok || v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ValueSeparator) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Encode flattens a prepared document to its stored form. Fields prefixed
// with an underscore are dropped; housenumbers become one h|<token> field
// each.
func Encode(doc Document, housenumbersField string) RawDocument {
	raw := make(RawDocument, len(doc))
	for name, v := range doc {
		if strings.HasPrefix(name, "_") || isEmpty(v) {
			continue
		}
		if name == housenumbersField {
			if hns, ok := v.(map[string]any); ok {
				for tok, data := range hns {
					raw[housenumberField(tok)] = encodeHousenumber(data)
				}
				continue
			}
		}
		raw[name] = encodeValue(v)
	}
	return raw
}

func encodeValue(v any) string {
	switch x := v.(type) {
	case []any, []string:
		items := listOf(x)
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if isEmpty(item) {
				continue
			}
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ValueSeparator)
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return FormatValue(x)
		}
		return string(b)
	default:
		return FormatValue(v)
	}
}

func encodeHousenumber(data any) string {
	m, ok := data.(map[string]any)
	if !ok {
		return FormatValue(data)
	}
	parts := []string{FormatValue(m["raw"]), FormatValue(m["lat"]), FormatValue(m["lon"])}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		switch k {
		case "raw", "lat", "lon":
			continue
		}
		parts = append(parts, FormatValue(m[k]))
	}
	return strings.Join(parts, housenumberSeparator)
}

// decodeHousenumber splits a stored housenumber into label and coordinates.
func decodeHousenumber(v string) (raw, lat, lon string, ok bool) {
	parts := strings.SplitN(v, housenumberSeparator, 4)
	if len(parts) < 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
