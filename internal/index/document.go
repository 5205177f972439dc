package index

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
)

// Action tells the batch pipeline what to do with a document.
type Action string

const (
	ActionIndex  Action = "index"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const actionField = "_action"

// Document is a decoded input record: field name to value(s). Values are
// whatever the decoder produced (strings, numbers, lists, nested maps).
type Document map[string]any

// ID returns the document id as a string, or "" when absent.
func (d Document) ID() string {
	v, ok := d["id"]
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// Action returns the declared action; an absent action means index.
func (d Document) Action() Action {
	v, ok := d[actionField]
	if !ok || v == nil {
		return ActionIndex
	}
	return Action(FormatValue(v))
}

// FormatValue renders a scalar the same way at index time and in the stored
// raw form, so both sides tokenize identical strings.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// ParseFloat accepts the numeric types decoders produce as well as numeric
// strings.
func ParseFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		// Through the decimal form, as stored, so both sides agree.
		return strconv.ParseFloat(strconv.FormatFloat(float64(x), 'f', -1, 32), 64)
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// isEmpty mirrors the falsy values of the source data: nil, empty strings and
// empty collections.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case bool:
		return !x
	}
	return false
}

// listOf flattens v to its values: a list yields its items, anything else
// yields itself.
func listOf(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// coordinates reads a lat/lon pair from m.
func coordinates(m map[string]any) (lat, lon float64, err error) {
	rawLat, okLat := m["lat"]
	rawLon, okLon := m["lon"]
	if !okLat || !okLon || rawLat == nil || rawLon == nil {
		return 0, 0, apperrors.New(apperrors.ErrMissingField, "lat and lon are required")
	}
	if lat, err = ParseFloat(rawLat); err != nil {
		return 0, 0, apperrors.Newf(apperrors.ErrInvalidValue, "lat: %v", err)
	}
	if lon, err = ParseFloat(rawLon); err != nil {
		return 0, 0, apperrors.Newf(apperrors.ErrInvalidValue, "lon: %v", err)
	}
	return lat, lon, nil
}
