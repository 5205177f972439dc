package text

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipeline(t *testing.T) {
	procs, err := Lookup([]string{"tokenize", "normalize", "synonymize"}, map[string]string{"bd": "boulevard"})
	require.NoError(t, err)

	tests := []struct {
		in   string
		want []string
	}{
		{"Rue de Rivoli", []string{"rue", "de", "rivoli"}},
		{"Bd Saint-Germain", []string{"boulevard", "saint", "germain"}},
		{"Champs-Élysées", []string{"champs", "elysees"}},
		{"  ,;  ", nil},
		{"75001", []string{"75001"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := slices.Collect(Pipe(tt.in, procs))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandOrdinal(t *testing.T) {
	procs, err := Lookup([]string{"expand_ordinal", "tokenize", "normalize"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"12bis"}, slices.Collect(Pipe("12b", procs)))
	assert.Equal(t, []string{"3ter"}, slices.Collect(Pipe("3T", procs)))
	assert.Equal(t, []string{"7"}, slices.Collect(Pipe("7", procs)))
}

func TestPipeStopsEarly(t *testing.T) {
	procs, err := Lookup([]string{"tokenize"}, nil)
	require.NoError(t, err)
	var first string
	for tok := range Pipe("one two three", procs) {
		first = tok
		break
	}
	assert.Equal(t, "one", first)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup([]string{"stem"}, nil)
	assert.Error(t, err)
}
