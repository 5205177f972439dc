package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsTotal.WithLabelValues("accepted").Add(3)
	m.ChunksTotal.WithLabelValues("ok").Inc()
	m.ChunkDuration.Observe(0.3)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("accepted")))
	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "addok_records_total")
	assert.Contains(t, names, "addok_chunk_duration_seconds")

	assert.Panics(t, func() { New(reg) }, "registering twice")
}
