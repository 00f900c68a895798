package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachelot/cachelot-sub000/cache"
	"github.com/cachelot/cachelot-sub000/internal/arena"
)

func TestNoopReportDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNoop().Report(cache.Stats{}, arena.Stats{})
	})
}

func TestReportSetsGaugeValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)
	sink.Report(cache.Stats{CmdGet: 7, GetHits: 5}, arena.Stats{Mallocs: 3})

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(7), values["cachelot_cmd_get"])
	assert.Equal(t, float64(5), values["cachelot_get_hits"])
	assert.Equal(t, float64(3), values["cachelot_arena_mallocs"])
}

func TestReportReflectsLatestSnapshotNotADelta(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)
	sink.Report(cache.Stats{CmdGet: 7}, arena.Stats{})
	sink.Report(cache.Stats{CmdGet: 9}, arena.Stats{})

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "cachelot_cmd_get" {
			assert.Equal(t, float64(9), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}
