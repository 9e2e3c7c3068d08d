// SPDX-License-Identifier: MIT

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestRecordTurnIncrements(t *testing.T) {
	RecordTurn("ASK_NAME", "accepted")
	RecordTurn("ASK_NAME", "accepted")

	mf := gatherFamily(t, "convogate_turns_total")
	require.NotNil(t, mf)

	var value float64
	for _, m := range mf.GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["stage"] == "ASK_NAME" && labels["outcome"] == "accepted" {
			value = m.GetCounter().GetValue()
		}
	}
	require.GreaterOrEqual(t, value, 2.0)
}

func TestStoreFallbackGauge(t *testing.T) {
	SetStoreFallbackActive(true)
	mf := gatherFamily(t, "convogate_store_fallback_active")
	require.NotNil(t, mf)
	require.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())

	SetStoreFallbackActive(false)
	mf = gatherFamily(t, "convogate_store_fallback_active")
	require.Equal(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue())
}
