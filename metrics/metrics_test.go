package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/stats"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(serpEnrichments.WithLabelValues("cache"))
	ObserveEnrichment("cache", time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(serpEnrichments.WithLabelValues("cache")))

	before = testutil.ToFloat64(briefsGenerated.WithLabelValues("existing"))
	BriefGenerated("existing")
	assert.Equal(t, before+1, testutil.ToFloat64(briefsGenerated.WithLabelValues("existing")))

	before = testutil.ToFloat64(pageFetchFailures)
	PageFetchFailed()
	assert.Equal(t, before+1, testutil.ToFloat64(pageFetchFailures))
}

func TestMonthlyCollector(t *testing.T) {
	storage, err := stats.NewStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer storage.Shutdown()

	storage.Increment(stats.BriefGenerated, 3)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(&MonthlyCollector{storage: storage}))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)

	found := false
	for _, m := range families[0].GetMetric() {
		if m.GetLabel()[0].GetValue() == "briefs_generated" {
			assert.Equal(t, 3.0, m.GetGauge().GetValue())
			found = true
		}
	}
	assert.True(t, found)
}

type stubCounter struct {
	n   int
	err error
}

func (s stubCounter) Count(context.Context) (int, error) { return s.n, s.err }

func TestCacheCollector(t *testing.T) {
	c := &CacheCollector{cache: stubCounter{n: 42}, logger: zap.NewNop()}
	assert.Equal(t, 42.0, testutil.ToFloat64(c))

	failing := &CacheCollector{cache: stubCounter{err: errors.New("locked")}, logger: zap.NewNop()}
	assert.Equal(t, 0, testutil.CollectAndCount(failing))
}
