package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/stats"
)

var (
	serpEnrichments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecaster_serp_enrichments_total",
		Help: "SERP enrichments by source (cache, fetch, fetch_empty)",
	}, []string{"source"})

	serpEnrichDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecaster_serp_enrich_duration_seconds",
		Help:    "Time spent fetching and enriching a SERP",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	})

	pageFetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forecaster_page_fetch_failures_total",
		Help: "Competitor or existing page fetches that yielded no features",
	})

	keywordsScored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecaster_keywords_scored_total",
		Help: "Keywords scored by outcome (success, failure, skipped)",
	}, []string{"outcome"})

	winScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecaster_win_score",
		Help:    "Distribution of calibrated win scores",
		Buckets: []float64{0.01, 0.04, 0.1, 0.2, 0.3, 0.4, 0.5},
	})

	briefsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecaster_briefs_generated_total",
		Help: "Content briefs generated by mode (new, existing)",
	}, []string{"mode"})

	cacheEntriesDesc = prometheus.NewDesc(
		"forecaster_serp_cache_entries",
		"Enrichments currently held in the SERP cache",
		nil,
		nil,
	)

	monthlyDesc = prometheus.NewDesc(
		"forecaster_monthly_counter",
		"Persisted monthly usage counters for the current month",
		[]string{"counter"},
		nil,
	)
)

// MonthlyCollector exposes the persisted monthly counters on each scrape.
type MonthlyCollector struct {
	storage *stats.Storage
}

// Describe sends the metric descriptor to the channel.
func (c *MonthlyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- monthlyDesc
}

// Collect reads the current month from storage.
func (c *MonthlyCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.storage.GetCurrentStats()
	for name, v := range map[string]int{
		"serp_cache_hits":   m.SerpCacheHits,
		"serp_cache_misses": m.SerpCacheMisses,
		"page_cache_hits":   m.PageCacheHits,
		"page_cache_misses": m.PageCacheMisses,
		"keywords_scored":   m.KeywordsScored,
		"keywords_failed":   m.KeywordsFailed,
		"briefs_generated":  m.BriefsGenerated,
	} {
		ch <- prometheus.MustNewConstMetric(monthlyDesc, prometheus.GaugeValue, float64(v), name)
	}
}

// EntryCounter reports how many entries a cache holds.
type EntryCounter interface {
	Count(ctx context.Context) (int, error)
}

// CacheCollector exposes the SERP cache size on each scrape.
type CacheCollector struct {
	cache  EntryCounter
	logger *zap.Logger
}

// Describe sends the metric descriptor to the channel.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cacheEntriesDesc
}

// Collect counts the cache entries. A failed count is logged and skipped.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := c.cache.Count(ctx)
	if err != nil {
		c.logger.Warn("failed to count cache entries", zap.Error(err))
		return
	}
	ch <- prometheus.MustNewConstMetric(cacheEntriesDesc, prometheus.GaugeValue, float64(n))
}

var (
	registerOnce      sync.Once
	registerCacheOnce sync.Once
)

// RegisterCache registers the SERP cache size gauge. Later calls are no-ops.
func RegisterCache(cache EntryCounter, logger *zap.Logger) {
	registerCacheOnce.Do(func() {
		prometheus.MustRegister(&CacheCollector{cache: cache, logger: logger.Named("metrics")})
	})
}

// Init registers all collectors with the default registry.
// Must be called once at startup; storage may be nil.
func Init(storage *stats.Storage) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			serpEnrichments,
			serpEnrichDuration,
			pageFetchFailures,
			keywordsScored,
			winScore,
			briefsGenerated,
		)
		if storage != nil {
			prometheus.MustRegister(&MonthlyCollector{storage: storage})
		}
	})
}

// ObserveEnrichment records one enrichment and, for fetches, its duration.
func ObserveEnrichment(source string, elapsed time.Duration) {
	serpEnrichments.WithLabelValues(source).Inc()
	if source != "cache" {
		serpEnrichDuration.Observe(elapsed.Seconds())
	}
}

// PageFetchFailed counts a page that could not be fetched or parsed.
func PageFetchFailed() {
	pageFetchFailures.Inc()
}

// KeywordScored records a scoring outcome and, on success, the win score.
func KeywordScored(outcome string, score float64) {
	keywordsScored.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		winScore.Observe(score)
	}
}

// BriefGenerated counts a generated brief.
func BriefGenerated(mode string) {
	briefsGenerated.WithLabelValues(mode).Inc()
}
