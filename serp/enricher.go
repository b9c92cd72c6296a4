package serp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/analyzer"
	"github.com/seo-forecaster/backend/metrics"
	"github.com/seo-forecaster/backend/semantic"
	"github.com/seo-forecaster/backend/stats"
	"github.com/seo-forecaster/backend/textfeatures"
)

// PageFetcher fetches competitor pages; result i belongs to urls[i].
type PageFetcher interface {
	FetchMany(ctx context.Context, urls []string, limit int) []*analyzer.PageAnalysis
}

// EnricherConfig tunes enrichment.
type EnricherConfig struct {
	Location         string
	ResultsCount     int
	TopN             int
	FetchConcurrency int
	Guards           Guards
}

// Enricher builds and caches EnrichedSerp entries.
type Enricher struct {
	cfg       EnricherConfig
	provider  Provider
	authority AuthorityProvider
	pages     PageFetcher
	cache     Cache
	embedder  semantic.Embedder
	stats     *stats.Storage
	locks     *keyLocks
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures optional Enricher collaborators.
type Option func(*Enricher)

// WithEmbedder enables per-competitor semantic scores.
func WithEmbedder(e semantic.Embedder) Option {
	return func(en *Enricher) { en.embedder = e }
}

// WithStats records cache hits and misses.
func WithStats(s *stats.Storage) Option {
	return func(en *Enricher) { en.stats = s }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(en *Enricher) { en.now = now }
}

// NewEnricher creates an Enricher. authority may be nil, in which case all
// authority metrics are unknown.
func NewEnricher(cfg EnricherConfig, provider Provider, authority AuthorityProvider, pages PageFetcher, cache Cache, logger *zap.Logger, opts ...Option) *Enricher {
	if cfg.Location == "" {
		cfg.Location = "United States"
	}
	if cfg.ResultsCount <= 0 {
		cfg.ResultsCount = 10
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 5
	}
	e := &Enricher{
		cfg:       cfg,
		provider:  provider,
		authority: authority,
		pages:     pages,
		cache:     cache,
		locks:     newKeyLocks(),
		logger:    logger.Named("enricher"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns the enrichment for (keyword, domain). A cached entry is
// returned unchanged unless force is set. Provider failures degrade to an
// empty enrichment, which is returned but never cached; a forced refresh
// that comes back empty evicts the stale entry instead. The only errors are
// cancellation and an empty keyword.
func (e *Enricher) Enrich(ctx context.Context, keyword, domain string, force bool) (*EnrichedSerp, error) {
	key := NewKey(keyword, domain)
	if key.Keyword == "" {
		return nil, ErrEmptyKeyword
	}

	release, err := e.locks.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	if !force {
		if cached, ok := e.cached(ctx, key); ok {
			return cached, nil
		}
	}
	e.stats.Increment(stats.SerpCacheMiss, 1)

	start := time.Now()
	entry, err := e.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	if entry.Empty() {
		metrics.ObserveEnrichment("fetch_empty", time.Since(start))
		e.logger.Warn("enrichment has no organic results, not caching",
			zap.String("keyword", key.Keyword), zap.String("note", entry.ProviderNote))
		if force {
			if err := e.cache.Delete(ctx, key); err != nil {
				e.logger.Warn("failed to evict stale enrichment", zap.String("keyword", key.Keyword), zap.Error(err))
			}
		}
		return entry, nil
	}
	metrics.ObserveEnrichment("fetch", time.Since(start))

	if err := e.cache.Put(ctx, key, entry); err != nil {
		e.logger.Warn("failed to cache enrichment", zap.String("keyword", key.Keyword), zap.Error(err))
	}
	return entry, nil
}

func (e *Enricher) cached(ctx context.Context, key Key) (*EnrichedSerp, bool) {
	entry, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("cache read failed, refetching", zap.String("keyword", key.Keyword), zap.Error(err))
		return nil, false
	}
	if !ok || entry == nil {
		return nil, false
	}
	e.stats.Increment(stats.SerpCacheHit, 1)
	metrics.ObserveEnrichment("cache", 0)

	before := len(entry.Medians.Guarded)
	out := *entry
	out.Medians.Guarded = slices.Clone(entry.Medians.Guarded)
	out.Medians.ApplyGuards(e.cfg.Guards)
	if len(out.Medians.Guarded) != before {
		e.logger.Warn("cached medians failed sanity checks",
			zap.String("keyword", key.Keyword), zap.Strings("guarded", out.Medians.Guarded))
		return &out, true
	}
	return entry, true
}

func (e *Enricher) fetch(ctx context.Context, key Key) (*EnrichedSerp, error) {
	entry := &EnrichedSerp{
		Keyword:   key.Keyword,
		Domain:    key.Domain,
		FetchedAt: e.now().UTC(),
	}

	res, err := e.provider.Search(ctx, Query{Keyword: key.Keyword, Location: e.cfg.Location, Num: e.cfg.ResultsCount})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		entry.ProviderNote = err.Error()
	}
	if res == nil {
		res = &SearchResult{}
	}
	if err == nil && len(res.Organic) == 0 {
		entry.ProviderNote = ErrNoResults.Error()
	}
	entry.Features = res.Features

	organic := res.Organic
	if len(organic) > e.cfg.TopN {
		organic = organic[:e.cfg.TopN]
	}

	urls := make([]string, len(organic))
	for i, o := range organic {
		urls[i] = o.URL
	}
	pages := e.pages.FetchMany(ctx, urls, e.cfg.FetchConcurrency)

	domains := []string{key.Domain}
	for _, o := range organic {
		domains = append(domains, ExtractDomain(o.URL))
	}
	authority := e.lookupAuthority(ctx, domains)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	for i, o := range organic {
		d := ExtractDomain(o.URL)
		c := Competitor{
			OrganicResult: o,
			Domain:        d,
			Authority:     authority[d],
			Page:          pages[i],
			Giant:         IsGiantDomain(d),
		}
		if c.Giant {
			entry.GiantBrands++
		}
		entry.Competitors = append(entry.Competitors, c)
	}
	entry.Target = authority[key.Domain]

	e.scoreSemantics(ctx, key.Keyword, entry.Competitors)

	entry.Medians = ComputeMedians(entry.Competitors, e.cfg.TopN, e.cfg.Guards)
	if len(entry.Medians.Guarded) > 0 {
		e.logger.Warn("medians replaced by sanity guards",
			zap.String("keyword", key.Keyword), zap.Strings("guarded", entry.Medians.Guarded))
	}
	return entry, nil
}

// lookupAuthority fetches each distinct domain once with bounded concurrency.
func (e *Enricher) lookupAuthority(ctx context.Context, domains []string) map[string]Authority {
	out := make(map[string]Authority, len(domains))
	if e.authority == nil {
		return out
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.cfg.FetchConcurrency)
	seen := make(map[string]bool, len(domains))

	for _, d := range domains {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true

		wg.Add(1)
		go func(d string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			a, err := e.authority.Authority(ctx, d)
			if err != nil {
				if !errors.Is(err, ErrNotConfigured) {
					e.logger.Debug("authority unknown", zap.String("domain", d), zap.Error(err))
				}
				return
			}
			mu.Lock()
			out[d] = a
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	return out
}

func (e *Enricher) scoreSemantics(ctx context.Context, keyword string, competitors []Competitor) {
	if e.embedder == nil {
		return
	}
	var idx []int
	var docs []string
	for i, c := range competitors {
		if !c.Valid() {
			continue
		}
		idx = append(idx, i)
		docs = append(docs, PageTopicText(c.Page))
	}
	if len(docs) == 0 {
		return
	}

	scores, err := semantic.Similarities(ctx, e.embedder, keyword, docs)
	if err != nil {
		e.logger.Warn("semantic scoring failed", zap.String("keyword", keyword), zap.Error(err))
		return
	}
	for j, i := range idx {
		competitors[i].SemanticScore = scores[j]
	}
}

// PageTopicText is the text compared against the keyword: title, H1 and
// the first five paragraphs.
func PageTopicText(p *analyzer.PageAnalysis) string {
	parts := []string{p.Title, p.H1}
	parts = append(parts, firstN(p.Paragraphs, 5)...)
	return textfeatures.Truncate(strings.Join(parts, "\n"), semantic.MaxInputChars)
}

// String is used in logs.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s", k.Keyword, k.Domain)
}
