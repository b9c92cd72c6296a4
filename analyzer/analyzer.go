package analyzer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/metrics"
	"github.com/seo-forecaster/backend/stats"
	"github.com/seo-forecaster/backend/textfeatures"
)

const (
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes    = 5 << 20
	maxParagraphs   = 30
	minParagraphLen = 50
)

// Object pools for frequently allocated objects
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// ErrHTTPStatus is returned when a page responds with a non-2xx status.
var ErrHTTPStatus = errors.New("unexpected http status")

// Cache entry with expiration
type cacheEntry struct {
	page      *PageAnalysis
	timestamp time.Time
}

// Options tunes fetching and caching. Zero values fall back to defaults.
type Options struct {
	Timeout             time.Duration
	CacheTTL            time.Duration
	MaxCacheSize        int
	SyllableSampleWords int
	Client              *http.Client
}

// Analyzer fetches pages and extracts the content signals used for SERP
// medians and existing-page gap analysis.
type Analyzer struct {
	client          *http.Client
	extractor       *textfeatures.Extractor
	cache           map[string]cacheEntry
	cacheMutex      sync.RWMutex
	cacheTTL        time.Duration
	maxCacheSize    int
	cleanupInterval time.Duration
	stats           *stats.Storage
	logger          *zap.Logger
	done            chan struct{}
	stopOnce        sync.Once
}

// New creates a new Analyzer. st may be nil.
func New(opts Options, st *stats.Storage, logger *zap.Logger) *Analyzer {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	if opts.MaxCacheSize <= 0 {
		opts.MaxCacheSize = 1000
	}

	client := opts.Client
	if client == nil {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		client = &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		}
	}

	a := &Analyzer{
		client:          client,
		extractor:       textfeatures.New(opts.SyllableSampleWords),
		cache:           make(map[string]cacheEntry),
		cacheTTL:        opts.CacheTTL,
		maxCacheSize:    opts.MaxCacheSize,
		cleanupInterval: 5 * time.Minute,
		stats:           st,
		logger:          logger.Named("analyzer"),
		done:            make(chan struct{}),
	}

	go a.periodicCleanup()

	return a
}

func (a *Analyzer) periodicCleanup() {
	ticker := time.NewTicker(a.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.cleanup()
		case <-a.done:
			return
		}
	}
}

// cleanup removes expired entries and enforces the size limit, oldest first
func (a *Analyzer) cleanup() {
	now := time.Now()

	a.cacheMutex.Lock()
	defer a.cacheMutex.Unlock()

	for key, entry := range a.cache {
		if now.Sub(entry.timestamp) > a.cacheTTL {
			delete(a.cache, key)
		}
	}

	if len(a.cache) <= a.maxCacheSize {
		return
	}

	type keyed struct {
		key       string
		timestamp time.Time
	}
	entries := make([]keyed, 0, len(a.cache))
	for key, entry := range a.cache {
		entries = append(entries, keyed{key, entry.timestamp})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].timestamp.Before(entries[j].timestamp)
	})
	for i := 0; i < len(entries)-a.maxCacheSize; i++ {
		delete(a.cache, entries[i].key)
	}
}

// generateCacheKey creates a unique key for the URL
func generateCacheKey(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}

// Fetch downloads and analyzes pageURL, serving recent results from cache.
// Failed fetches are not cached.
func (a *Analyzer) Fetch(ctx context.Context, pageURL string) (*PageAnalysis, error) {
	cacheKey := generateCacheKey(pageURL)

	a.cacheMutex.RLock()
	entry, found := a.cache[cacheKey]
	a.cacheMutex.RUnlock()
	if found && time.Since(entry.timestamp) < a.cacheTTL {
		a.stats.Increment(stats.PageCacheHit, 1)
		return entry.page, nil
	}
	a.stats.Increment(stats.PageCacheMiss, 1)

	body, err := a.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	page, err := a.Analyze(pageURL, body)
	if err != nil {
		return nil, err
	}

	a.cacheMutex.Lock()
	a.cache[cacheKey] = cacheEntry{page: page, timestamp: time.Now()}
	over := len(a.cache) > a.maxCacheSize
	a.cacheMutex.Unlock()
	if over {
		a.cleanup()
	}

	return page, nil
}

func (a *Analyzer) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if _, err := io.Copy(buf, io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		return nil, err
	}

	// buf goes back to the pool; hand out a copy
	return bytes.Clone(buf.Bytes()), nil
}

// FetchMany fetches urls with at most limit requests in flight. The result
// at index i always belongs to urls[i]; failures yield a zero-valued page
// with Err set instead of aborting the batch.
func (a *Analyzer) FetchMany(ctx context.Context, urls []string, limit int) []*PageAnalysis {
	if limit <= 0 {
		limit = 1
	}
	results := make([]*PageAnalysis, len(urls))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, limit)

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[i] = failedPage(u, ctx.Err())
				return
			}

			page, err := a.Fetch(ctx, u)
			if err != nil {
				a.logger.Warn("page fetch failed", zap.String("url", u), zap.Error(err))
				metrics.PageFetchFailed()
				results[i] = failedPage(u, err)
				return
			}
			results[i] = page
		}(i, u)
	}
	wg.Wait()

	return results
}

// Analyze extracts page signals from raw HTML fetched from pageURL.
func (a *Analyzer) Analyze(pageURL string, html []byte) (*PageAnalysis, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &PageAnalysis{
		URL:       pageURL,
		FetchedAt: time.Now(),
	}

	page.Title = normalizeText(doc.Find("title").First().Text())
	page.MetaDescription, _ = doc.Find("meta[name='description']").Attr("content")
	page.MetaDescription = normalizeText(page.MetaDescription)
	page.InternalLinks, page.ExternalLinks = countLinks(doc, pageURL)
	page.SchemaTypes = schemaTypes(doc)
	page.SchemaTotal = len(page.SchemaTypes)
	page.SchemaUnique = countUnique(page.SchemaTypes)

	page.Headings, page.Outline = outline(doc)
	for _, h := range page.Headings {
		if h.Level == 1 {
			page.H1 = h.Text
			break
		}
	}

	stripNoise(doc)

	page.Paragraphs = paragraphs(doc)
	for _, p := range page.Paragraphs {
		if len(p) > minParagraphLen {
			page.FirstParagraph = p
			break
		}
	}

	page.MainText = a.mainText(pageURL, html, doc)
	page.Features = a.extractor.Extract(page.MainText)
	page.Language = DetectLanguage(page.MainText)

	return page, nil
}

// Shutdown stops the background cleanup and clears the cache.
func (a *Analyzer) Shutdown() {
	if a == nil {
		return
	}
	a.stopOnce.Do(func() { close(a.done) })

	a.cacheMutex.Lock()
	a.cache = make(map[string]cacheEntry)
	a.cacheMutex.Unlock()
}

// countLinks classifies anchors as internal (relative or same host) or external.
func countLinks(doc *goquery.Document, pageURL string) (internal, external int) {
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") ||
			strings.HasPrefix(lower, "tel:") {
			return
		}

		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if !u.IsAbs() {
			internal++
			return
		}
		if strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") == host {
			internal++
		} else {
			external++
		}
	})
	return internal, external
}

func countUnique(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
