package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/stats"
)

const samplePage = `<!doctype html>
<html><head>
<title>Best Running Shoes for 2024</title>
<meta name="description" content="We tested dozens of running shoes to find the best.">
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Article","author":{"@type":"Person","name":"Sam"}}</script>
</head>
<body>
<nav class="site-nav"><h2>Menu</h2><a href="/shop">Shop</a></nav>
<article itemscope itemtype="https://schema.org/Review">
<header><h1>The Best Running Shoes</h1></header>
<p>Choosing running shoes is personal, and the right pair depends on your gait, the surfaces you run on and how many miles you log each week. We spent three months testing shoes on roads and trails.</p>
<h2>How We Tested</h2>
<p>Every shoe was worn for at least fifty miles by two testers. We measured cushioning, stability, weight and durability, and we noted how each shoe felt at easy and tempo paces.</p>
<h3>Road Tests</h3>
<p>Road testing happened on asphalt loops. Testers logged pace, comfort and any hot spots after each run.</p>
<h3>Trail Tests</h3>
<p>Trail testing covered rocky and muddy terrain so we could judge grip and protection underfoot.</p>
<h2>Best Overall</h2>
<p>Our top pick balances soft cushioning with a stable ride. It works for daily training and long runs alike, and it held up well after many miles. <a href="/reviews/top-pick">Read the full review</a> or <a href="https://brand.example.com/shoe">buy it here</a>.</p>
<p><a href="#top">Back to top</a> <a href="mailto:hi@example.com">Email</a> <a href="https://www.shoes.test/about">About</a></p>
</article>
<footer class="footer"><h2>Footer links</h2><p>Copyright</p></footer>
</body></html>`

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	st, err := stats.NewStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Shutdown() })

	a := New(Options{}, st, zap.NewNop())
	t.Cleanup(a.Shutdown)
	return a
}

func TestAnalyze(t *testing.T) {
	a := newTestAnalyzer(t)

	page, err := a.Analyze("https://www.shoes.test/best-running-shoes", []byte(samplePage))
	require.NoError(t, err)

	assert.Equal(t, "Best Running Shoes for 2024", page.Title)
	assert.Equal(t, "The Best Running Shoes", page.H1)
	assert.Equal(t, "We tested dozens of running shoes to find the best.", page.MetaDescription)

	require.Len(t, page.Outline, 2)
	assert.Equal(t, []string{"How We Tested", "Best Overall"}, page.H2s())
	assert.Equal(t, []string{"Road Tests", "Trail Tests"}, page.Outline[0].Subheadings)

	assert.True(t, strings.HasPrefix(page.FirstParagraph, "Choosing running shoes"))
	assert.Equal(t, []string{"Article", "Person", "Review"}, page.SchemaTypes)
	assert.Equal(t, 3, page.SchemaTotal)
	assert.Equal(t, 3, page.SchemaUnique)

	// /shop, /reviews/top-pick and the www.shoes.test link are internal
	assert.Equal(t, 3, page.InternalLinks)
	assert.Equal(t, 1, page.ExternalLinks)

	assert.True(t, page.Valid())
	assert.Greater(t, page.Features.WordCount, 80)
	assert.NotContains(t, page.MainText, "Copyright")
	assert.Equal(t, "en", page.Language)
}

func TestFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(samplePage))
		}
	}))
	defer srv.Close()

	t.Run("caches successful fetches", func(t *testing.T) {
		a := newTestAnalyzer(t)
		first, err := a.Fetch(context.Background(), srv.URL+"/page")
		require.NoError(t, err)
		second, err := a.Fetch(context.Background(), srv.URL+"/page")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), hits.Load())
		assert.Equal(t, 1, a.stats.GetCurrentStats().PageCacheHits)
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		a := newTestAnalyzer(t)
		_, err := a.Fetch(context.Background(), srv.URL+"/missing")
		assert.ErrorIs(t, err, ErrHTTPStatus)
	})

	t.Run("FetchMany keeps pairing and degrades failures", func(t *testing.T) {
		a := newTestAnalyzer(t)
		urls := []string{srv.URL + "/a", srv.URL + "/missing", srv.URL + "/b"}
		pages := a.FetchMany(context.Background(), urls, 2)

		require.Len(t, pages, 3)
		for i, p := range pages {
			assert.Equal(t, urls[i], p.URL)
		}
		assert.True(t, pages[0].Valid())
		assert.False(t, pages[1].Valid())
		assert.NotEmpty(t, pages[1].Err)
		assert.Zero(t, pages[1].Features.WordCount)
		assert.True(t, pages[2].Valid())
	})

	t.Run("FetchMany honours cancellation", func(t *testing.T) {
		a := newTestAnalyzer(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pages := a.FetchMany(ctx, []string{srv.URL + "/x", srv.URL + "/y"}, 1)
		for _, p := range pages {
			assert.False(t, p.Valid())
		}
	})
}

func TestCacheCleanup(t *testing.T) {
	a := newTestAnalyzer(t)
	a.maxCacheSize = 2

	for _, u := range []string{"a", "b", "c"} {
		a.cache[generateCacheKey(u)] = cacheEntry{page: &PageAnalysis{URL: u}}
	}
	a.cleanup()

	assert.Len(t, a.cache, 0, "zero timestamps are expired")
}

func TestCountLinks(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
<a href="/x">x</a><a href="page.html">rel</a><a href="//cdn.other.test/a">cdn</a>
<a href="https://site.test/y">same</a><a href="javascript:void(0)">js</a><a href="#frag">f</a>`))
	require.NoError(t, err)

	internal, external := countLinks(doc, "https://www.site.test/")
	assert.Equal(t, 3, internal)
	assert.Equal(t, 1, external)
}

func TestSchemaTypes(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[{"@type":["Product","Thing"],"offers":{"@type":"Offer"}},{"@type":"BreadcrumbList"}]}</script>
<script type="application/ld+json">{"@type": "FAQPage", broken</script>
<script type="text/javascript">var x = {"@type": "NotSchema"};</script>
</head><body><div itemscope itemtype="http://schema.org/Organization"></div></body></html>`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Product", "Thing", "Offer", "BreadcrumbList", "FAQPage", "Organization"}, schemaTypes(doc))
}
