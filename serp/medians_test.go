package serp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seo-forecaster/backend/analyzer"
	"github.com/seo-forecaster/backend/textfeatures"
)

func page(wc int, flesch float64) *analyzer.PageAnalysis {
	return &analyzer.PageAnalysis{
		Features:     textfeatures.Features{WordCount: wc, SentenceCount: wc / 20, AvgWordsPerSentence: 20, Flesch: flesch},
		SchemaTotal:  2,
		SchemaUnique: 1,
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 2.5, Median(values))
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 4.0, Percentile(values, 100))
	assert.InDelta(t, 1.75, Percentile(values, 25), 1e-9)
	assert.Equal(t, []float64{4, 1, 3, 2}, values, "input must not be reordered")
	assert.Equal(t, 0.0, Median(nil))
}

func TestComputeMedians(t *testing.T) {
	competitors := []Competitor{
		{Authority: Authority{DT: 60, RefDomains: 100, Known: true}, Page: page(1000, 50)},
		{Authority: Authority{DT: 40, RefDomains: 50, Known: true}, Page: page(2000, 60), SemanticScore: 0.8},
		{Page: page(3000, 70), SemanticScore: 0.6},
		{Authority: Authority{DT: 10, Known: true}, Page: &analyzer.PageAnalysis{Err: "timeout"}},
	}

	m := ComputeMedians(competitors, 10, DefaultGuards())
	assert.Equal(t, 3, m.ValidEntries)
	assert.Equal(t, 40.0, m.DT)
	assert.Equal(t, 50.0, m.RefDomains)
	assert.Equal(t, 2000.0, m.WordCount)
	assert.Equal(t, 60.0, m.Flesch)
	assert.InDelta(t, 0.7, m.Semantic, 1e-9)
	assert.Empty(t, m.Defaulted)
	assert.Empty(t, m.Guarded)

	t.Run("topN truncates before aggregation", func(t *testing.T) {
		m := ComputeMedians(competitors, 1, DefaultGuards())
		assert.Equal(t, 1000.0, m.WordCount)
		assert.Equal(t, 60.0, m.DT)
	})

	t.Run("nothing valid falls back to defaults", func(t *testing.T) {
		m := ComputeMedians([]Competitor{{Page: &analyzer.PageAnalysis{Err: "boom"}}}, 10, DefaultGuards())
		def := DefaultMedians()
		assert.Equal(t, def.WordCount, m.WordCount)
		assert.Equal(t, def.DT, m.DT)
		assert.Equal(t, []string{"authority", "content"}, m.Defaulted)
	})
}

func TestApplyGuards(t *testing.T) {
	competitors := []Competitor{{Page: page(50, 2)}, {Page: page(60, 4)}}
	m := ComputeMedians(competitors, 10, DefaultGuards())
	assert.Equal(t, 55.0, m.Flesch)
	assert.Equal(t, 1500.0, m.WordCount)
	assert.Equal(t, []string{"flesch_reading_ease_score", "word_count"}, m.Guarded)

	m.ApplyGuards(DefaultGuards())
	assert.Len(t, m.Guarded, 2, "guards are idempotent")

	unguarded := ComputeMedians(competitors, 10, Guards{})
	assert.Equal(t, 3.0, unguarded.Flesch)
	assert.Empty(t, unguarded.Guarded)
}

func TestIsGiantDomain(t *testing.T) {
	assert.True(t, IsGiantDomain("en.wikipedia.org"))
	assert.True(t, IsGiantDomain("blog.hubspot.com"))
	assert.False(t, IsGiantDomain("example.com"))
	assert.False(t, IsGiantDomain(""))
}

func TestNewKey(t *testing.T) {
	assert.Equal(t, Key{Keyword: "best crm tools", Domain: "example.com"}, NewKey("  Best   CRM tools ", "https://www.Example.com/path"))
}
