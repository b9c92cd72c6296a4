package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/serp"
)

type stubClient struct {
	reply  string
	err    error
	prompt string
}

func (s *stubClient) Complete(_ context.Context, _, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func TestRuleClassifier(t *testing.T) {
	cases := []struct {
		keyword string
		intent  Intent
		format  string
	}{
		{"how to train a puppy", Informational, FormatHowTo},
		{"what is a crm", Informational, FormatDefinition},
		{"best running shoes", Commercial, FormatProduct},
		{"top crm tools", Commercial, FormatList},
		{"hubspot vs salesforce price", Commercial, FormatComparison},
		{"plumber near me", Transactional, FormatProduct},
		{"book a table", Transactional, FormatProduct},
		{"netflix login", Navigational, FormatArticle},
		{"showroom design", Informational, FormatArticle},
	}
	for _, tc := range cases {
		t.Run(tc.keyword, func(t *testing.T) {
			res, err := RuleClassifier{}.Classify(context.Background(), tc.keyword, SerpSummary{})
			require.NoError(t, err)
			assert.Equal(t, tc.intent, res.Intent)
			assert.Equal(t, tc.format, res.ContentFormat)
			assert.NotEmpty(t, res.QueryVariants)
		})
	}

	res, _ := RuleClassifier{}.Classify(context.Background(), "showroom design", SerpSummary{})
	assert.Equal(t, 0.4, res.Confidence, "no cue is a low-confidence default")

	res, _ = RuleClassifier{}.Classify(context.Background(), "best crm", SerpSummary{})
	assert.Equal(t, []string{"top crm"}, res.QueryVariants)
}

func TestLLMClassifier(t *testing.T) {
	t.Run("parses fenced json", func(t *testing.T) {
		client := &stubClient{reply: "Sure!\n```json\n{\"intent_type\": \"Commercial\", \"content_format\": \"comparison\", \"query_variants\": [\"crm compare\"], \"reasoning\": \"buyers\", \"confidence\": 0.9}\n```"}
		c := NewLLMClassifier(client, zap.NewNop())
		summary := SerpSummary{Titles: []string{"Best CRM 2026"}, Snippets: []string{"We tested 12 CRMs"}, Features: []string{serp.FeaturePAA}}

		res, err := c.Classify(context.Background(), "crm comparison", summary)
		require.NoError(t, err)
		assert.Equal(t, Commercial, res.Intent)
		assert.Equal(t, 0.9, res.Confidence)
		assert.Equal(t, FormatComparison, res.ContentFormat)
		assert.False(t, res.Override)
		assert.Contains(t, client.prompt, "Best CRM 2026")
		assert.Contains(t, client.prompt, serp.FeaturePAA)
	})

	t.Run("unknown label is an error", func(t *testing.T) {
		c := NewLLMClassifier(&stubClient{reply: `{"intent_type": "curious"}`}, zap.NewNop())
		_, err := c.Classify(context.Background(), "x", SerpSummary{})
		assert.Error(t, err)
	})

	t.Run("unknown format becomes article", func(t *testing.T) {
		c := NewLLMClassifier(&stubClient{reply: `{"intent_type": "navigational", "content_format": "podcast"}`}, zap.NewNop())
		res, err := c.Classify(context.Background(), "x", SerpSummary{})
		require.NoError(t, err)
		assert.Equal(t, FormatArticle, res.ContentFormat)
		assert.Equal(t, 0.8, res.Confidence)
	})
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, SerpSummary) (Result, error) {
	return Result{}, errors.New("down")
}

func TestWithFallback(t *testing.T) {
	t.Run("llm failure falls back to rules", func(t *testing.T) {
		failing := NewLLMClassifier(&stubClient{err: errors.New("503")}, zap.NewNop())
		res, err := WithFallback(failing, zap.NewNop()).Classify(context.Background(), "best crm", SerpSummary{})
		require.NoError(t, err)
		assert.Equal(t, Commercial, res.Intent)
		assert.Equal(t, 0.7, res.Confidence)
		assert.Equal(t, FormatProduct, res.ContentFormat)
	})

	t.Run("rules only", func(t *testing.T) {
		ok, err := WithFallback(RuleClassifier{}, zap.NewNop()).Classify(context.Background(), "best crm", SerpSummary{})
		require.NoError(t, err)
		assert.Equal(t, Commercial, ok.Intent)
	})

	t.Run("every classifier failing is informational", func(t *testing.T) {
		f := &fallback{chain: []Classifier{failingClassifier{}, failingClassifier{}}, logger: zap.NewNop()}
		res, err := f.Classify(context.Background(), "best crm", SerpSummary{})
		require.NoError(t, err)
		assert.Equal(t, Informational, res.Intent)
		assert.Equal(t, 0.0, res.Confidence)
		assert.Equal(t, "fallback", res.Reasoning)
	})
}

func TestBuildPromptKeepsRunesWhole(t *testing.T) {
	summary := SerpSummary{Titles: []string{strings.Repeat("é", 1500)}}
	prompt := buildPrompt("café", summary)
	assert.True(t, utf8.ValidString(prompt))
}

func TestFromClient(t *testing.T) {
	res, err := FromClient(nil, zap.NewNop()).Classify(context.Background(), "buy shoes", SerpSummary{})
	require.NoError(t, err)
	assert.Equal(t, Commercial, res.Intent)

	res, err = FromClient(&stubClient{err: errors.New("timeout")}, zap.NewNop()).Classify(context.Background(), "how to train a puppy", SerpSummary{})
	require.NoError(t, err)
	assert.Equal(t, Informational, res.Intent)
	assert.Equal(t, FormatHowTo, res.ContentFormat, "rules answered after the llm failed")
}

func TestParseAndOverride(t *testing.T) {
	i, ok := Parse(" Transactional ")
	assert.True(t, ok)
	assert.Equal(t, Transactional, i)
	_, ok = Parse("sideways")
	assert.False(t, ok)

	o := Override(Commercial, "")
	assert.True(t, o.Override)
	assert.Equal(t, 1.0, o.Confidence)
	assert.Equal(t, FormatComparison, o.ContentFormat)
}

func TestSummarize(t *testing.T) {
	s := &serp.EnrichedSerp{Features: serp.Features{Present: []string{serp.FeatureAds}}}
	for i := 0; i < 12; i++ {
		s.Competitors = append(s.Competitors, serp.Competitor{OrganicResult: serp.OrganicResult{Title: "t", Snippet: "s"}})
	}
	sum := Summarize(s)
	assert.Len(t, sum.Titles, 10)
	assert.Equal(t, []string{serp.FeatureAds}, sum.Features)
	assert.Empty(t, Summarize(nil).Titles)
}
