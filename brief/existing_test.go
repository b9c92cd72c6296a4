package brief

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/analyzer"
	"github.com/seo-forecaster/backend/textfeatures"
)

const longOpening = "Our store has been selling footwear since 1990, and over the years we have learned a great deal about what makes a comfortable shoe for every kind of athlete."

func existingPage() *analyzer.PageAnalysis {
	return &analyzer.PageAnalysis{
		URL:   "https://shop.example.com/running",
		Title: "Running Shoes",
		Headings: []analyzer.Heading{
			{Level: 1, Text: "Running Shoes"},
			{Level: 2, Text: "How We Test"},
			{Level: 2, Text: "Our Favorite Cushioned Models"},
			{Level: 2, Text: "Company History"},
		},
		Outline: []analyzer.Section{
			{Heading: "How We Test"},
			{Heading: "Our Favorite Cushioned Models"},
			{Heading: "Company History"},
		},
		FirstParagraph: longOpening,
		Paragraphs:     []string{longOpening},
		MainText:       longOpening + " We review shoes for comfort.",
		Features:       textfeatures.Features{WordCount: 800, SentenceCount: 40, AvgWordsPerSentence: 20, Flesch: 40},
		InternalLinks:  18,
		SchemaTotal:    3,
	}
}

func TestSynthesizeExisting(t *testing.T) {
	s := NewSynthesizer(commercial(), stubPages{page: existingPage()}, zap.NewNop(),
		WithEmbedder(stubEmbedder{vecs: [][]float32{{1, 0}, {0.6, 0.8}}}))

	b, err := s.Synthesize(context.Background(), Request{
		Keyword: "running shoes",
		Serp:    fixtureSerp(),
		Target:  ExistingPage{URL: "https://shop.example.com/running"},
	})
	require.NoError(t, err)
	assert.Equal(t, ModeExisting, b.ModeName())
	ex, ok := b.Existing()
	require.True(t, ok)
	assert.Equal(t, "https://shop.example.com/running", ex.URL)

	t.Run("gaps", func(t *testing.T) {
		assert.Equal(t, Gap{Current: 800, Target: 1800, Delta: 1000, Action: ActionIncrease}, ex.Gaps.WordCount)
		assert.Equal(t, Gap{Current: 40, Target: 60, Delta: 20, Action: ActionSimplify}, ex.Gaps.Readability)
		assert.Equal(t, ActionMaintain, ex.Gaps.InternalLinks.Action)
		assert.Equal(t, 2.0, ex.Gaps.InternalLinks.Delta)
		assert.Equal(t, ActionMaintain, ex.Gaps.Schema.Action)
		require.NotNil(t, ex.Gaps.Semantic)
		assert.Equal(t, ActionIncrease, ex.Gaps.Semantic.Action)
		assert.InDelta(t, 0.2, ex.Gaps.Semantic.Delta, 1e-9)
	})

	t.Run("section statuses", func(t *testing.T) {
		got := map[string]Status{}
		var order []string
		for _, st := range ex.Sections {
			got[st.Heading] = st.Status
			order = append(order, st.Heading)
		}
		assert.Equal(t, StatusKeep, got[introHeading])
		assert.Equal(t, StatusKeep, got["How We Test"])
		assert.Equal(t, StatusModify, got["Best Cushioned Shoes"])
		assert.Equal(t, StatusAdd, got["Buying Guide"])
		assert.Equal(t, StatusAdd, got[faqHeading])
		assert.Equal(t, StatusRemove, got["Company History"])
		assert.Equal(t, "Company History", order[len(order)-1], "removals come last")
		assert.NotContains(t, got, "Our Favorite Cushioned Models")
	})

	t.Run("annotations", func(t *testing.T) {
		byElement := map[string]Annotation{}
		for _, a := range ex.Annotations {
			byElement[a.Element] = a
		}

		title := byElement["title"]
		assert.Equal(t, "Running Shoes", title.Original)
		assert.Equal(t, b.Title, title.Improved)
		assert.Contains(t, title.Reason, "shorter than 30")
		assert.NotContains(t, title.Reason, "keyword")

		meta := byElement["meta_description"]
		assert.Empty(t, meta.Original)
		assert.Contains(t, meta.Reason, "missing")

		opening := byElement["first_paragraph"]
		assert.Equal(t, longOpening, opening.Original)
		assert.True(t, strings.HasPrefix(opening.Improved, "Running Shoes: Our store has been selling footwear since 1990."))
		assert.Contains(t, opening.Improved, "And over the years")
		assert.Contains(t, opening.Reason, "does not mention the keyword")

		heading := byElement["heading"]
		assert.Equal(t, "Our Favorite Cushioned Models", heading.Original)
		assert.Equal(t, "Best Cushioned Shoes", heading.Improved)
	})

	t.Run("plan", func(t *testing.T) {
		plan := ex.Plan
		for i := 1; i < len(plan.Items); i++ {
			assert.LessOrEqual(t, plan.Items[i-1].Priority.rank(), plan.Items[i].Priority.rank())
		}
		assert.LessOrEqual(t, len(plan.PriorityActions), maxPriorityActions)
		assert.Equal(t, plan.Items[:len(plan.PriorityActions)], plan.PriorityActions)

		byMetric := map[string]PlanItem{}
		for _, it := range plan.Items {
			byMetric[it.Metric] = it
		}
		assert.Equal(t, PriorityHigh, byMetric["word_count"].Priority)
		assert.Equal(t, 1000.0, byMetric["word_count"].Delta)
		assert.Equal(t, PriorityHigh, byMetric["readability"].Priority)
		assert.Equal(t, PriorityMedium, byMetric["internal_links"].Priority)
		assert.Equal(t, PriorityLow, byMetric["schema"].Priority)
		assert.Equal(t, PriorityHigh, byMetric["semantic"].Priority)

		assert.Contains(t, plan.MissingTopics, "best")
		assert.NotContains(t, plan.MissingTopics, "cushioned")
		topics, ok := byMetric["topics"]
		require.True(t, ok)
		if len(plan.MissingTopics) >= missingTopicsHigh {
			assert.Equal(t, PriorityHigh, topics.Priority)
		} else {
			assert.Equal(t, PriorityMedium, topics.Priority)
		}
		assert.Equal(t, "schema", plan.Items[len(plan.Items)-1].Metric)
	})
}

func TestSynthesizeExistingFetchFailure(t *testing.T) {
	s := NewSynthesizer(commercial(), stubPages{err: errors.New("connection refused")}, zap.NewNop())
	_, err := s.Synthesize(context.Background(), Request{Keyword: "running shoes", Serp: fixtureSerp(), Target: ExistingPage{URL: "https://down.example.com"}})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	s = NewSynthesizer(commercial(), stubPages{page: &analyzer.PageAnalysis{URL: "https://empty.example.com"}}, zap.NewNop())
	_, err = s.Synthesize(context.Background(), Request{Keyword: "running shoes", Serp: fixtureSerp(), Target: ExistingPage{URL: "https://empty.example.com"}})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestImprovementPlan(t *testing.T) {
	s := NewSynthesizer(commercial(), stubPages{page: existingPage()}, zap.NewNop())
	ex, err := s.ImprovementPlan(context.Background(), "running shoes", fixtureSerp(), "https://shop.example.com/running")
	require.NoError(t, err)
	assert.Nil(t, ex.Gaps.Semantic, "no embedder, no semantic gap")
	assert.NotEmpty(t, ex.Plan.PriorityActions)
	assert.Equal(t, "word_count", ex.Plan.PriorityActions[0].Metric)
}

func TestGapActions(t *testing.T) {
	cases := []struct {
		name            string
		current, target float64
		want            string
	}{
		{"well below", 800, 1800, ActionIncrease},
		{"within band", 1700, 1800, ActionMaintain},
		{"inside band", 1630, 1800, ActionMaintain},
		{"well above", 2500, 1800, ActionDecrease},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, countGap(tc.current, tc.target).Action)
		})
	}

	assert.Equal(t, ActionMaintain, additiveGap(40, 20).Action, "more links than the SERP is fine")
	assert.Equal(t, ActionSimplify, readabilityGap(50, 60).Action)
	assert.Equal(t, ActionMaintain, readabilityGap(55, 60).Action)
	assert.Equal(t, ActionAddDepth, readabilityGap(70, 60).Action)
}

func TestPriorities(t *testing.T) {
	assert.Equal(t, PriorityHigh, relativePriority(-300, 1000))
	assert.Equal(t, PriorityMedium, relativePriority(100, 1000))
	assert.Equal(t, PriorityLow, relativePriority(99, 1000))
	assert.Equal(t, PriorityLow, relativePriority(5, 0))
	assert.Equal(t, PriorityHigh, semanticPriority(-0.1))
	assert.Equal(t, PriorityMedium, semanticPriority(0.05))
	assert.Equal(t, PriorityLow, semanticPriority(0.049))
}

func TestRewriteOpening(t *testing.T) {
	got := rewriteOpening("crm", "Short one. This sentence, which is long, goes on.", 3, true)
	assert.Equal(t, "Crm: Short one. This sentence. Which is long. Goes on.", got)
}
