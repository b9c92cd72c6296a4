// Package brief turns an enriched SERP into a content brief: an outline
// with word-count targets, topics, SERP-feature opportunities and, for an
// existing page, a gap analysis and improvement plan.
package brief

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/analyzer"
	"github.com/seo-forecaster/backend/intent"
	"github.com/seo-forecaster/backend/metrics"
	"github.com/seo-forecaster/backend/semantic"
	"github.com/seo-forecaster/backend/serp"
	"github.com/seo-forecaster/backend/stats"
)

// PageFetcher fetches and analyzes a single page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*analyzer.PageAnalysis, error)
}

// Request is one brief to synthesize.
type Request struct {
	KeywordID uint
	Keyword   string
	Serp      *serp.EnrichedSerp
	// Target defaults to NewPage.
	Target Target
	// TargetIntent, when set, overrides classification.
	TargetIntent string
}

// Synthesizer builds content briefs.
type Synthesizer struct {
	classifier intent.Classifier
	pages      PageFetcher
	writer     Writer
	embedder   semantic.Embedder
	stats      *stats.Storage
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithWriter sets the Writer used for titles and descriptions.
func WithWriter(w Writer) Option {
	return func(s *Synthesizer) { s.writer = w }
}

// WithEmbedder enables the semantic gap for existing pages.
func WithEmbedder(e semantic.Embedder) Option {
	return func(s *Synthesizer) { s.embedder = e }
}

// WithStats records generated briefs in st.
func WithStats(st *stats.Storage) Option {
	return func(s *Synthesizer) { s.stats = st }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// NewSynthesizer creates a Synthesizer. A nil classifier falls back to
// keyword rules.
func NewSynthesizer(classifier intent.Classifier, pages PageFetcher, logger *zap.Logger, opts ...Option) *Synthesizer {
	if classifier == nil {
		classifier = intent.WithFallback(intent.RuleClassifier{}, logger)
	}
	s := &Synthesizer{
		classifier: classifier,
		pages:      pages,
		logger:     logger.Named("brief"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds a brief. It returns ErrInvalidInput for malformed
// requests and ErrUpstreamUnavailable when the SERP came back empty or an
// existing page cannot be fetched. Writer failures only fall back to
// default copy.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*ContentBrief, error) {
	b, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}

	s.stats.Increment(stats.BriefGenerated, 1)
	metrics.BriefGenerated(b.ModeName())
	s.logger.Info("brief generated",
		zap.String("keyword", b.Keyword),
		zap.String("mode", b.ModeName()),
		zap.String("intent", string(b.Intent.Intent)),
		zap.Int("sections", len(b.Sections)),
		zap.Int("target_words", b.Strategy.WordCount.Target))
	return b, nil
}

// ImprovementPlan diffs the page at url against the SERP without
// producing a stored brief.
func (s *Synthesizer) ImprovementPlan(ctx context.Context, keyword string, sp *serp.EnrichedSerp, url string) (*ExistingContent, error) {
	b, err := s.build(ctx, Request{Keyword: keyword, Serp: sp, Target: ExistingPage{URL: url}})
	if err != nil {
		return nil, err
	}
	ex, _ := b.Existing()
	return ex, nil
}

func (s *Synthesizer) build(ctx context.Context, req Request) (*ContentBrief, error) {
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty keyword", ErrInvalidInput)
	}
	if req.Serp == nil {
		return nil, fmt.Errorf("%w: no SERP data for %q", ErrInvalidInput, keyword)
	}
	if req.Serp.Empty() {
		note := req.Serp.ProviderNote
		if note == "" {
			note = "no organic results"
		}
		return nil, fmt.Errorf("%w: SERP for %q: %s", ErrUpstreamUnavailable, keyword, note)
	}
	target := req.Target
	if target == nil {
		target = NewPage{}
	}

	var override *intent.Result
	if req.TargetIntent != "" {
		i, ok := intent.Parse(req.TargetIntent)
		if !ok {
			return nil, fmt.Errorf("%w: unknown intent %q", ErrInvalidInput, req.TargetIntent)
		}
		r := intent.Override(i, "")
		override = &r
	}

	var page *analyzer.PageAnalysis
	if ep, ok := target.(ExistingPage); ok {
		p, err := s.fetchExisting(ctx, ep.URL)
		if err != nil {
			return nil, err
		}
		page = p
	}

	res, err := s.classify(ctx, keyword, req.Serp, override)
	if err != nil {
		return nil, err
	}

	kwTokens := toSet(tokens(keyword))
	strategy := buildStrategy(res, req.Serp)
	b := &ContentBrief{
		ID:            uuid.NewString(),
		KeywordID:     req.KeywordID,
		Keyword:       keyword,
		Language:      serpLanguage(req.Serp),
		Intent:        res,
		Strategy:      strategy,
		Sections:      outline(req.Serp, kwTokens, strategy.WordCount.Target),
		Topics:        buildTopics(req.Serp, kwTokens),
		Opportunities: buildOpportunities(keyword, req.Serp.Features),
		SerpFeatures:  req.Serp.Features.Present,
		CreatedAt:     s.now().UTC(),
		Mode:          NewContent{},
	}
	b.Questions = questions(req.Serp.Features, b.Sections, kwTokens)
	applyCopy(b, s.write(ctx, b))

	if page != nil {
		b.Mode = s.analyzeExisting(ctx, b, req.Serp, page, kwTokens)
	}
	return b, nil
}

func (s *Synthesizer) fetchExisting(ctx context.Context, url string) (*analyzer.PageAnalysis, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: existing mode requires a URL", ErrInvalidInput)
	}
	if s.pages == nil {
		return nil, fmt.Errorf("%w: no page fetcher configured", ErrUpstreamUnavailable)
	}
	page, err := s.pages.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("existing page fetch failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, url, err)
	}
	if !page.Valid() {
		return nil, fmt.Errorf("%w: %s has no readable content", ErrUpstreamUnavailable, url)
	}
	return page, nil
}

func (s *Synthesizer) classify(ctx context.Context, keyword string, sp *serp.EnrichedSerp, override *intent.Result) (intent.Result, error) {
	if override != nil {
		return *override, nil
	}
	res, err := s.classifier.Classify(ctx, keyword, intent.Summarize(sp))
	if err != nil {
		if ctx.Err() != nil {
			return intent.Result{}, ctx.Err()
		}
		s.logger.Warn("intent classification failed, using rules", zap.String("keyword", keyword), zap.Error(err))
		res, _ = intent.RuleClassifier{}.Classify(ctx, keyword, intent.SerpSummary{})
	}
	return res, nil
}

// write asks the Writer for copy. Any failure yields an empty Copy so the
// defaults stand.
func (s *Synthesizer) write(ctx context.Context, b *ContentBrief) Copy {
	if s.writer == nil {
		return Copy{}
	}
	d := Draft{
		Keyword:  b.Keyword,
		Intent:   b.Intent,
		Language: b.Language,
		Topics:   b.Topics.MustCover,
	}
	for _, sec := range b.Sections {
		d.Headings = append(d.Headings, sec.Heading)
	}
	for _, q := range b.Questions {
		d.Questions = append(d.Questions, q.Question)
	}
	c, err := s.writer.Write(ctx, d)
	if err != nil {
		s.logger.Warn("brief writer failed, using default copy", zap.String("keyword", b.Keyword), zap.Error(err))
		return Copy{}
	}
	return c
}

// serpLanguage detects the language of the competitor titles and snippets.
func serpLanguage(sp *serp.EnrichedSerp) string {
	var parts []string
	for _, c := range sp.Competitors {
		parts = append(parts, c.Title, c.Snippet)
	}
	return analyzer.DetectLanguage(strings.Join(parts, "\n"))
}
