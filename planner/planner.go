// Package planner ties enrichment, scoring and brief synthesis to the
// record store.
package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/brief"
	"github.com/seo-forecaster/backend/logging"
	"github.com/seo-forecaster/backend/scoring"
	"github.com/seo-forecaster/backend/serp"
	"github.com/seo-forecaster/backend/store"
)

// Enricher returns the enriched SERP for a keyword and target domain.
type Enricher interface {
	Enrich(ctx context.Context, keyword, domain string, force bool) (*serp.EnrichedSerp, error)
}

// Scorer scores one keyword against its SERP.
type Scorer interface {
	Score(ctx context.Context, keyword string, s *serp.EnrichedSerp, profile *scoring.ClientProfile) (*scoring.KeywordScore, error)
}

// Synthesizer builds briefs and improvement plans.
type Synthesizer interface {
	Synthesize(ctx context.Context, req brief.Request) (*brief.ContentBrief, error)
	ImprovementPlan(ctx context.Context, keyword string, sp *serp.EnrichedSerp, url string) (*brief.ExistingContent, error)
}

// Planner runs the keyword workflows.
type Planner struct {
	store    *store.Store
	enricher Enricher
	scorer   Scorer
	runner   *scoring.Runner
	briefs   Synthesizer
	usage    *logging.Statistics
	logger   *zap.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithUsage counts scored and briefed keywords in the API statistics.
func WithUsage(u *logging.Statistics) Option {
	return func(p *Planner) { p.usage = u }
}

// New creates a Planner.
func New(st *store.Store, enricher Enricher, scorer Scorer, runner *scoring.Runner, briefs Synthesizer, logger *zap.Logger, opts ...Option) *Planner {
	p := &Planner{
		store:    st,
		enricher: enricher,
		scorer:   scorer,
		runner:   runner,
		briefs:   briefs,
		logger:   logger.Named("planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report summarises one scoring batch.
type Report struct {
	ListID  uint             `json:"list_id"`
	Total   int              `json:"total"`
	Scored  int              `json:"scored"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Results []scoring.Result `json:"results"`
}

// ScoreList scores every keyword of a list.
func (p *Planner) ScoreList(ctx context.Context, listID uint, force bool) (*Report, error) {
	l, err := p.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if len(l.Keywords) == 0 {
		return nil, fmt.Errorf("list %d: %w", listID, ErrNoKeywords)
	}
	return p.score(ctx, l, l.Keywords, force), nil
}

// ScoreSelected scores the given keywords of a list. Ids that do not
// belong to the list are ignored.
func (p *Planner) ScoreSelected(ctx context.Context, listID uint, ids []uint, force bool) (*Report, error) {
	l, err := p.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	keywords, err := p.store.KeywordsByID(ctx, listID, ids)
	if err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("list %d: %w", listID, ErrNoKeywords)
	}
	return p.score(ctx, l, keywords, force), nil
}

func (p *Planner) score(ctx context.Context, l *store.KeywordList, keywords []store.Keyword, force bool) *Report {
	report := &Report{ListID: l.ID, Total: len(keywords)}
	profile := l.Profile()

	var jobs []scoring.Job
	for i := range keywords {
		k := &keywords[i]
		if !force && k.State() == scoring.StateScored {
			report.Results = append(report.Results, scoring.Result{
				KeywordID: k.ID,
				Keyword:   k.Keyword,
				State:     scoring.StateScored,
				Score:     k.StoredScore(),
				Skipped:   true,
			})
			report.Skipped++
			continue
		}
		jobs = append(jobs, scoring.Job{KeywordID: k.ID, Keyword: k.Keyword})
	}

	scoreOne := func(ctx context.Context, job scoring.Job) (*scoring.KeywordScore, error) {
		sp, err := p.enricher.Enrich(ctx, job.Keyword, l.TargetDomain, force)
		if err != nil {
			return nil, err
		}
		return p.scorer.Score(ctx, job.Keyword, sp, profile)
	}

	for _, res := range p.runner.Run(ctx, jobs, scoreOne) {
		if res.Succeeded() {
			// persisted only once the score is final
			if err := p.store.SaveScore(ctx, res.KeywordID, res.Score); err != nil {
				p.logger.Error("failed to save score", zap.Uint("keyword_id", res.KeywordID), zap.Error(err))
				res = scoring.Result{
					KeywordID: res.KeywordID,
					Keyword:   res.Keyword,
					State:     scoring.StateUnscored,
					Error:     err.Error(),
					Err:       err,
				}
			} else {
				p.usage.TrackKeyword(res.Keyword)
			}
		}
		if res.Succeeded() {
			report.Scored++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}

	p.logger.Info("batch scored",
		zap.Uint("list_id", l.ID),
		zap.Int("total", report.Total),
		zap.Int("scored", report.Scored),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report
}

// Content types accepted by GenerateBrief.
const (
	ContentNew      = "new"
	ContentExisting = "existing"
)

// BriefRequest asks for a brief for a stored keyword.
type BriefRequest struct {
	KeywordID    uint   `json:"keyword_id" binding:"required"`
	ContentType  string `json:"content_type"`
	ExistingURL  string `json:"existing_url"`
	TargetIntent string `json:"target_intent"`
	ForceRefresh bool   `json:"force_refresh"`
}

// GenerateBrief synthesizes and stores a brief. For existing content the
// keyword's target URL is used when the request names none.
func (p *Planner) GenerateBrief(ctx context.Context, req BriefRequest) (*brief.ContentBrief, error) {
	k, l, err := p.keywordWithList(ctx, req.KeywordID)
	if err != nil {
		return nil, err
	}

	var target brief.Target
	switch strings.ToLower(strings.TrimSpace(req.ContentType)) {
	case "", ContentNew:
		target = brief.NewPage{}
	case ContentExisting:
		url := strings.TrimSpace(req.ExistingURL)
		if url == "" {
			url = k.TargetURL
		}
		target = brief.ExistingPage{URL: url}
	default:
		return nil, fmt.Errorf("%w: unknown content_type %q", brief.ErrInvalidInput, req.ContentType)
	}

	sp, err := p.enricher.Enrich(ctx, k.Keyword, l.TargetDomain, req.ForceRefresh)
	if err != nil {
		return nil, err
	}
	b, err := p.briefs.Synthesize(ctx, brief.Request{
		KeywordID:    k.ID,
		Keyword:      k.Keyword,
		Serp:         sp,
		Target:       target,
		TargetIntent: req.TargetIntent,
	})
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveBrief(ctx, b); err != nil {
		return nil, fmt.Errorf("save brief: %w", err)
	}
	p.usage.TrackKeyword(k.Keyword)
	return b, nil
}

// ImprovementPlan diffs an existing page for a stored keyword against its
// SERP. url defaults to the keyword's target URL.
func (p *Planner) ImprovementPlan(ctx context.Context, keywordID uint, url string) (*brief.ExistingContent, error) {
	k, l, err := p.keywordWithList(ctx, keywordID)
	if err != nil {
		return nil, err
	}
	if url = strings.TrimSpace(url); url == "" {
		url = k.TargetURL
	}
	if url == "" {
		return nil, fmt.Errorf("%w: keyword %d has no existing url", brief.ErrInvalidInput, keywordID)
	}
	sp, err := p.enricher.Enrich(ctx, k.Keyword, l.TargetDomain, false)
	if err != nil {
		return nil, err
	}
	return p.briefs.ImprovementPlan(ctx, k.Keyword, sp, url)
}

// Enrich exposes enrichment for ad-hoc keyword lookups.
func (p *Planner) Enrich(ctx context.Context, keyword, domain string, force bool) (*serp.EnrichedSerp, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty keyword", brief.ErrInvalidInput)
	}
	return p.enricher.Enrich(ctx, keyword, strings.TrimSpace(domain), force)
}

func (p *Planner) keywordWithList(ctx context.Context, keywordID uint) (*store.Keyword, *store.KeywordList, error) {
	k, err := p.store.GetKeyword(ctx, keywordID)
	if err != nil {
		return nil, nil, err
	}
	l, err := p.store.GetList(ctx, k.ListID)
	if err != nil {
		return nil, nil, err
	}
	return k, l, nil
}
