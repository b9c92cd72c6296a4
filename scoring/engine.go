package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/rankmodel"
	"github.com/seo-forecaster/backend/serp"
)

const profileSize = 10

// Band is the forecast for one content-strength scenario.
type Band struct {
	Probability float64         `json:"probability"`
	Raw         float64         `json:"raw_probability"`
	Tier        OpportunityTier `json:"tier"`
}

// Forecast holds the three scenarios: content like the 25th, 50th and
// 75th percentile of the current top results.
type Forecast struct {
	Weaker   Band `json:"weaker_25th"`
	Baseline Band `json:"baseline_median"`
	Stronger Band `json:"stronger_75th"`
}

// KeywordScore is everything computed for one keyword. The fit fields are
// nil when the list has no client profile.
type KeywordScore struct {
	Keyword          string          `json:"keyword"`
	WinScore         float64         `json:"rankability_score"`
	Tier             OpportunityTier `json:"opportunity_tier"`
	TierExplanation  string          `json:"tier_explanation"`
	Forecast         Forecast        `json:"forecast"`
	TargetDT         float64         `json:"target_dt"`
	TargetRefDomains float64         `json:"target_referring_domains"`
	MedianDT         float64         `json:"serp_median_dt"`
	MedianRefDomains float64         `json:"serp_median_referring_domains"`
	DTGap            float64         `json:"dt_gap"`
	GiantBrands      int             `json:"giant_brand_count"`
	AssumedParity    bool            `json:"assumed_parity,omitempty"`
	DomainFit        *Fit            `json:"domain_fit,omitempty"`
	IntentFit        *Fit            `json:"intent_fit,omitempty"`
	ClientForecast   *ClientForecast `json:"client_forecast,omitempty"`
	ScoredAt         time.Time       `json:"scored_at"`
}

// Engine scores keywords against enriched SERPs.
type Engine struct {
	model     *rankmodel.Model
	intent    *IntentScorer
	calibrate bool
	logger    *zap.Logger
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCalibration toggles competitive-gravity calibration. It is on by default.
func WithCalibration(on bool) EngineOption {
	return func(e *Engine) { e.calibrate = on }
}

// WithEngineClock overrides the scored_at source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. intent may be nil, in which case profiles
// get pattern-only Intent Fit.
func NewEngine(model *rankmodel.Model, intent *IntentScorer, logger *zap.Logger, opts ...EngineOption) *Engine {
	if intent == nil {
		intent = NewIntentScorer(nil, logger)
	}
	e := &Engine{
		model:     model,
		intent:    intent,
		calibrate: true,
		logger:    logger.Named("scoring"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the Win Score, tier and, when profile is set, the client
// fit scores for keyword.
func (e *Engine) Score(ctx context.Context, keyword string, s *serp.EnrichedSerp, profile *ClientProfile) (*KeywordScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Empty() {
		return nil, ErrNoSerpData
	}

	m := s.Medians
	median := rankmodel.Signals{
		DT:                  m.DT,
		RefDomains:          m.RefDomains,
		WordCount:           m.WordCount,
		SentenceCount:       m.SentenceCount,
		AvgWordsPerSentence: m.AvgWordsPerSentence,
		Flesch:              m.Flesch,
		Semantic:            m.Semantic,
		InternalLinks:       m.InternalLinks,
		SchemaTotal:         m.SchemaTotal,
		SchemaUnique:        m.SchemaUnique,
		RichFeatures:        m.RichFeatures,
	}

	out := &KeywordScore{
		Keyword:          keyword,
		MedianDT:         m.DT,
		MedianRefDomains: m.RefDomains,
		GiantBrands:      s.GiantBrands,
	}
	if s.Target.Known {
		out.TargetDT, out.TargetRefDomains = s.Target.DT, s.Target.RefDomains
	} else {
		out.TargetDT, out.TargetRefDomains = m.DT, m.RefDomains
		out.AssumedParity = true
		e.logger.Warn("target authority unavailable, assuming parity with SERP median",
			zap.String("keyword", keyword), zap.String("domain", s.Domain))
	}
	out.DTGap = out.TargetDT - m.DT

	gravity := NewGravity(keyword, out.TargetDT, m.DT, out.TargetRefDomains, m.RefDomains, s.GiantBrands)
	profiles := contentProfiles(s.ValidCompetitors(), median)

	bands := make([]Band, len(profiles))
	for i, content := range profiles {
		user := content
		user.DT, user.RefDomains = out.TargetDT, out.TargetRefDomains

		raw, err := e.model.Predict(user, median)
		if err != nil {
			return nil, fmt.Errorf("score %q: %w", keyword, err)
		}
		p := raw
		if e.calibrate {
			p = gravity.Calibrate(raw)
		}
		bands[i] = Band{Probability: p, Raw: raw, Tier: TierFor(p)}
	}
	out.Forecast = Forecast{Weaker: bands[0], Baseline: bands[1], Stronger: bands[2]}

	out.WinScore = out.Forecast.Baseline.Probability
	out.Tier = out.Forecast.Baseline.Tier
	out.TierExplanation = gravity.Explain(out.Tier)
	if out.AssumedParity {
		out.TierExplanation += " Target authority unavailable; assumed parity with the SERP median."
	}

	if profile != nil {
		df := DomainFit(out.TargetDT, out.TargetRefDomains, m.DT, m.RefDomains)
		fit := e.intent.Score(ctx, keyword, *profile)
		cf := BlendForecast(out.WinScore, df.Score, fit.Score)
		out.DomainFit, out.IntentFit, out.ClientForecast = &df, &fit, &cf
	}

	out.ScoredAt = e.now().UTC()
	return out, nil
}

// contentProfiles returns 25th, 50th and 75th percentile content signals
// over the top valid competitors. Without any valid page every profile is
// the median.
func contentProfiles(valid []serp.Competitor, median rankmodel.Signals) [3]rankmodel.Signals {
	if len(valid) > profileSize {
		valid = valid[:profileSize]
	}
	if len(valid) == 0 {
		return [3]rankmodel.Signals{median, median, median}
	}

	n := len(valid)
	wc, sc, awps := make([]float64, n), make([]float64, n), make([]float64, n)
	flesch, sem, links := make([]float64, n), make([]float64, n), make([]float64, n)
	st, su, rich := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range valid {
		f := c.Page.Features
		wc[i] = float64(f.WordCount)
		sc[i] = float64(f.SentenceCount)
		awps[i] = f.AvgWordsPerSentence
		flesch[i] = f.Flesch
		sem[i] = c.SemanticScore
		links[i] = float64(c.Page.InternalLinks)
		st[i] = float64(c.Page.SchemaTotal)
		su[i] = float64(c.Page.SchemaUnique)
		rich[i] = float64(c.RichFeatures)
	}

	var out [3]rankmodel.Signals
	for i, p := range []float64{25, 50, 75} {
		out[i] = rankmodel.Signals{
			WordCount:           serp.Percentile(wc, p),
			SentenceCount:       serp.Percentile(sc, p),
			AvgWordsPerSentence: serp.Percentile(awps, p),
			Flesch:              serp.Percentile(flesch, p),
			Semantic:            serp.Percentile(sem, p),
			InternalLinks:       serp.Percentile(links, p),
			SchemaTotal:         serp.Percentile(st, p),
			SchemaUnique:        serp.Percentile(su, p),
			RichFeatures:        serp.Percentile(rich, p),
		}
	}
	return out
}
