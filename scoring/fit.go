package scoring

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/semantic"
)

// ClientProfile describes the client a keyword list is planned for.
type ClientProfile struct {
	Vertical         Vertical `json:"vertical"`
	VerticalKeywords []string `json:"vertical_keywords,omitempty"`
}

// Fit is a 0-100 score with its explanation.
type Fit struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// DomainFit compares target authority with the SERP median authority.
func DomainFit(targetDT, targetRefs, medianDT, medianRefs float64) Fit {
	dtRatio, rdRatio := 1.0, 1.0
	if medianDT > 0 {
		dtRatio = targetDT / medianDT
	}
	if medianRefs > 0 {
		rdRatio = targetRefs / medianRefs
	}
	combined := 0.55*dtRatio + 0.45*rdRatio

	var score float64
	if combined >= 1 {
		score = min(100, 50+(combined-1)*50)
	} else {
		score = max(0, combined*50)
	}
	score = round1(score)

	var band string
	switch {
	case score >= 80:
		band = "Strong authority match - your domain can compete with current Top 10"
	case score >= 60:
		band = "Good authority match - competitive but may need content edge"
	case score >= 40:
		band = "Moderate authority gap - focus on content quality and relevance"
	case score >= 20:
		band = "Significant authority gap - target long-tail or build authority first"
	default:
		band = "Large authority gap - this SERP may be out of reach currently"
	}

	// Below parity the weaker metric explains the score, above it the stronger one.
	name, ratio := "domain trust", dtRatio
	if (combined < 1) == (rdRatio < dtRatio) {
		name, ratio = "referring domains", rdRatio
	}
	return Fit{
		Score:       score,
		Explanation: fmt.Sprintf("%s (driven by %s at %.2fx the SERP median)", band, name, ratio),
	}
}

// IntentScorer computes Intent Fit. With an embedder it scores semantic
// similarity to the profile's vertical keywords; without one it falls back
// to substring matching.
type IntentScorer struct {
	embedder semantic.Embedder
	logger   *zap.Logger
}

// NewIntentScorer creates an IntentScorer. embedder may be nil.
func NewIntentScorer(embedder semantic.Embedder, logger *zap.Logger) *IntentScorer {
	return &IntentScorer{embedder: embedder, logger: logger.Named("intent_fit")}
}

// Score rates how well keyword matches profile.
func (s *IntentScorer) Score(ctx context.Context, keyword string, profile ClientProfile) Fit {
	kw := strings.ToLower(keyword)
	var score float64
	var matches []string

	if p, ok := verticalPatterns[profile.Vertical]; ok {
		if m, ok := firstContained(kw, p.keywords); ok {
			score += 25
			matches = append(matches, m)
		}
		if m, ok := firstContained(kw, p.modifiers); ok {
			score += 10
			matches = append(matches, m)
		}
	}

	if len(profile.VerticalKeywords) > 0 {
		score += s.topicScore(ctx, kw, profile.VerticalKeywords)
	}
	score = round1(min(100, score))

	vertical := string(profile.Vertical)
	var explanation string
	switch {
	case score >= 75:
		explanation = fmt.Sprintf("Excellent vertical match - keyword directly relates to your %s focus", vertical)
	case score >= 50:
		explanation = fmt.Sprintf("Good vertical match - keyword is relevant to %s", vertical)
	case score >= 25:
		explanation = fmt.Sprintf("Partial vertical match - some relevance to %s", vertical)
	default:
		explanation = fmt.Sprintf("Low vertical match - keyword may be outside your core %s focus", vertical)
	}
	if len(matches) > 0 {
		explanation += fmt.Sprintf(" (matched: %s)", strings.Join(matches[:min(3, len(matches))], ", "))
	}
	return Fit{Score: score, Explanation: explanation}
}

func (s *IntentScorer) topicScore(ctx context.Context, kw string, topics []string) float64 {
	if s.embedder != nil {
		sims, err := semantic.Similarities(ctx, s.embedder, kw, topics)
		if err == nil && len(sims) > 0 {
			return slices.Max(sims) * 50
		}
		s.logger.Warn("semantic intent fit failed, using substring match", zap.String("keyword", kw), zap.Error(err))
	}
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.Contains(kw, t) || strings.Contains(t, kw) {
			return 15
		}
	}
	return 0
}

func firstContained(s string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(s, c) {
			return c, true
		}
	}
	return "", false
}

// ClientForecast is the blended client-specific opportunity.
type ClientForecast struct {
	Score          float64      `json:"score"`
	Tier           ForecastTier `json:"tier"`
	Recommendation string       `json:"recommendation"`
}

// Forecast weights; they sum to 1.
const (
	winWeight    = 0.40
	domainWeight = 0.35
	intentWeight = 0.25
)

// BlendForecast combines a Win Score in [0,1] with Domain and Intent Fit in [0,100].
func BlendForecast(winScore, domainFit, intentFit float64) ClientForecast {
	score := clamp(winWeight*winScore*100+domainWeight*domainFit+intentWeight*intentFit, 0, 100)
	tier, rec := ForecastTierFor(score)

	switch {
	case domainFit < 30 && intentFit >= 60:
		rec += ". Note: Good topical fit but authority gap - consider link building."
	case intentFit < 30 && domainFit >= 60:
		rec += ". Note: Strong authority but weak topical relevance - ensure content alignment."
	case winScore < 0.3 && domainFit >= 50 && intentFit >= 50:
		rec += ". Note: Competitive SERP - differentiate with unique content angle."
	}
	return ClientForecast{Score: round1(score), Tier: tier, Recommendation: rec}
}
