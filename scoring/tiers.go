package scoring

import "math"

// OpportunityTier buckets a Win Score.
type OpportunityTier string

const (
	TierGoNow      OpportunityTier = "T1_GO_NOW"
	TierStrategic  OpportunityTier = "T2_STRATEGIC"
	TierLongGame   OpportunityTier = "T3_LONG_GAME"
	TierNotWorthIt OpportunityTier = "T4_NOT_WORTH_IT"
)

// Lower bounds are inclusive.
const (
	goNowThreshold     = 0.20
	strategicThreshold = 0.10
	longGameThreshold  = 0.04
)

// TierFor maps a Win Score in [0,1] to its tier.
func TierFor(winScore float64) OpportunityTier {
	switch {
	case winScore >= goNowThreshold:
		return TierGoNow
	case winScore >= strategicThreshold:
		return TierStrategic
	case winScore >= longGameThreshold:
		return TierLongGame
	default:
		return TierNotWorthIt
	}
}

// Meaning is the human-readable description of the tier.
func (t OpportunityTier) Meaning() string {
	switch t {
	case TierGoNow:
		return "High-Probability Wins - Your site can credibly break into Top-10 if you build a strong page"
	case TierStrategic:
		return "Strategic Targets - Competitive, but achievable with great execution"
	case TierLongGame:
		return "Long-Game Plays - Very competitive, require long-term authority growth"
	case TierNotWorthIt:
		return "Not Worth It - Dominated by giant brands/head terms, unlikely to crack Top-10"
	default:
		return "Unknown tier"
	}
}

// ForecastTier buckets a Client Forecast score.
type ForecastTier string

const (
	ForecastHighPriority   ForecastTier = "HIGH_PRIORITY"
	ForecastGoodFit        ForecastTier = "GOOD_FIT"
	ForecastConsider       ForecastTier = "CONSIDER"
	ForecastLongTerm       ForecastTier = "LONG_TERM"
	ForecastNotRecommended ForecastTier = "NOT_RECOMMENDED"
)

// ForecastTierFor maps a 0-100 forecast to its tier and base recommendation.
func ForecastTierFor(score float64) (ForecastTier, string) {
	switch {
	case score >= 70:
		return ForecastHighPriority, "Strong opportunity - prioritize this keyword for content creation"
	case score >= 50:
		return ForecastGoodFit, "Good opportunity - include in content strategy with proper optimization"
	case score >= 35:
		return ForecastConsider, "Moderate opportunity - consider if strategically important or low competition"
	case score >= 20:
		return ForecastLongTerm, "Challenging opportunity - better suited for long-term authority building"
	default:
		return ForecastNotRecommended, "Poor fit - focus efforts elsewhere unless strategically critical"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
