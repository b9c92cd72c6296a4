package store

import (
	"time"

	"github.com/seo-forecaster/backend/scoring"
)

// KeywordList groups keywords for one target domain. ClientVertical being
// empty means the list has no client profile.
type KeywordList struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"not null" json:"name"`
	TargetDomain     string    `gorm:"not null" json:"target_domain"`
	ClientVertical   string    `json:"client_vertical,omitempty"`
	VerticalKeywords []string  `gorm:"serializer:json" json:"vertical_keywords,omitempty"`
	Keywords         []Keyword `gorm:"foreignKey:ListID;constraint:OnDelete:CASCADE" json:"keywords,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Profile returns the list's client profile, or nil when none is set.
func (l *KeywordList) Profile() *scoring.ClientProfile {
	if l.ClientVertical == "" {
		return nil
	}
	return &scoring.ClientProfile{
		Vertical:         scoring.Vertical(l.ClientVertical),
		VerticalKeywords: l.VerticalKeywords,
	}
}

// Keyword is one tracked keyword and its latest score. A nil ScoredAt
// means the keyword is unscored.
type Keyword struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	ListID  uint   `gorm:"not null;index" json:"list_id"`
	Keyword string `gorm:"not null" json:"keyword"`

	RankabilityScore *float64 `json:"rankability_score"`
	OpportunityTier  string   `json:"opportunity_tier,omitempty"`
	TierExplanation  string   `json:"tier_explanation,omitempty"`
	ForecastWeaker   *float64 `json:"forecast_weaker,omitempty"`
	ForecastBaseline *float64 `json:"forecast_baseline,omitempty"`
	ForecastStronger *float64 `json:"forecast_stronger,omitempty"`
	AssumedParity    bool     `json:"assumed_parity,omitempty"`

	DomainFitScore       *float64 `json:"domain_fit_score,omitempty"`
	DomainFitExplanation string   `json:"domain_fit_explanation,omitempty"`
	IntentFitScore       *float64 `json:"intent_fit_score,omitempty"`
	IntentFitExplanation string   `json:"intent_fit_explanation,omitempty"`
	ClientForecastScore  *float64 `json:"client_forecast_score,omitempty"`
	ClientForecastTier   string   `json:"client_forecast_tier,omitempty"`
	ClientRecommendation string   `json:"client_recommendation,omitempty"`

	IsSelected  bool   `gorm:"not null;default:false" json:"is_selected"`
	ContentType string `json:"content_type,omitempty"`
	TargetURL   string `json:"target_url,omitempty"`

	ScoredAt  *time.Time `json:"scored_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// State reports the persisted scoring state. SCORING is never stored.
func (k *Keyword) State() scoring.State {
	if k.ScoredAt == nil {
		return scoring.StateUnscored
	}
	return scoring.StateScored
}

// Brief is a stored content brief. Body holds the brief JSON.
type Brief struct {
	ID           string    `gorm:"primaryKey;size:36"`
	KeywordID    uint      `gorm:"not null;index"`
	Mode         string    `gorm:"not null"`
	TargetIntent string    `gorm:"size:32"`
	Body         []byte    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"index"`
}

// TableName keeps the table name stable.
func (Brief) TableName() string { return "content_briefs" }

// StoredScore rebuilds the persisted part of the keyword's score, or nil
// when the keyword is unscored.
func (k *Keyword) StoredScore() *scoring.KeywordScore {
	if k.ScoredAt == nil || k.RankabilityScore == nil {
		return nil
	}
	sc := &scoring.KeywordScore{
		Keyword:         k.Keyword,
		WinScore:        *k.RankabilityScore,
		Tier:            scoring.OpportunityTier(k.OpportunityTier),
		TierExplanation: k.TierExplanation,
		AssumedParity:   k.AssumedParity,
		ScoredAt:        *k.ScoredAt,
	}
	sc.Forecast.Weaker = storedBand(k.ForecastWeaker)
	sc.Forecast.Baseline = storedBand(k.ForecastBaseline)
	sc.Forecast.Stronger = storedBand(k.ForecastStronger)
	if k.DomainFitScore != nil {
		sc.DomainFit = &scoring.Fit{Score: *k.DomainFitScore, Explanation: k.DomainFitExplanation}
	}
	if k.IntentFitScore != nil {
		sc.IntentFit = &scoring.Fit{Score: *k.IntentFitScore, Explanation: k.IntentFitExplanation}
	}
	if k.ClientForecastScore != nil {
		sc.ClientForecast = &scoring.ClientForecast{
			Score:          *k.ClientForecastScore,
			Tier:           scoring.ForecastTier(k.ClientForecastTier),
			Recommendation: k.ClientRecommendation,
		}
	}
	return sc
}

func storedBand(p *float64) scoring.Band {
	if p == nil {
		return scoring.Band{}
	}
	return scoring.Band{Probability: *p, Tier: scoring.TierFor(*p)}
}
