package rankmodel

import "fmt"

// Signals are the per-page metrics compared between the user profile and
// the SERP medians.
type Signals struct {
	DT                  float64
	RefDomains          float64
	WordCount           float64
	SentenceCount       float64
	AvgWordsPerSentence float64
	Flesch              float64
	Semantic            float64
	InternalLinks       float64
	SchemaTotal         float64
	SchemaUnique        float64
	RichFeatures        float64
}

// FeatureNames is the canonical feature set in training order.
var FeatureNames = []string{
	"dt_gap", "dt_ratio",
	"refdoms_gap", "refdoms_ratio",
	"wc_gap", "wc_ratio",
	"sent_count_gap", "awps_gap", "flesch_gap",
	"semantic_gap", "semantic_ratio",
	"internal_links_gap", "schema_total_gap", "schema_unique_gap", "rich_features_gap",
}

type featureFunc func(user, median Signals) float64

var featureFuncs = map[string]featureFunc{
	"dt_gap":             func(u, m Signals) float64 { return gap(u.DT, m.DT) },
	"dt_ratio":           func(u, m Signals) float64 { return ratio(u.DT, m.DT) },
	"refdoms_gap":        func(u, m Signals) float64 { return gap(u.RefDomains, m.RefDomains) },
	"refdoms_ratio":      func(u, m Signals) float64 { return ratio(u.RefDomains, m.RefDomains) },
	"wc_gap":             func(u, m Signals) float64 { return gap(u.WordCount, m.WordCount) },
	"wc_ratio":           func(u, m Signals) float64 { return ratio(u.WordCount, m.WordCount) },
	"sent_count_gap":     func(u, m Signals) float64 { return gap(u.SentenceCount, m.SentenceCount) },
	"awps_gap":           func(u, m Signals) float64 { return gap(u.AvgWordsPerSentence, m.AvgWordsPerSentence) },
	"flesch_gap":         func(u, m Signals) float64 { return gap(u.Flesch, m.Flesch) },
	"semantic_gap":       func(u, m Signals) float64 { return gap(u.Semantic, m.Semantic) },
	"semantic_ratio":     func(u, m Signals) float64 { return ratio(u.Semantic, m.Semantic) },
	"internal_links_gap": func(u, m Signals) float64 { return gap(u.InternalLinks, m.InternalLinks) },
	"schema_total_gap":   func(u, m Signals) float64 { return gap(u.SchemaTotal, m.SchemaTotal) },
	"schema_unique_gap":  func(u, m Signals) float64 { return gap(u.SchemaUnique, m.SchemaUnique) },
	"rich_features_gap":  func(u, m Signals) float64 { return gap(u.RichFeatures, m.RichFeatures) },
}

func gap(user, median float64) float64 {
	if median <= 0 {
		return 0
	}
	return (user - median) / median
}

func ratio(user, median float64) float64 {
	if median <= 0 {
		return 1
	}
	return user / median
}

// BuildVector computes the named features in order.
func BuildVector(names []string, user, median Signals) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		f, ok := featureFuncs[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		out[i] = f(user, median)
	}
	return out, nil
}
