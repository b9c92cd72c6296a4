// Package intent classifies the search intent behind a keyword.
package intent

import (
	"context"
	"strings"

	"github.com/seo-forecaster/backend/serp"
)

// Intent is one of the four search intents.
type Intent string

const (
	Informational Intent = "informational"
	Commercial    Intent = "commercial"
	Transactional Intent = "transactional"
	Navigational  Intent = "navigational"
)

// Parse normalises s into an Intent.
func Parse(s string) (Intent, bool) {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case Informational, Commercial, Transactional, Navigational:
		return i, true
	default:
		return "", false
	}
}

// Content formats a classifier may recommend.
const (
	FormatArticle    = "article"
	FormatHowTo      = "how-to"
	FormatProduct    = "product"
	FormatFAQ        = "FAQ"
	FormatList       = "list"
	FormatComparison = "comparison"
	FormatDefinition = "definition"
	FormatNews       = "news"
)

var formats = []string{FormatArticle, FormatHowTo, FormatProduct, FormatFAQ, FormatList, FormatComparison, FormatDefinition, FormatNews}

func normalizeFormat(f string) string {
	for _, known := range formats {
		if strings.EqualFold(f, known) {
			return known
		}
	}
	return FormatArticle
}

// Result is a classification.
type Result struct {
	Intent        Intent   `json:"intent"`
	Confidence    float64  `json:"confidence"`
	ContentFormat string   `json:"content_format"`
	QueryVariants []string `json:"query_variants,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
	Override      bool     `json:"override"`
}

// Override is the Result for an intent supplied by the user.
func Override(i Intent, format string) Result {
	if format == "" {
		format = defaultFormat(i)
	}
	return Result{Intent: i, Confidence: 1, ContentFormat: normalizeFormat(format), Reasoning: "user override", Override: true}
}

func defaultFormat(i Intent) string {
	switch i {
	case Commercial:
		return FormatComparison
	case Transactional:
		return FormatProduct
	default:
		return FormatArticle
	}
}

// SerpSummary is the SERP context a classifier sees.
type SerpSummary struct {
	Titles   []string
	Snippets []string
	Features []string
}

// Summarize extracts the top-10 titles and snippets from s.
func Summarize(s *serp.EnrichedSerp) SerpSummary {
	var out SerpSummary
	if s == nil {
		return out
	}
	for i, c := range s.Competitors {
		if i == 10 {
			break
		}
		out.Titles = append(out.Titles, c.Title)
		out.Snippets = append(out.Snippets, c.Snippet)
	}
	out.Features = s.Features.Present
	return out
}

// Classifier derives intent from a keyword and its SERP.
type Classifier interface {
	Classify(ctx context.Context, keyword string, summary SerpSummary) (Result, error)
}
