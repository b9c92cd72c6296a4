package intent

import (
	"context"
	"strings"
)

type cue struct {
	intent Intent
	terms  []string
}

// Checked in order; the first intent with a matching term wins.
var cues = []cue{
	{Informational, []string{"how", "what", "why", "when", "where", "guide", "tutorial"}},
	{Commercial, []string{"buy", "price", "cost", "cheap", "best", "top", "review"}},
	{Transactional, []string{"order", "hire", "book", "near me", "quote", "coupon"}},
	{Navigational, []string{"login", "sign in", "official", "website"}},
}

// RuleClassifier classifies from keyword cues alone. It never fails.
type RuleClassifier struct{}

// Classify implements Classifier.
func (RuleClassifier) Classify(_ context.Context, keyword string, _ SerpSummary) (Result, error) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	tokens := strings.Fields(kw)

	res := Result{Intent: Informational, Confidence: 0.4, ContentFormat: FormatArticle, Reasoning: "no intent cues, defaulting to informational"}
	for _, c := range cues {
		if term, ok := matchTerm(kw, tokens, c.terms); ok {
			res = Result{Intent: c.intent, Confidence: 0.7, Reasoning: "keyword contains \"" + term + "\""}
			break
		}
	}

	switch {
	case hasToken(tokens, "how"):
		res.ContentFormat = FormatHowTo
	case strings.HasPrefix(kw, "what is") || strings.HasPrefix(kw, "what are"):
		res.ContentFormat = FormatDefinition
	case hasToken(tokens, "vs") || hasToken(tokens, "versus"):
		res.ContentFormat = FormatComparison
	case hasToken(tokens, "best") || hasToken(tokens, "review"):
		res.ContentFormat = FormatProduct
	case hasToken(tokens, "top"):
		res.ContentFormat = FormatList
	case strings.HasSuffix(kw, "?"):
		res.ContentFormat = FormatFAQ
	case res.ContentFormat == "":
		res.ContentFormat = defaultFormat(res.Intent)
	}

	res.QueryVariants = variants(keyword, tokens)
	return res, nil
}

// matchTerm matches single words as whole tokens and phrases as substrings.
func matchTerm(kw string, tokens, terms []string) (string, bool) {
	for _, t := range terms {
		if strings.Contains(t, " ") {
			if strings.Contains(kw, t) {
				return t, true
			}
		} else if hasToken(tokens, t) {
			return t, true
		}
	}
	return "", false
}

func hasToken(tokens []string, t string) bool {
	for _, tok := range tokens {
		if strings.Trim(tok, "?!.,") == t {
			return true
		}
	}
	return false
}

func variants(keyword string, tokens []string) []string {
	var out []string
	if hasToken(tokens, "how") {
		out = append(out, strings.Replace(strings.ToLower(keyword), "how", "way", 1))
	}
	if hasToken(tokens, "best") {
		out = append(out, strings.Replace(strings.ToLower(keyword), "best", "top", 1))
	}
	if len(out) == 0 {
		out = []string{keyword}
	}
	return out
}
