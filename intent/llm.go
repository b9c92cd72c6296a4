package intent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/llm"
	"github.com/seo-forecaster/backend/textfeatures"
)

const systemPrompt = "You are an SEO expert analyzing search intent. Always return valid JSON."

// promptContextBytes bounds the SERP titles and snippets sent to the model.
const promptContextBytes = 2000

// LLMClassifier asks a language model for the intent.
type LLMClassifier struct {
	client llm.Client
	logger *zap.Logger
}

// NewLLMClassifier creates an LLMClassifier.
func NewLLMClassifier(client llm.Client, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{client: client, logger: logger.Named("intent")}
}

type llmReply struct {
	IntentType    string   `json:"intent_type"`
	Confidence    *float64 `json:"confidence"`
	ContentFormat string   `json:"content_format"`
	QueryVariants []string `json:"query_variants"`
	Reasoning     string   `json:"reasoning"`
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, keyword string, summary SerpSummary) (Result, error) {
	reply, err := llm.CompleteJSON[llmReply](ctx, c.client, systemPrompt, buildPrompt(keyword, summary))
	if err != nil {
		return Result{}, fmt.Errorf("classify %q: %w", keyword, err)
	}

	i, ok := Parse(reply.IntentType)
	if !ok {
		return Result{}, fmt.Errorf("classify %q: unknown intent %q", keyword, reply.IntentType)
	}
	confidence := 0.8
	if reply.Confidence != nil && *reply.Confidence >= 0 && *reply.Confidence <= 1 {
		confidence = *reply.Confidence
	}
	return Result{
		Intent:        i,
		Confidence:    confidence,
		ContentFormat: normalizeFormat(reply.ContentFormat),
		QueryVariants: reply.QueryVariants,
		Reasoning:     reply.Reasoning,
	}, nil
}

func buildPrompt(keyword string, summary SerpSummary) string {
	var serpContext strings.Builder
	for i, title := range summary.Titles {
		snippet := ""
		if i < len(summary.Snippets) {
			snippet = summary.Snippets[i]
		}
		fmt.Fprintf(&serpContext, "Title: %s\nSnippet: %s\n", title, snippet)
	}
	ctxText := textfeatures.Truncate(serpContext.String(), promptContextBytes)

	return fmt.Sprintf(`Analyze the search intent for this keyword and provide recommendations.

Keyword: %q

SERP Context (what's currently ranking):
%s
SERP features present: %s

Determine:
1. Intent type, one of: informational, commercial, transactional, navigational.
2. Content format, one of: article, how-to, product, FAQ, list, comparison, definition, news.
3. Two or three alternative phrasings of the keyword with the same intent.
4. Your confidence between 0 and 1.

Return JSON only:
{"intent_type": "...", "confidence": 0.0, "content_format": "...", "query_variants": ["..."], "reasoning": "..."}`,
		keyword, ctxText, strings.Join(summary.Features, ", "))
}

type fallback struct {
	chain  []Classifier
	logger *zap.Logger
}

// WithFallback wraps primary so a failure degrades to the keyword rules,
// and past those to informational with zero confidence. It never returns
// an error.
func WithFallback(primary Classifier, logger *zap.Logger) Classifier {
	chain := []Classifier{primary}
	if _, ok := primary.(RuleClassifier); !ok {
		chain = append(chain, RuleClassifier{})
	}
	return &fallback{chain: chain, logger: logger.Named("intent")}
}

func (f *fallback) Classify(ctx context.Context, keyword string, summary SerpSummary) (Result, error) {
	for _, c := range f.chain {
		if c == nil {
			continue
		}
		res, err := c.Classify(ctx, keyword, summary)
		if err == nil {
			return res, nil
		}
		f.logger.Warn("intent classification failed, trying next classifier",
			zap.String("keyword", keyword), zap.Error(err))
	}
	return Result{Intent: Informational, Confidence: 0, ContentFormat: FormatArticle, Reasoning: "fallback"}, nil
}

// FromClient picks the LLM classifier when a client is configured and the
// rule classifier otherwise, wrapped with the fallback chain.
func FromClient(client llm.Client, logger *zap.Logger) Classifier {
	if client == nil {
		return WithFallback(RuleClassifier{}, logger)
	}
	return WithFallback(NewLLMClassifier(client, logger), logger)
}
