// Package semantic scores topical similarity with text embeddings.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/textfeatures"
)

// MaxInputChars bounds each text sent for embedding.
const MaxInputChars = 4000

// Embedder turns texts into vectors; result i belongs to texts[i].
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIEmbedder creates an embedder. baseURL may be empty for the public API.
func NewOpenAIEmbedder(apiKey, baseURL, model string, logger *zap.Logger) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.Named("embeddings"),
	}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = textfeatures.Truncate(t, MaxInputChars)
		if inputs[i] == "" {
			inputs[i] = " "
		}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errors.New("create embeddings: index out of range")
		}
		out[d.Index] = d.Embedding
	}
	e.logger.Debug("embedded texts", zap.Int("count", len(texts)), zap.Int("tokens", resp.Usage.TotalTokens))
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is
// empty, zero, or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Similarities embeds query together with docs and returns each doc's
// similarity to the query, clamped to [0,1].
func Similarities(ctx context.Context, e Embedder, query string, docs []string) ([]float64, error) {
	vecs, err := e.Embed(ctx, append([]string{query}, docs...))
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(docs)+1 {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vecs), len(docs)+1)
	}
	out := make([]float64, len(docs))
	for i := range docs {
		out[i] = math.Max(0, math.Min(1, Cosine(vecs[0], vecs[i+1])))
	}
	return out, nil
}
