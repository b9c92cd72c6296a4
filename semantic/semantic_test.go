package semantic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

type fixedEmbedder map[string][]float32

func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f[t]
	}
	return out, nil
}

func TestSimilarities(t *testing.T) {
	e := fixedEmbedder{
		"shoes":    {1, 0},
		"running":  {1, 0},
		"opposite": {-1, 0},
	}
	got, err := Similarities(context.Background(), e, "shoes", []string{"running", "opposite"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, got, 1e-9)
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)

		// reply out of order to exercise index mapping
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}],
			"model":"test-embed","usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("key", srv.URL, "test-embed", zap.NewNop())
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}
