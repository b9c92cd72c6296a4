package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStatistics(dir, true)
	require.NoError(t, err)

	s.TrackVisitor("10.0.0.1")
	s.TrackVisitor("10.0.0.2")
	s.TrackVisitor("10.0.0.1")
	s.TrackRequest(100, false)
	s.TrackRequest(300, true)
	s.TrackKeyword("best running shoes")
	s.TrackKeyword("best running shoes")
	s.TrackKeyword("trail shoes")

	t.Run("Snapshot", func(t *testing.T) {
		snap := s.Snapshot()
		assert.Equal(t, 2, snap["uniqueVisitors24h"])
		assert.Equal(t, 2, snap["totalRequests"])
		assert.Equal(t, 50.0, snap["errorRate"])
		assert.Equal(t, 200.0, snap["averageLatencyMs"])

		top := snap["popularKeywords"].([]KeywordCount)
		require.Len(t, top, 2)
		assert.Equal(t, KeywordCount{Keyword: "best running shoes", Count: 2}, top[0])
	})

	t.Run("ProductionHidesKeywords", func(t *testing.T) {
		prod, err := NewStatistics(t.TempDir(), false)
		require.NoError(t, err)
		prod.TrackKeyword("x")
		_, ok := prod.Snapshot()["popularKeywords"]
		assert.False(t, ok)
	})

	t.Run("Persistence", func(t *testing.T) {
		require.NoError(t, s.Save())

		reloaded, err := NewStatistics(dir, true)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.RequestCount())
		assert.Equal(t, 2, reloaded.PopularKeywords["best running shoes"])
	})
}

func TestSanitize(t *testing.T) {
	raw := "https://serpapi.com/search?q=shoes&api_key=abc123&num=10"
	assert.Equal(t, "https://serpapi.com/search?q=shoes&api_key=[REDACTED]&num=10", SanitizeURL(raw))
	assert.Equal(t, "", SanitizeError(nil))
	assert.NotContains(t, SanitizeError(errors.New("GET x?apikey=secret failed")), "secret")
}
