package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seo-forecaster/backend/brief"
	"github.com/seo-forecaster/backend/intent"
	"github.com/seo-forecaster/backend/scoring"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "records.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedList(t *testing.T, s *Store, keywords ...string) *KeywordList {
	t.Helper()
	ctx := context.Background()
	l := &KeywordList{Name: " Client A ", TargetDomain: "client.com"}
	require.NoError(t, s.CreateList(ctx, l))
	_, err := s.AddKeywords(ctx, l.ID, keywords)
	require.NoError(t, err)
	got, err := s.GetList(ctx, l.ID)
	require.NoError(t, err)
	return got
}

func TestLists(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	l := seedList(t, s, "crm software", "  CRM   software ", "", "best crm")
	assert.Equal(t, "Client A", l.Name)
	require.Len(t, l.Keywords, 2, "blank and duplicate keywords are skipped")
	assert.Equal(t, "crm software", l.Keywords[0].Keyword)
	assert.Nil(t, l.Profile())

	added, err := s.AddKeywords(ctx, l.ID, []string{"Best CRM", "crm pricing"})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.NotZero(t, added[0].ID)

	vertical := string(scoring.VerticalSaaS)
	kws := []string{"crm", "sales pipeline"}
	updated, err := s.UpdateList(ctx, l.ID, ListUpdate{ClientVertical: &vertical, VerticalKeywords: &kws})
	require.NoError(t, err)
	require.NotNil(t, updated.Profile())

	reloaded, err := s.GetList(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Client A", reloaded.Name)
	assert.Equal(t, kws, reloaded.VerticalKeywords)
	assert.Equal(t, scoring.VerticalSaaS, reloaded.Profile().Vertical)
	assert.Len(t, reloaded.Keywords, 3)

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	assert.Len(t, lists, 1)

	_, err = s.GetList(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddKeywords(ctx, 999, []string{"x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateList(t *testing.T) {
	ctx := context.Background()

	t.Run("with keywords", func(t *testing.T) {
		s := openStore(t)
		l := &KeywordList{Name: "client", TargetDomain: "client.com"}
		require.NoError(t, s.CreateList(ctx, l, "crm software", "CRM software", " "))
		require.Len(t, l.Keywords, 1)
		assert.Equal(t, l.ID, l.Keywords[0].ListID)

		got, err := s.GetList(ctx, l.ID)
		require.NoError(t, err)
		assert.Len(t, got.Keywords, 1)
	})

	t.Run("keyword failure rolls back the list", func(t *testing.T) {
		s := openStore(t)
		err := s.db.Callback().Create().Before("gorm:create").Register("fail_keywords", func(db *gorm.DB) {
			if db.Statement.Schema != nil && db.Statement.Schema.Table == "keywords" {
				db.AddError(errors.New("disk full"))
			}
		})
		require.NoError(t, err)

		l := &KeywordList{Name: "client", TargetDomain: "client.com"}
		err = s.CreateList(ctx, l, "crm software")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Zero(t, l.ID)

		lists, err := s.Lists(ctx)
		require.NoError(t, err)
		assert.Empty(t, lists)
	})
}

func TestSaveScore(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := seedList(t, s, "crm software")
	id := l.Keywords[0].ID
	assert.Equal(t, scoring.StateUnscored, l.Keywords[0].State())

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sc := &scoring.KeywordScore{
		WinScore:        0.23,
		Tier:            scoring.TierGoNow,
		TierExplanation: "go",
		Forecast: scoring.Forecast{
			Weaker:   scoring.Band{Probability: 0.1},
			Baseline: scoring.Band{Probability: 0.23},
			Stronger: scoring.Band{Probability: 0.3},
		},
		DomainFit:      &scoring.Fit{Score: 60, Explanation: "strong"},
		IntentFit:      &scoring.Fit{Score: 80, Explanation: "matches"},
		ClientForecast: &scoring.ClientForecast{Score: 55, Tier: scoring.ForecastGoodFit, Recommendation: "write it"},
		ScoredAt:       at,
	}
	require.NoError(t, s.SaveScore(ctx, id, sc))

	k, err := s.GetKeyword(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, scoring.StateScored, k.State())
	require.NotNil(t, k.RankabilityScore)
	assert.Equal(t, 0.23, *k.RankabilityScore)
	assert.Equal(t, string(scoring.TierGoNow), k.OpportunityTier)
	assert.Equal(t, 0.3, *k.ForecastStronger)
	assert.Equal(t, 60.0, *k.DomainFitScore)
	assert.Equal(t, "write it", k.ClientRecommendation)
	assert.True(t, at.Equal(*k.ScoredAt))

	stored := k.StoredScore()
	require.NotNil(t, stored)
	assert.Equal(t, scoring.TierGoNow, stored.Tier)
	assert.Equal(t, scoring.TierGoNow, stored.Forecast.Baseline.Tier)
	assert.Equal(t, scoring.ForecastGoodFit, stored.ClientForecast.Tier)

	t.Run("rescore without profile clears fits", func(t *testing.T) {
		sc.DomainFit, sc.IntentFit, sc.ClientForecast = nil, nil, nil
		require.NoError(t, s.SaveScore(ctx, id, sc))
		k, err := s.GetKeyword(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, k.DomainFitScore)
		assert.Nil(t, k.ClientForecastScore)
		assert.Empty(t, k.ClientForecastTier)
	})

	assert.ErrorIs(t, s.SaveScore(ctx, 999, sc), ErrNotFound)
}

func TestUpdateKeyword(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := seedList(t, s, "crm software", "best crm")

	yes := true
	url := " https://client.com/crm "
	k, err := s.UpdateKeyword(ctx, l.Keywords[1].ID, KeywordUpdate{IsSelected: &yes, TargetURL: &url})
	require.NoError(t, err)
	assert.True(t, k.IsSelected)
	assert.Equal(t, "https://client.com/crm", k.TargetURL)

	got, err := s.KeywordsByID(ctx, l.ID, []uint{l.Keywords[1].ID, 999})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsSelected)

	_, err = s.UpdateKeyword(ctx, 999, KeywordUpdate{IsSelected: &yes})
	assert.ErrorIs(t, err, ErrNotFound)
}

func newBrief(keywordID uint, id string, at time.Time, mode brief.Mode) *brief.ContentBrief {
	return &brief.ContentBrief{
		ID:        id,
		KeywordID: keywordID,
		Keyword:   "crm software",
		Intent:    intent.Override(intent.Commercial, ""),
		Title:     "CRM Software: Side-by-Side Comparison",
		Sections:  []brief.Section{{Heading: "Introduction", Kind: brief.KindIntro, TargetWords: 150}},
		CreatedAt: at,
		Mode:      mode,
	}
}

func TestBriefs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := seedList(t, s, "crm software")
	kid := l.Keywords[0].ID

	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveBrief(ctx, newBrief(kid, "b1", t0, brief.NewContent{})))
	existing := &brief.ExistingContent{URL: "https://client.com/crm", Gaps: brief.Gaps{WordCount: brief.Gap{Current: 800, Target: 1800, Delta: 1000, Action: brief.ActionIncrease}}}
	require.NoError(t, s.SaveBrief(ctx, newBrief(kid, "b2", t0.Add(time.Hour), existing)))

	got, err := s.GetBrief(ctx, "b2")
	require.NoError(t, err)
	ex, ok := got.Existing()
	require.True(t, ok)
	assert.Equal(t, 1000.0, ex.Gaps.WordCount.Delta)
	assert.Equal(t, 150, got.Sections[0].TargetWords)

	list, err := s.Briefs(ctx, kid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b2", list[0].ID, "newest first")
	assert.Equal(t, brief.ModeNew, list[1].ModeName())

	require.NoError(t, s.DeleteBrief(ctx, "b1"))
	assert.ErrorIs(t, s.DeleteBrief(ctx, "b1"), ErrNotFound)
	_, err = s.GetBrief(ctx, "b1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCascadingDeletes(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("keyword", func(t *testing.T) {
		l := seedList(t, s, "crm software", "best crm")
		kid := l.Keywords[0].ID
		require.NoError(t, s.SaveBrief(ctx, newBrief(kid, "k1", at, brief.NewContent{})))

		require.NoError(t, s.DeleteKeyword(ctx, kid))
		_, err := s.GetBrief(ctx, "k1")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetKeyword(ctx, l.Keywords[1].ID)
		assert.NoError(t, err, "siblings survive")
		assert.ErrorIs(t, s.DeleteKeyword(ctx, kid), ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		l := seedList(t, s, "crm software")
		kid := l.Keywords[0].ID
		require.NoError(t, s.SaveBrief(ctx, newBrief(kid, "l1", at, brief.NewContent{})))

		require.NoError(t, s.DeleteList(ctx, l.ID))
		_, err := s.GetKeyword(ctx, kid)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetBrief(ctx, "l1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteList(ctx, l.ID), ErrNotFound)
	})
}
