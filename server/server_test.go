package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/brief"
	"github.com/seo-forecaster/backend/config"
	"github.com/seo-forecaster/backend/intent"
	"github.com/seo-forecaster/backend/logging"
	"github.com/seo-forecaster/backend/planner"
	"github.com/seo-forecaster/backend/scoring"
	"github.com/seo-forecaster/backend/serp"
	"github.com/seo-forecaster/backend/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubWorkflows struct {
	st       *store.Store
	err      error
	force    bool
	ids      []uint
	briefReq planner.BriefRequest
	planURL  string
}

func (w *stubWorkflows) ScoreList(_ context.Context, listID uint, force bool) (*planner.Report, error) {
	w.force = force
	if w.err != nil {
		return nil, w.err
	}
	return &planner.Report{ListID: listID, Total: 1, Scored: 1}, nil
}

func (w *stubWorkflows) ScoreSelected(_ context.Context, listID uint, ids []uint, force bool) (*planner.Report, error) {
	w.ids, w.force = ids, force
	if w.err != nil {
		return nil, w.err
	}
	return &planner.Report{ListID: listID, Total: len(ids)}, nil
}

func (w *stubWorkflows) GenerateBrief(ctx context.Context, req planner.BriefRequest) (*brief.ContentBrief, error) {
	w.briefReq = req
	if w.err != nil {
		return nil, w.err
	}
	b := &brief.ContentBrief{
		ID:        fmt.Sprintf("brief-%d", req.KeywordID),
		KeywordID: req.KeywordID,
		Keyword:   "crm software",
		Intent:    intent.Result{Intent: intent.Commercial},
		CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Mode:      brief.NewContent{},
	}
	return b, w.st.SaveBrief(ctx, b)
}

func (w *stubWorkflows) ImprovementPlan(_ context.Context, _ uint, url string) (*brief.ExistingContent, error) {
	w.planURL = url
	if w.err != nil {
		return nil, w.err
	}
	return &brief.ExistingContent{URL: url}, nil
}

func (w *stubWorkflows) Enrich(_ context.Context, keyword, domain string, _ bool) (*serp.EnrichedSerp, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &serp.EnrichedSerp{Keyword: keyword, Domain: domain}, nil
}

type harness struct {
	router    *gin.Engine
	store     *store.Store
	workflows *stubWorkflows
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "records.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	stats, err := logging.NewStatistics(t.TempDir(), false)
	require.NoError(t, err)

	cfg := config.ServerConfig{RateLimitRPS: 1000, RateLimitBurst: 1000, AllowedOrigins: "*"}
	w := &stubWorkflows{st: st}
	return &harness{
		router:    New(cfg, w, st, stats, zap.NewNop()).Router(),
		store:     st,
		workflows: w,
	}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) createList(t *testing.T, keywords ...string) store.KeywordList {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/lists", gin.H{
		"name":            "Client",
		"target_domain":   " Client.com ",
		"client_vertical": "saas",
		"keywords":        keywords,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[store.KeywordList](t, rec)
}

func TestHealthAndStatistics(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/statistics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.Equal(t, 1.0, stats["totalRequests"])

	rec = h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLists(t *testing.T) {
	h := newHarness(t)
	l := h.createList(t, "crm software", "best crm")
	assert.Equal(t, "client.com", l.TargetDomain)
	require.Len(t, l.Keywords, 2)

	t.Run("get and list", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, fmt.Sprintf("/api/lists/%d", l.ID), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[store.KeywordList](t, rec).Keywords, 2)

		rec = h.do(t, http.MethodGet, "/api/lists", nil)
		assert.Len(t, decode[[]store.KeywordList](t, rec), 1)
	})

	t.Run("update", func(t *testing.T) {
		rec := h.do(t, http.MethodPatch, fmt.Sprintf("/api/lists/%d", l.ID), gin.H{"name": "Renamed", "client_vertical": "finance"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[store.KeywordList](t, rec)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, "finance", got.ClientVertical)

		rec = h.do(t, http.MethodPatch, fmt.Sprintf("/api/lists/%d", l.ID), gin.H{"client_vertical": "astrology"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("add keywords", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, fmt.Sprintf("/api/lists/%d/keywords", l.ID), gin.H{"keywords": []string{"CRM Software", "crm pricing"}})
		require.Equal(t, http.StatusCreated, rec.Code)
		added := decode[struct {
			Added []store.Keyword `json:"added"`
		}](t, rec)
		require.Len(t, added.Added, 1)
		assert.Equal(t, "crm pricing", added.Added[0].Keyword)
	})

	t.Run("validation", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/lists", gin.H{"name": "no domain"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[map[string]string](t, rec)["error"], "bad request")

		rec = h.do(t, http.MethodGet, "/api/lists/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = h.do(t, http.MethodGet, "/api/lists/999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := h.do(t, http.MethodDelete, fmt.Sprintf("/api/lists/%d", l.ID), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = h.do(t, http.MethodDelete, fmt.Sprintf("/api/lists/%d", l.ID), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestScoring(t *testing.T) {
	h := newHarness(t)
	l := h.createList(t, "crm software")

	rec := h.do(t, http.MethodPost, fmt.Sprintf("/api/lists/%d/score?force_rescore=true", l.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, h.workflows.force)
	assert.Equal(t, 1, decode[planner.Report](t, rec).Scored)

	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/lists/%d/score-selected", l.ID), gin.H{"keyword_ids": []uint{l.Keywords[0].ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{l.Keywords[0].ID}, h.workflows.ids)
	assert.False(t, h.workflows.force)

	cases := []struct {
		err  error
		want int
	}{
		{planner.ErrNoKeywords, http.StatusBadRequest},
		{fmt.Errorf("list 9: %w", store.ErrNotFound), http.StatusNotFound},
		{serp.ErrProviderUnavailable, http.StatusBadGateway},
		{scoring.ErrNoSerpData, http.StatusBadGateway},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h.workflows.err = tc.err
			rec := h.do(t, http.MethodPost, fmt.Sprintf("/api/lists/%d/score", l.ID), nil)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	h.workflows.err = nil

	rec = h.do(t, http.MethodPost, "/api/lists/1/score-selected", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKeywords(t *testing.T) {
	h := newHarness(t)
	l := h.createList(t, "crm software")
	kid := l.Keywords[0].ID

	rec := h.do(t, http.MethodPatch, fmt.Sprintf("/api/keywords/%d", kid), gin.H{"is_selected": true, "target_url": "https://client.com/crm"})
	require.Equal(t, http.StatusOK, rec.Code)
	k := decode[store.Keyword](t, rec)
	assert.True(t, k.IsSelected)
	assert.Equal(t, "https://client.com/crm", k.TargetURL)

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/keywords/%d/improvement-plan?existing_url=https://client.com/x", kid), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://client.com/x", h.workflows.planURL)

	h.workflows.err = brief.ErrUpstreamUnavailable
	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/keywords/%d/improvement-plan", kid), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	h.workflows.err = nil

	rec = h.do(t, http.MethodDelete, fmt.Sprintf("/api/keywords/%d", kid), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodPatch, fmt.Sprintf("/api/keywords/%d", kid), gin.H{"is_selected": false})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrich(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/serp/enrich", gin.H{"keyword": "crm software", "domain": "client.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "crm software", decode[serp.EnrichedSerp](t, rec).Keyword)

	rec = h.do(t, http.MethodPost, "/api/serp/enrich", gin.H{"domain": "client.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBriefs(t *testing.T) {
	h := newHarness(t)
	l := h.createList(t, "crm software")
	kid := l.Keywords[0].ID

	rec := h.do(t, http.MethodPost, "/api/briefs", gin.H{"keyword_id": kid, "content_type": "new", "target_intent": "commercial"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "commercial", h.workflows.briefReq.TargetIntent)
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "new", created["mode"])
	id := created["id"].(string)

	rec = h.do(t, http.MethodGet, "/api/briefs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "crm software", decode[map[string]any](t, rec)["keyword"])

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/briefs?keyword_id=%d", kid), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	t.Run("errors", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/briefs", gin.H{"content_type": "new"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "keyword_id is required")

		h.workflows.err = fmt.Errorf("%w: unknown intent", brief.ErrInvalidInput)
		rec = h.do(t, http.MethodPost, "/api/briefs", gin.H{"keyword_id": kid})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		h.workflows.err = nil

		rec = h.do(t, http.MethodGet, "/api/briefs?keyword_id=999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = h.do(t, http.MethodGet, "/api/briefs", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = h.do(t, http.MethodDelete, "/api/briefs/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/briefs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
