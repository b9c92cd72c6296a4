package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seo-forecaster/backend/planner"
	"github.com/seo-forecaster/backend/scoring"
	"github.com/seo-forecaster/backend/store"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) statistics(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

// idParam parses a positive numeric path or query parameter.
func idParam(raw, name string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return uint(id), nil
}

// bind decodes the JSON body into v, reporting failures as bad requests.
func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func validVertical(v string) error {
	if v != "" && !scoring.ValidVertical(v) {
		return fmt.Errorf("%w: unknown client_vertical %q", errBadRequest, v)
	}
	return nil
}

type createListRequest struct {
	Name             string   `json:"name" binding:"required"`
	TargetDomain     string   `json:"target_domain" binding:"required"`
	ClientVertical   string   `json:"client_vertical"`
	VerticalKeywords []string `json:"vertical_keywords"`
	Keywords         []string `json:"keywords"`
}

func (s *Server) createList(c *gin.Context) {
	var req createListRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if err := validVertical(req.ClientVertical); err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	l := &store.KeywordList{
		Name:             req.Name,
		TargetDomain:     strings.ToLower(strings.TrimSpace(req.TargetDomain)),
		ClientVertical:   req.ClientVertical,
		VerticalKeywords: req.VerticalKeywords,
	}
	if err := s.store.CreateList(ctx, l, req.Keywords...); err != nil {
		s.fail(c, err)
		return
	}
	created, err := s.store.GetList(ctx, l.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) lists(c *gin.Context) {
	lists, err := s.store.Lists(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lists)
}

func (s *Server) getList(c *gin.Context) {
	id, err := idParam(c.Param("id"), "list id")
	if err != nil {
		s.fail(c, err)
		return
	}
	l, err := s.store.GetList(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) updateList(c *gin.Context) {
	id, err := idParam(c.Param("id"), "list id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var u store.ListUpdate
	if err := bind(c, &u); err != nil {
		s.fail(c, err)
		return
	}
	if u.ClientVertical != nil {
		if err := validVertical(*u.ClientVertical); err != nil {
			s.fail(c, err)
			return
		}
	}
	l, err := s.store.UpdateList(c.Request.Context(), id, u)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) deleteList(c *gin.Context) {
	id, err := idParam(c.Param("id"), "list id")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.store.DeleteList(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addKeywords(c *gin.Context) {
	id, err := idParam(c.Param("id"), "list id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req struct {
		Keywords []string `json:"keywords" binding:"required"`
	}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	added, err := s.store.AddKeywords(c.Request.Context(), id, req.Keywords)
	if err != nil {
		s.fail(c, err)
		return
	}
	if added == nil {
		added = []store.Keyword{}
	}
	c.JSON(http.StatusCreated, gin.H{"added": added})
}

func (s *Server) scoreList(c *gin.Context) {
	id, err := idParam(c.Param("id"), "list id")
	if err != nil {
		s.fail(c, err)
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force_rescore", "false"))
	report, err := s.workflows.ScoreList(c.Request.Context(), id, force)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) scoreSelected(c *gin.Context) {
	id, err := idParam(c.Param("id"), "list id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req struct {
		KeywordIDs   []uint `json:"keyword_ids" binding:"required"`
		ForceRescore bool   `json:"force_rescore"`
	}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	report, err := s.workflows.ScoreSelected(c.Request.Context(), id, req.KeywordIDs, req.ForceRescore)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) updateKeyword(c *gin.Context) {
	id, err := idParam(c.Param("id"), "keyword id")
	if err != nil {
		s.fail(c, err)
		return
	}
	var u store.KeywordUpdate
	if err := bind(c, &u); err != nil {
		s.fail(c, err)
		return
	}
	k, err := s.store.UpdateKeyword(c.Request.Context(), id, u)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, k)
}

func (s *Server) deleteKeyword(c *gin.Context) {
	id, err := idParam(c.Param("id"), "keyword id")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.store.DeleteKeyword(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) improvementPlan(c *gin.Context) {
	id, err := idParam(c.Param("id"), "keyword id")
	if err != nil {
		s.fail(c, err)
		return
	}
	plan, err := s.workflows.ImprovementPlan(c.Request.Context(), id, c.Query("existing_url"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) enrich(c *gin.Context) {
	var req struct {
		Keyword      string `json:"keyword" binding:"required"`
		Domain       string `json:"domain"`
		ForceRefresh bool   `json:"force_refresh"`
	}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	sp, err := s.workflows.Enrich(c.Request.Context(), req.Keyword, req.Domain, req.ForceRefresh)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

func (s *Server) createBrief(c *gin.Context) {
	var req planner.BriefRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.workflows.GenerateBrief(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) briefs(c *gin.Context) {
	id, err := idParam(c.Query("keyword_id"), "keyword_id")
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetKeyword(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.store.Briefs(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getBrief(c *gin.Context) {
	b, err := s.store.GetBrief(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBrief(c *gin.Context) {
	if err := s.store.DeleteBrief(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
