// Package store persists keyword lists, keywords and content briefs in
// SQLite through gorm.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/seo-forecaster/backend/brief"
	"github.com/seo-forecaster/backend/scoring"
)

// Store is the records database.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create records dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open records db: %w", err)
	}
	if err := db.AutoMigrate(&KeywordList{}, &Keyword{}, &Brief{}); err != nil {
		return nil, fmt.Errorf("migrate records db: %w", err)
	}

	logger.Named("store").Info("records database ready", zap.String("path", path))
	return &Store{db: db, logger: logger.Named("store")}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return err
}

// CreateList inserts l and its initial keywords in one transaction, so a
// failed keyword insert leaves no empty list behind. Keywords are cleaned
// the way AddKeywords cleans them and are set on l.Keywords.
func (s *Store) CreateList(ctx context.Context, l *KeywordList, keywords ...string) error {
	l.Name = strings.TrimSpace(l.Name)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Keywords").Create(l).Error; err != nil {
			return err
		}
		added, err := insertKeywords(tx, l.ID, nil, keywords)
		if err != nil {
			return fmt.Errorf("add keywords: %w", err)
		}
		l.Keywords = added
		return nil
	})
	if err != nil {
		l.ID = 0
		l.Keywords = nil
	}
	return err
}

// Lists returns all lists, newest first, without their keywords.
func (s *Store) Lists(ctx context.Context) ([]KeywordList, error) {
	var lists []KeywordList
	err := s.db.WithContext(ctx).Order("id DESC").Find(&lists).Error
	return lists, err
}

// GetList returns a list with its keywords in insertion order.
func (s *Store) GetList(ctx context.Context, id uint) (*KeywordList, error) {
	var l KeywordList
	err := s.db.WithContext(ctx).
		Preload("Keywords", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&l, id).Error
	if err != nil {
		return nil, notFound(err, "list", id)
	}
	return &l, nil
}

// ListUpdate holds the mutable list fields; nil fields are left unchanged.
type ListUpdate struct {
	Name             *string   `json:"name"`
	ClientVertical   *string   `json:"client_vertical"`
	VerticalKeywords *[]string `json:"vertical_keywords"`
}

// UpdateList applies u to list id.
func (s *Store) UpdateList(ctx context.Context, id uint, u ListUpdate) (*KeywordList, error) {
	l, err := s.GetList(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		l.Name = strings.TrimSpace(*u.Name)
	}
	if u.ClientVertical != nil {
		l.ClientVertical = *u.ClientVertical
	}
	if u.VerticalKeywords != nil {
		l.VerticalKeywords = *u.VerticalKeywords
	}
	row := *l
	row.Keywords = nil
	err = s.db.WithContext(ctx).Model(&row).Select("Name", "ClientVertical", "VerticalKeywords").Updates(&row).Error
	if err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteList removes a list, its keywords and their briefs.
func (s *Store) DeleteList(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&KeywordList{}, id).Error; err != nil {
			return notFound(err, "list", id)
		}
		keywordIDs := tx.Model(&Keyword{}).Select("id").Where("list_id = ?", id)
		if err := tx.Where("keyword_id IN (?)", keywordIDs).Delete(&Brief{}).Error; err != nil {
			return err
		}
		if err := tx.Where("list_id = ?", id).Delete(&Keyword{}).Error; err != nil {
			return err
		}
		return tx.Delete(&KeywordList{}, id).Error
	})
}

// AddKeywords appends keywords to a list, skipping blanks and
// case-insensitive duplicates of keywords already present.
func (s *Store) AddKeywords(ctx context.Context, listID uint, keywords []string) ([]Keyword, error) {
	l, err := s.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	return insertKeywords(s.db.WithContext(ctx), listID, l.Keywords, keywords)
}

func insertKeywords(db *gorm.DB, listID uint, existing []Keyword, keywords []string) ([]Keyword, error) {
	seen := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		seen[strings.ToLower(k.Keyword)] = struct{}{}
	}

	var added []Keyword
	for _, kw := range keywords {
		kw = strings.Join(strings.Fields(kw), " ")
		key := strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		added = append(added, Keyword{ListID: listID, Keyword: kw})
	}
	if len(added) == 0 {
		return nil, nil
	}
	if err := db.Create(&added).Error; err != nil {
		return nil, err
	}
	return added, nil
}

// GetKeyword returns one keyword.
func (s *Store) GetKeyword(ctx context.Context, id uint) (*Keyword, error) {
	var k Keyword
	if err := s.db.WithContext(ctx).First(&k, id).Error; err != nil {
		return nil, notFound(err, "keyword", id)
	}
	return &k, nil
}

// KeywordsByID returns the keywords of listID whose ids are in ids.
// Unknown ids are ignored.
func (s *Store) KeywordsByID(ctx context.Context, listID uint, ids []uint) ([]Keyword, error) {
	var out []Keyword
	if len(ids) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).Where("list_id = ? AND id IN ?", listID, ids).Order("id ASC").Find(&out).Error
	return out, err
}

// KeywordUpdate holds the user-editable keyword fields.
type KeywordUpdate struct {
	IsSelected  *bool   `json:"is_selected"`
	ContentType *string `json:"content_type"`
	TargetURL   *string `json:"target_url"`
}

// UpdateKeyword applies u to keyword id.
func (s *Store) UpdateKeyword(ctx context.Context, id uint, u KeywordUpdate) (*Keyword, error) {
	k, err := s.GetKeyword(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsSelected != nil {
		k.IsSelected = *u.IsSelected
	}
	if u.ContentType != nil {
		k.ContentType = *u.ContentType
	}
	if u.TargetURL != nil {
		k.TargetURL = strings.TrimSpace(*u.TargetURL)
	}
	err = s.db.WithContext(ctx).Model(k).Select("IsSelected", "ContentType", "TargetURL").Updates(k).Error
	if err != nil {
		return nil, err
	}
	return k, nil
}

// DeleteKeyword removes a keyword and its briefs.
func (s *Store) DeleteKeyword(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Keyword{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("keyword %d: %w", id, ErrNotFound)
		}
		return tx.Where("keyword_id = ?", id).Delete(&Brief{}).Error
	})
}

// SaveScore writes every score field of keyword id in one statement.
// Fit columns are cleared when the score has no client profile.
func (s *Store) SaveScore(ctx context.Context, id uint, sc *scoring.KeywordScore) error {
	fields := map[string]any{
		"rankability_score":      sc.WinScore,
		"opportunity_tier":       string(sc.Tier),
		"tier_explanation":       sc.TierExplanation,
		"forecast_weaker":        sc.Forecast.Weaker.Probability,
		"forecast_baseline":      sc.Forecast.Baseline.Probability,
		"forecast_stronger":      sc.Forecast.Stronger.Probability,
		"assumed_parity":         sc.AssumedParity,
		"domain_fit_score":       nil,
		"domain_fit_explanation": "",
		"intent_fit_score":       nil,
		"intent_fit_explanation": "",
		"client_forecast_score":  nil,
		"client_forecast_tier":   "",
		"client_recommendation":  "",
		"scored_at":              sc.ScoredAt,
	}
	if sc.DomainFit != nil {
		fields["domain_fit_score"] = sc.DomainFit.Score
		fields["domain_fit_explanation"] = sc.DomainFit.Explanation
	}
	if sc.IntentFit != nil {
		fields["intent_fit_score"] = sc.IntentFit.Score
		fields["intent_fit_explanation"] = sc.IntentFit.Explanation
	}
	if sc.ClientForecast != nil {
		fields["client_forecast_score"] = sc.ClientForecast.Score
		fields["client_forecast_tier"] = string(sc.ClientForecast.Tier)
		fields["client_recommendation"] = sc.ClientForecast.Recommendation
	}

	res := s.db.WithContext(ctx).Model(&Keyword{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("keyword %d: %w", id, ErrNotFound)
	}
	return nil
}

// SaveBrief stores b as a new row. Briefs are never updated in place.
func (s *Store) SaveBrief(ctx context.Context, b *brief.ContentBrief) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode brief: %w", err)
	}
	row := Brief{
		ID:        b.ID,
		KeywordID: b.KeywordID,
		Mode:      b.ModeName(),
		Body:      body,
		CreatedAt: b.CreatedAt,
	}
	if b.Intent.Override {
		row.TargetIntent = string(b.Intent.Intent)
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// GetBrief loads a brief by id.
func (s *Store) GetBrief(ctx context.Context, id string) (*brief.ContentBrief, error) {
	var row Brief
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "brief", id)
	}
	return decodeBrief(row)
}

// Briefs returns the briefs of a keyword, newest first.
func (s *Store) Briefs(ctx context.Context, keywordID uint) ([]*brief.ContentBrief, error) {
	var rows []Brief
	err := s.db.WithContext(ctx).Where("keyword_id = ?", keywordID).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*brief.ContentBrief, 0, len(rows))
	for _, row := range rows {
		b, err := decodeBrief(row)
		if err != nil {
			s.logger.Warn("skipping unreadable brief", zap.String("id", row.ID), zap.Error(err))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// DeleteBrief removes a brief.
func (s *Store) DeleteBrief(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Brief{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("brief %s: %w", id, ErrNotFound)
	}
	return nil
}

func decodeBrief(row Brief) (*brief.ContentBrief, error) {
	var b brief.ContentBrief
	if err := json.Unmarshal(row.Body, &b); err != nil {
		return nil, fmt.Errorf("decode brief %s: %w", row.ID, err)
	}
	return &b, nil
}
