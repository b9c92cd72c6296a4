package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Counter identifies one monthly counter.
type Counter int

const (
	SerpCacheHit Counter = iota
	SerpCacheMiss
	PageCacheHit
	PageCacheMiss
	KeywordScored
	KeywordFailed
	BriefGenerated
)

// MonthlyStats represents statistics for a specific month
type MonthlyStats struct {
	SerpCacheHits   int       `json:"serp_hits"`
	SerpCacheMisses int       `json:"serp_misses"`
	PageCacheHits   int       `json:"page_hits"`
	PageCacheMisses int       `json:"page_misses"`
	KeywordsScored  int       `json:"keywords_scored"`
	KeywordsFailed  int       `json:"keywords_failed"`
	BriefsGenerated int       `json:"briefs_generated"`
	LastUpdated     time.Time `json:"last_updated"`
}

func (m *MonthlyStats) add(c Counter, n int) {
	switch c {
	case SerpCacheHit:
		m.SerpCacheHits += n
	case SerpCacheMiss:
		m.SerpCacheMisses += n
	case PageCacheHit:
		m.PageCacheHits += n
	case PageCacheMiss:
		m.PageCacheMisses += n
	case KeywordScored:
		m.KeywordsScored += n
	case KeywordFailed:
		m.KeywordsFailed += n
	case BriefGenerated:
		m.BriefsGenerated += n
	}
}

// Storage handles persistent storage of statistics
type Storage struct {
	mutex       sync.RWMutex
	stats       map[string]*MonthlyStats // key: "YYYY-MM"
	filePath    string
	lastWrite   time.Time
	writeBuffer chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	logger      *zap.Logger
	now         func() time.Time
}

// NewStorage creates a new statistics storage instance
func NewStorage(dataDir string, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Storage{
		stats:       make(map[string]*MonthlyStats),
		filePath:    filepath.Join(dataDir, "stats.json"),
		writeBuffer: make(chan struct{}, 1),
		done:        make(chan struct{}),
		logger:      logger.Named("stats"),
		now:         time.Now,
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	go s.backgroundWriter()

	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return json.Unmarshal(data, &s.stats)
}

// save writes statistics to file via a temp file and rename
func (s *Storage) save() error {
	s.mutex.RLock()
	data, err := json.Marshal(s.stats)
	s.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// backgroundWriter handles periodic writes to disk
func (s *Storage) backgroundWriter() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.writeBuffer:
		case <-ticker.C:
		case <-s.done:
			return
		}
		if err := s.save(); err != nil {
			s.logger.Warn("failed to persist stats", zap.Error(err))
		}
	}
}

func (s *Storage) currentMonth() string {
	return s.now().Format("2006-01")
}

// requestWrite signals that a write to disk is needed
func (s *Storage) requestWrite() {
	select {
	case s.writeBuffer <- struct{}{}:
	default:
		// write already pending
	}
}

// Increment adds n to counter c for the current month
func (s *Storage) Increment(c Counter, n int) {
	if s == nil {
		return
	}
	month := s.currentMonth()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats, exists := s.stats[month]
	if !exists {
		stats = &MonthlyStats{}
		s.stats[month] = stats
	}
	stats.add(c, n)
	stats.LastUpdated = time.Now()

	if time.Since(s.lastWrite) > time.Minute {
		s.requestWrite()
		s.lastWrite = time.Now()
	}
}

// GetCurrentStats returns statistics for the current month
func (s *Storage) GetCurrentStats() MonthlyStats {
	month := s.currentMonth()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[month]; exists {
		return *stats
	}
	return MonthlyStats{}
}

// Cleanup removes statistics older than retainMonths, counting the current month
func (s *Storage) Cleanup(retainMonths int) {
	if retainMonths < 1 {
		retainMonths = 1
	}
	// step back from the 1st so AddDate never normalizes into the wrong month
	now := s.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	keep := make(map[string]bool, retainMonths)
	for i := 0; i < retainMonths; i++ {
		keep[first.AddDate(0, -i, 0).Format("2006-01")] = true
	}

	s.mutex.Lock()
	for key := range s.stats {
		if !keep[key] {
			delete(s.stats, key)
		}
	}
	s.mutex.Unlock()

	s.requestWrite()
	s.logger.Debug("stats cleanup", zap.Int("retain_months", retainMonths))
}

// GetMonthlyStats returns statistics for a specific month
func (s *Storage) GetMonthlyStats(yearMonth string) (MonthlyStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[yearMonth]; exists {
		return *stats, true
	}
	return MonthlyStats{}, false
}

// GetAllMonths returns all months that have statistics, newest first
func (s *Storage) GetAllMonths() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	months := make([]string, 0, len(s.stats))
	for month := range s.stats {
		months = append(months, month)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	return months
}

// Shutdown stops the background writer and flushes to disk
func (s *Storage) Shutdown() error {
	if s == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.done) })
	return s.save()
}
