package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Statistics tracks API usage: visitors, request volume, errors and latency,
// plus which keywords are requested most.
type Statistics struct {
	UniqueVisitors  map[string]time.Time `json:"uniqueVisitors"` // IP -> last visit
	Requests        int                  `json:"requests"`
	ErrorCount      int                  `json:"errorCount"`
	PopularKeywords map[string]int       `json:"popularKeywords"`
	AverageLatency  float64              `json:"averageLatencyMs"`
	TotalLatency    float64              `json:"totalLatencyMs"`
	LastPersisted   time.Time            `json:"lastPersisted"`

	filePath string
	devMode  bool
	mutex    sync.RWMutex
}

// NewStatistics loads statistics from dataDir/statistics.json if it exists.
// devMode exposes the popular keyword list in snapshots.
func NewStatistics(dataDir string, devMode bool) (*Statistics, error) {
	s := &Statistics{
		UniqueVisitors:  make(map[string]time.Time),
		PopularKeywords: make(map[string]int),
		filePath:        filepath.Join(dataDir, "statistics.json"),
		devMode:         devMode,
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// TrackVisitor records a visit from ip.
func (s *Statistics) TrackVisitor(ip string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.UniqueVisitors[ip] = time.Now()
}

// TrackRequest records one API request and its latency in milliseconds.
func (s *Statistics) TrackRequest(latencyMs float64, hasError bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Requests++
	if hasError {
		s.ErrorCount++
	}
	s.TotalLatency += latencyMs
	s.AverageLatency = s.TotalLatency / float64(s.Requests)
}

// TrackKeyword counts a keyword that was scored or briefed. It is a no-op
// on a nil receiver.
func (s *Statistics) TrackKeyword(keyword string) {
	if s == nil || keyword == "" {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.PopularKeywords[keyword]++
}

// RequestCount returns the number of tracked requests.
func (s *Statistics) RequestCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Requests
}

func (s *Statistics) uniqueVisitors24h() int {
	cutoff := time.Now().Add(-24 * time.Hour)
	count := 0
	for _, lastVisit := range s.UniqueVisitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}
	return count
}

func (s *Statistics) errorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.Requests) * 100
}

func (s *Statistics) topKeywords(n int) []KeywordCount {
	out := make([]KeywordCount, 0, len(s.PopularKeywords))
	for k, c := range s.PopularKeywords {
		out = append(out, KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// KeywordCount is one entry of the popular keyword list.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Snapshot returns a copy of the current statistics. Popular keywords are only
// included in dev mode.
func (s *Statistics) Snapshot() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := map[string]interface{}{
		"uniqueVisitors24h": s.uniqueVisitors24h(),
		"totalRequests":     s.Requests,
		"errorRate":         s.errorRate(),
		"averageLatencyMs":  s.AverageLatency,
	}
	if s.devMode {
		out["popularKeywords"] = s.topKeywords(5)
	}
	return out
}

// Save persists the statistics via a temp file and rename.
func (s *Statistics) Save() error {
	s.mutex.Lock()
	s.LastPersisted = time.Now()
	data, err := json.Marshal(s)
	s.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("could not encode statistics: %w", err)
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("could not write statistics file: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("could not replace statistics file: %w", err)
	}
	return nil
}

// Load reads persisted statistics. A missing file is not an error.
func (s *Statistics) Load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not open statistics file: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("could not decode statistics: %w", err)
	}
	if s.UniqueVisitors == nil {
		s.UniqueVisitors = make(map[string]time.Time)
	}
	if s.PopularKeywords == nil {
		s.PopularKeywords = make(map[string]int)
	}
	return nil
}
