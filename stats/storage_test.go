package stats

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStorage(t *testing.T) {
	tempDir := t.TempDir()

	storage, err := NewStorage(tempDir, zap.NewNop())
	require.NoError(t, err)

	t.Run("Increment", func(t *testing.T) {
		storage.Increment(SerpCacheHit, 1)
		storage.Increment(SerpCacheMiss, 2)
		storage.Increment(PageCacheHit, 3)
		storage.Increment(PageCacheMiss, 4)
		storage.Increment(KeywordScored, 5)
		storage.Increment(KeywordFailed, 6)
		storage.Increment(BriefGenerated, 7)

		stats := storage.GetCurrentStats()
		assert.Equal(t, 1, stats.SerpCacheHits)
		assert.Equal(t, 2, stats.SerpCacheMisses)
		assert.Equal(t, 3, stats.PageCacheHits)
		assert.Equal(t, 4, stats.PageCacheMisses)
		assert.Equal(t, 5, stats.KeywordsScored)
		assert.Equal(t, 6, stats.KeywordsFailed)
		assert.Equal(t, 7, stats.BriefsGenerated)
	})

	t.Run("Persistence", func(t *testing.T) {
		require.NoError(t, storage.save())

		storage2, err := NewStorage(tempDir, zap.NewNop())
		require.NoError(t, err)
		defer storage2.Shutdown()

		assert.Equal(t, 1, storage2.GetCurrentStats().SerpCacheHits)
	})

	t.Run("Cleanup", func(t *testing.T) {
		oldMonth := time.Now().AddDate(0, -2, 0).Format("2006-01")
		storage.mutex.Lock()
		storage.stats[oldMonth] = &MonthlyStats{SerpCacheHits: 100}
		storage.mutex.Unlock()

		storage.Cleanup(2)

		_, exists := storage.GetMonthlyStats(oldMonth)
		assert.False(t, exists, "old stats should have been cleaned up")
		assert.Equal(t, []string{time.Now().Format("2006-01")}, storage.GetAllMonths())
	})

	t.Run("FileSize", func(t *testing.T) {
		require.NoError(t, storage.save())

		info, err := os.Stat(filepath.Join(tempDir, "stats.json"))
		require.NoError(t, err)
		assert.Less(t, info.Size(), int64(1024))
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		before := storage.GetCurrentStats()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					storage.Increment(PageCacheHit, 1)
					storage.GetCurrentStats()
				}
			}()
		}
		wg.Wait()

		after := storage.GetCurrentStats()
		assert.Equal(t, before.PageCacheHits+1000, after.PageCacheHits)
	})

	t.Run("Shutdown", func(t *testing.T) {
		require.NoError(t, storage.Shutdown())
		require.NoError(t, storage.Shutdown())
	})
}

func TestCleanupAtMonthEnd(t *testing.T) {
	storage, err := NewStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer storage.Shutdown()
	storage.now = func() time.Time { return time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC) }

	storage.mutex.Lock()
	for _, month := range []string{"2025-12", "2026-01", "2026-02", "2026-03"} {
		storage.stats[month] = &MonthlyStats{KeywordsScored: 1}
	}
	storage.mutex.Unlock()

	storage.Cleanup(3)
	assert.Equal(t, []string{"2026-03", "2026-02", "2026-01"}, storage.GetAllMonths())

	storage.Cleanup(2)
	_, kept := storage.GetMonthlyStats("2026-02")
	assert.True(t, kept, "the previous month survives on the 31st")
	assert.Equal(t, 1, storage.GetCurrentStats().KeywordsScored)
}
