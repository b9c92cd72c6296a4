package scoring

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/metrics"
	"github.com/seo-forecaster/backend/stats"
)

// State is a keyword's scoring state. SCORING only exists in memory.
type State string

const (
	StateUnscored State = "UNSCORED"
	StateScoring  State = "SCORING"
	StateScored   State = "SCORED"
)

// Job is one keyword to score.
type Job struct {
	KeywordID uint
	Keyword   string
}

// Result is the outcome for one Job.
type Result struct {
	KeywordID uint          `json:"keyword_id"`
	Keyword   string        `json:"keyword"`
	State     State         `json:"state"`
	Score     *KeywordScore `json:"score,omitempty"`
	Skipped   bool          `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
}

// Succeeded reports whether the keyword ended up scored.
func (r Result) Succeeded() bool {
	return r.State == StateScored
}

// ScoreFunc scores one job. It must honour ctx.
type ScoreFunc func(ctx context.Context, job Job) (*KeywordScore, error)

// Runner fans a batch out over a bounded worker pool.
type Runner struct {
	concurrency int
	timeout     time.Duration
	stats       *stats.Storage
	logger      *zap.Logger
}

// NewRunner creates a Runner. timeout bounds each keyword; zero disables it.
func NewRunner(concurrency int, timeout time.Duration, st *stats.Storage, logger *zap.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		concurrency: concurrency,
		timeout:     timeout,
		stats:       st,
		logger:      logger.Named("batch"),
	}
}

// Run scores every job and returns one Result per job in completion order.
// One job failing never stops the others. When ctx is cancelled, jobs that
// have not finished are reported failed with the context error.
func (r *Runner) Run(ctx context.Context, jobs []Job, score ScoreFunc) []Result {
	results := make(chan Result, len(jobs))
	queue := make(chan Job)

	var wg sync.WaitGroup
	for i := 0; i < min(r.concurrency, len(jobs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				results <- r.runOne(ctx, job, score)
			}
		}()
	}

	var pending []Job
	for i, job := range jobs {
		select {
		case queue <- job:
			continue
		case <-ctx.Done():
			pending = jobs[i:]
		}
		break
	}
	close(queue)
	wg.Wait()
	close(results)

	out := make([]Result, 0, len(jobs))
	for res := range results {
		out = append(out, res)
	}
	for _, job := range pending {
		out = append(out, r.failed(job, ctx.Err()))
	}
	return out
}

func (r *Runner) runOne(ctx context.Context, job Job, score ScoreFunc) Result {
	if err := ctx.Err(); err != nil {
		return r.failed(job, err)
	}

	jobCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ks, err := score(jobCtx, job)
	if err == nil && jobCtx.Err() != nil {
		// finished after the deadline; the result is not trusted
		err = jobCtx.Err()
	}
	if err != nil {
		return r.failed(job, err)
	}

	r.stats.Increment(stats.KeywordScored, 1)
	metrics.KeywordScored("success", ks.WinScore)
	return Result{KeywordID: job.KeywordID, Keyword: job.Keyword, State: StateScored, Score: ks}
}

func (r *Runner) failed(job Job, err error) Result {
	outcome := "failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	}
	r.stats.Increment(stats.KeywordFailed, 1)
	metrics.KeywordScored(outcome, 0)
	r.logger.Warn("keyword scoring failed",
		zap.Uint("keyword_id", job.KeywordID), zap.String("keyword", job.Keyword),
		zap.String("outcome", outcome), zap.Error(err))

	return Result{
		KeywordID: job.KeywordID,
		Keyword:   job.Keyword,
		State:     StateUnscored,
		Error:     err.Error(),
		Err:       err,
	}
}
