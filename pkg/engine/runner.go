package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.starlark.net/starlark"

	"github.com/mossy/mossy/pkg/config"
	"github.com/mossy/mossy/pkg/similarity"
	"github.com/mossy/mossy/pkg/stores"
	"github.com/mossy/mossy/pkg/telemetry"
)

// Result is the outcome of comparing one group. Similarity is NaN when
// Err is set.
type Result struct {
	Seq        int
	Names      []string
	Similarity float64
	Err        error
}

// DefaultRetryDelay is the first delay before a transient failure is
// retried.
const DefaultRetryDelay = 100 * time.Millisecond

// Progress is notified once per delivered result.
type Progress interface {
	Increment(n int64)
	Estimate()
}

// Recorder persists runs and their results.
type Recorder interface {
	CreateRun(ctx context.Context, run *stores.Run) error
	AppendResult(ctx context.Context, result *stores.Result) error
	CompleteRun(ctx context.Context, id string, status stores.RunStatus, completed, failed int64, errMsg *string) error
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Status   stores.RunStatus
	Total    int64
	Compared int64
	Failed   int64
	Duration time.Duration
}

// String renders the summary for humans, e.g.
// "1,204 of 1,204 groups compared, 3 failed, in 2.5s".
func (s *Summary) String() string {
	return fmt.Sprintf("%s of %s groups compared, %s failed, in %s",
		humanize.Comma(s.Compared), humanize.Comma(s.Total),
		humanize.Comma(s.Failed), s.Duration.Round(time.Millisecond))
}

// Runner compares the groups of a configuration with its comparer, using
// a bounded pool of workers. Results are delivered in group order
// whatever the number of workers.
type Runner struct {
	// workers is the number of concurrent comparisons
	workers int

	// maxRetries bounds retries of transient failures per group
	maxRetries int

	// baseDelay is the first retry delay, doubled on every attempt
	baseDelay time.Duration

	recorder   Recorder
	configName string
	progress   Progress
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the number of concurrent comparisons.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithRetries sets how often, and after which first delay, a group whose
// comparison failed transiently is retried.
func WithRetries(n int, base time.Duration) RunnerOption {
	return func(r *Runner) {
		r.maxRetries = n
		r.baseDelay = base
	}
}

// WithRecorder records the run and every result. configName describes the
// interpreted sources in the run record.
func WithRecorder(rec Recorder, configName string) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
		r.configName = configName
	}
}

// WithProgress reports delivered results to p.
func WithProgress(p Progress) RunnerOption {
	return func(r *Runner) {
		r.progress = p
	}
}

// NewRunner creates a runner. By default it compares one group at a time
// and retries transient failures five times.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		workers:    1,
		maxRetries: 5,
		baseDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type job struct {
	seq   int
	group config.Group
}

// Run compares every group of cfg and passes the results to emit in group
// order. A group that cannot be compared yields NaN and a warning; the run
// goes on. The run stops early when ctx is cancelled, when emit fails, or
// when recording fails.
func (r *Runner) Run(ctx context.Context, cfg *config.Config, emit func(Result) error) (*Summary, error) {
	comparer, err := similarity.FromValue(cfg.Comparer())
	if err != nil {
		return nil, NewPermanentError("invalid comparer", err).WithCode(ErrCodeValidation)
	}

	summary := &Summary{
		RunID:  uuid.New().String(),
		Status: stores.RunStatusRunning,
		Total:  cfg.Total(),
	}
	start := time.Now()

	if r.recorder != nil {
		run := &stores.Run{
			ID:        summary.RunID,
			Config:    r.configName,
			Status:    stores.RunStatusRunning,
			Total:     summary.Total,
			StartedAt: start,
		}
		if err := r.recorder.CreateRun(ctx, run); err != nil {
			return nil, NewPermanentError("failed to record run", err).WithCode(ErrCodeRecordFailed)
		}
	}

	runCtx := telemetry.WithRunContext(ctx, summary.RunID, cfg.Groups().Len())
	logger := telemetry.FromContext(runCtx)
	logger.Infof("Comparing %s groups with %d workers", humanize.Comma(int64(cfg.Groups().Len())), r.workers)

	runErr := r.execute(runCtx, ctx, cfg, comparer, summary, emit)

	summary.Duration = time.Since(start)
	switch {
	case ctx.Err() != nil:
		summary.Status = stores.RunStatusCancelled
	case runErr != nil:
		summary.Status = stores.RunStatusFailed
	default:
		summary.Status = stores.RunStatusCompleted
	}

	if r.recorder != nil {
		var msg *string
		if runErr != nil {
			s := runErr.Error()
			msg = &s
		}
		if err := r.recorder.CompleteRun(context.WithoutCancel(ctx), summary.RunID, summary.Status,
			summary.Compared, summary.Failed, msg); err != nil && runErr == nil {
			runErr = NewPermanentError("failed to record run", err).WithCode(ErrCodeRecordFailed)
		}
	}

	telemetry.EndRunContext(runCtx, string(summary.Status), runErr)
	logger.Infof("Run %s: %s", summary.Status, summary)

	return summary, runErr
}

// execute feeds the groups to the workers and delivers their results in
// order. At most a window of groups is in flight beyond the next one to
// deliver, which bounds the results held back for ordering.
func (r *Runner) execute(
	runCtx, parent context.Context,
	cfg *config.Config,
	comparer similarity.Comparer,
	summary *Summary,
	emit func(Result) error,
) error {
	ctx, cancel := context.WithCancel(runCtx)
	defer cancel()

	window := r.workers * 4
	jobs := make(chan job)
	results := make(chan Result, window)
	slots := make(chan struct{}, window)

	go func() {
		defer close(jobs)
		seq := 0
		for group := range cfg.Groups().All() {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- job{seq: seq, group: group}:
			case <-ctx.Done():
				return
			}
			seq++
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := r.compareGroup(ctx, cfg, comparer, j)
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var runErr error
	pending := make(map[int]Result)
	next := 0
	for res := range results {
		pending[res.Seq] = res
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			<-slots

			if runErr != nil {
				continue
			}
			if err := parent.Err(); err != nil {
				runErr = err
				cancel()
				continue
			}
			if err := r.deliver(ctx, summary, res, emit); err != nil {
				runErr = err
				cancel()
			}
		}
	}

	if runErr == nil {
		runErr = parent.Err()
	}
	return runErr
}

// deliver records and emits one result.
func (r *Runner) deliver(ctx context.Context, summary *Summary, res Result, emit func(Result) error) error {
	if res.Err != nil {
		res.Similarity = math.NaN()
		summary.Failed++
		telemetry.FromContext(ctx).WithGroup(res.Names).WithError(res.Err).Warn("Unable to compare")
	}

	if r.recorder != nil {
		rec := &stores.Result{
			RunID:      summary.RunID,
			Seq:        int64(res.Seq),
			Names:      res.Names,
			Similarity: res.Similarity,
		}
		if res.Err != nil {
			msg := res.Err.Error()
			rec.Error = &msg
		}
		if err := r.recorder.AppendResult(ctx, rec); err != nil {
			return NewPermanentError("failed to record result", err).
				WithCode(ErrCodeRecordFailed).
				WithGroup(res.Names)
		}
	}

	if err := emit(res); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	summary.Compared++

	if r.progress != nil {
		r.progress.Increment(1)
		r.progress.Estimate()
	}
	return nil
}

// compareGroup resolves the members of a group and compares them, retrying
// transient failures with exponential backoff.
func (r *Runner) compareGroup(ctx context.Context, cfg *config.Config, comparer similarity.Comparer, j job) Result {
	res := Result{Seq: j.seq, Names: j.group.Names}

	items := make([]starlark.Value, len(j.group.Names))
	for i, name := range j.group.Names {
		item, ok := cfg.Item(name)
		if !ok {
			res.Err = NewPermanentError(fmt.Sprintf("unknown item %q", name), nil).
				WithCode(ErrCodeUnknownItem).
				WithGroup(j.group.Names)
			return res
		}
		items[i] = item
	}

	res.Similarity, res.Err = telemetry.RecordComparison(ctx, j.seq, j.group.Names, func(ctx context.Context) (float64, error) {
		for attempt := 0; ; attempt++ {
			sim, err := comparer.Compare(ctx, items...)
			if err == nil {
				return sim, nil
			}
			err = classifyError(err, j.group.Names)
			if !IsRetryable(err) || attempt >= r.maxRetries {
				return 0, err
			}

			backoff := r.calculateBackoff(attempt)
			telemetry.RecordRetry(ctx)
			telemetry.FromContext(ctx).WithGroup(j.group.Names).
				Debugf("Retrying comparison in %s (attempt %d/%d)", backoff, attempt+1, r.maxRetries)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	})
	return res
}

// calculateBackoff calculates exponential backoff with jitter.
func (r *Runner) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: delay = baseDelay * 2^attempt
	delay := r.baseDelay * time.Duration(math.Pow(2, float64(attempt)))

	// Cap at 1 minute
	if delay > time.Minute {
		delay = time.Minute
	}

	// Add up to 25% random jitter
	return delay + time.Duration(rand.Int64N(int64(delay)/4+1))
}
