// Package coursefinder runs one complete catalog crawl: search for course
// ids, fan detail fetches out over the worker pool, wait for every item to be
// aggregated, then hand parsed courses to the record writer.
package coursefinder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/aggregator"
	"github.com/JakeFAU/coursefinder-crawler/internal/api"
	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
	"github.com/JakeFAU/coursefinder-crawler/internal/dispatcher"
	"github.com/JakeFAU/coursefinder-crawler/internal/export/csv"
	"github.com/JakeFAU/coursefinder-crawler/internal/logging"
	"github.com/JakeFAU/coursefinder-crawler/internal/parser"
	"github.com/JakeFAU/coursefinder-crawler/internal/progress"
	"github.com/JakeFAU/coursefinder-crawler/internal/queue/memory"
	"github.com/JakeFAU/coursefinder-crawler/internal/worker"
)

// Searcher lists candidate course ids.
type Searcher interface {
	CourseIDs(ctx context.Context, query, requirements string) ([]string, error)
}

// RunIDGenerator mints crawl run ids.
type RunIDGenerator interface {
	NewRunID() (uuid.UUID, error)
}

// Tracker is told about each crawl so it can serve live progress.
type Tracker interface {
	Track(runID string, source api.StatusSource)
}

// BatchWriter persists many courses, continuing past individual failures.
type BatchWriter interface {
	WriteAll(ctx context.Context, courses []crawler.Course) (int, error)
}

// Config holds per-run parameters.
type Config struct {
	Host         string
	Query        string
	Requirements string
	Concurrency  int
	// CSVPath, when set, receives a summary row per parsed course.
	CSVPath string
}

// Deps are the collaborators of a Runner. Parse defaults to parser.Parse;
// Writer, Emitter and Tracker are optional.
type Deps struct {
	Searcher Searcher
	Fetcher  crawler.DocumentFetcher
	Parse    crawler.ParseFunc
	Writer   BatchWriter
	Emitter  progress.Emitter
	Tracker  Tracker
	IDs      RunIDGenerator
	Clock    crawler.Clock
}

// Summary describes a finished crawl.
type Summary struct {
	RunID    string
	Total    int
	Parsed   int
	NotFound int
	Failed   int
	Written  int
	Elapsed  time.Duration
	Courses  []crawler.Course
}

// Runner executes crawls.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New validates deps and returns a Runner.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Searcher == nil:
		return nil, errors.New("searcher is required")
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.IDs == nil:
		return nil, errors.New("run id generator is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	}
	if deps.Parse == nil {
		deps.Parse = parser.Parse
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = dispatcher.DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}, nil
}

// Run performs one crawl. A non-nil error with a populated Summary means the
// crawl finished but some records could not be written.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	id, err := r.deps.IDs.NewRunID()
	if err != nil {
		return Summary{}, fmt.Errorf("new run id: %w", err)
	}
	runID := progress.UUIDToBytes(id)
	logger := logging.ForRun(r.logger, id.String())
	started := r.deps.Clock.Now()
	summary := Summary{RunID: id.String()}

	ids, err := r.deps.Searcher.CourseIDs(ctx, r.cfg.Query, r.cfg.Requirements)
	if err != nil {
		r.emit(progress.Event{RunID: runID, Stage: progress.StageCrawlError, Note: err.Error(), Dur: r.since(started)})
		return summary, fmt.Errorf("search: %w", err)
	}
	total := len(ids)
	summary.Total = total

	agg := aggregator.New(runID, r.deps.Emitter, r.deps.Clock)
	agg.SetTotal(total)
	if r.deps.Tracker != nil {
		r.deps.Tracker.Track(summary.RunID, agg)
	}
	r.emit(progress.Event{RunID: runID, Stage: progress.StageCrawlStart, Total: total})

	if err := r.crawl(ctx, logger, agg, ids); err != nil {
		r.emit(progress.Event{RunID: runID, Stage: progress.StageCrawlError, Total: total,
			Completed: agg.Completed(), Note: err.Error(), Dur: r.since(started)})
		return summary, err
	}
	logger.Info("course info retrieved", zap.Duration("took", r.since(started)))

	snap := agg.Snapshot()
	summary.Parsed, summary.NotFound, summary.Failed = snap.Parsed, snap.NotFound, snap.Failed
	summary.Courses = crawler.ParsedCourses(agg.Outcomes())

	writeErr := r.persist(ctx, logger, &summary)
	summary.Elapsed = r.since(started)

	done := progress.Event{
		RunID:     runID,
		Stage:     progress.StageCrawlDone,
		Total:     total,
		Completed: snap.Completed,
		Dur:       summary.Elapsed,
		Note:      fmt.Sprintf("parsed=%d not_found=%d failed=%d written=%d", summary.Parsed, summary.NotFound, summary.Failed, summary.Written),
	}
	r.emit(done)
	logger.Info("crawl finished",
		zap.Int("total", summary.Total),
		zap.Int("parsed", summary.Parsed),
		zap.Int("not_found", summary.NotFound),
		zap.Int("failed", summary.Failed),
		zap.Int("written", summary.Written),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, writeErr
}

// crawl enqueues every id before joining, so the unbounded queue never makes
// the producer wait on worker throughput.
func (r *Runner) crawl(ctx context.Context, logger *zap.Logger, agg *aggregator.Aggregator, ids []string) error {
	q := memory.NewQueue()
	pool := dispatcher.NewSized(q, r.cfg.Concurrency, func(i int) *worker.Worker {
		return worker.New(q, r.deps.Fetcher, r.deps.Parse, agg, r.deps.Clock,
			logger.Named("worker").With(zap.Int("index", i)))
	})

	workerCtx, cancel := context.WithCancel(ctx)
	defer func() {
		q.Close()
		cancel()
		pool.Wait()
	}()
	pool.Start(workerCtx)

	for _, id := range ids {
		item := crawler.WorkItem{ID: id, URL: crawler.DetailURL(r.cfg.Host, id), Total: len(ids)}
		if err := pool.Enqueue(item); err != nil {
			return fmt.Errorf("enqueue %s: %w", id, err)
		}
	}
	if err := pool.Join(ctx); err != nil {
		return fmt.Errorf("wait for workers: %w", err)
	}
	return nil
}

func (r *Runner) persist(ctx context.Context, logger *zap.Logger, summary *Summary) error {
	var errs []error
	if r.deps.Writer != nil {
		written, err := r.deps.Writer.WriteAll(ctx, summary.Courses)
		summary.Written = written
		if err != nil {
			errs = append(errs, fmt.Errorf("write courses: %w", err))
		}
	}
	if r.cfg.CSVPath != "" {
		if err := csv.WriteFile(r.cfg.CSVPath, summary.Courses); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("csv summary written", zap.String("path", r.cfg.CSVPath))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) emit(evt progress.Event) {
	if r.deps.Emitter == nil {
		return
	}
	evt.TS = r.deps.Clock.Now()
	r.deps.Emitter.Emit(evt)
}

func (r *Runner) since(t time.Time) time.Duration {
	d := r.deps.Clock.Now().Sub(t)
	if d < 0 {
		return 0
	}
	return d
}
