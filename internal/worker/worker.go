// Package worker implements the per-item crawl loop: take, fetch, parse,
// aggregate, done.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
	"github.com/JakeFAU/coursefinder-crawler/internal/metrics"
)

// Worker consumes queue items and turns each into exactly one Outcome.
type Worker struct {
	queue    crawler.Queue
	fetcher  crawler.DocumentFetcher
	parse    crawler.ParseFunc
	recorder crawler.Recorder
	clock    crawler.Clock
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	queue crawler.Queue,
	fetcher crawler.DocumentFetcher,
	parse crawler.ParseFunc,
	recorder crawler.Recorder,
	clock crawler.Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		fetcher:  fetcher,
		parse:    parse,
		recorder: recorder,
		clock:    clock,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Take(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue take failed", zap.Error(err))
			continue
		}
		w.handle(ctx, item)
	}
}

func (w *Worker) handle(ctx context.Context, item crawler.WorkItem) {
	defer func() {
		if err := w.queue.Done(); err != nil {
			w.logger.Error("queue done failed", zap.String("course_id", item.ID), zap.Error(err))
		}
	}()

	metrics.IncActiveWorkers()
	outcome := w.Process(ctx, item)
	metrics.DecActiveWorkers()
	metrics.ObserveItem(string(outcome.Status), outcome.Duration)

	switch outcome.Status {
	case crawler.OutcomeFailed:
		w.logger.Warn("course failed",
			zap.String("course_id", item.ID),
			zap.String("url", item.URL),
			zap.Error(outcome.Err),
		)
	case crawler.OutcomeNotFound:
		w.logger.Debug("course does not exist", zap.String("course_id", item.ID))
	default:
		w.logger.Debug("course parsed", zap.String("course_id", item.ID), zap.Duration("duration", outcome.Duration))
	}

	w.recorder.Add(outcome, item.Total)
}

// Process runs fetch and parse for one item. Failures, including panics, are
// confined to the returned Outcome.
func (w *Worker) Process(ctx context.Context, item crawler.WorkItem) (outcome crawler.Outcome) {
	start := w.now()
	outcome = crawler.Outcome{ID: item.ID, URL: item.URL}
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = crawler.OutcomeFailed
			outcome.Course = crawler.Course{}
			outcome.Err = fmt.Errorf("course %s: panic: %v", item.ID, r)
		}
		outcome.Duration = w.now().Sub(start)
	}()

	raw, err := w.fetcher.FetchDocument(ctx, item.URL)
	if err != nil {
		outcome.Status = crawler.OutcomeFailed
		outcome.Err = err
		return outcome
	}

	course, err := w.parse(item.ID, raw)
	switch {
	case errors.Is(err, crawler.ErrCourseNotFound):
		outcome.Status = crawler.OutcomeNotFound
	case err != nil:
		outcome.Status = crawler.OutcomeFailed
		outcome.Err = err
	default:
		outcome.Status = crawler.OutcomeParsed
		outcome.Course = course
	}
	return outcome
}

func (w *Worker) now() time.Time {
	if w.clock == nil {
		return time.Now()
	}
	return w.clock.Now()
}
