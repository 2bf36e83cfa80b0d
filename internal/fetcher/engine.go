// Package fetcher turns single-attempt fetches into document retrieval with
// retry, backoff, and optional rate limiting.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
	"github.com/JakeFAU/coursefinder-crawler/internal/metrics"
)

// Engine retrieves detail documents, retrying timeouts, connection faults, and
// non-success statuses under its RetryPolicy.
type Engine struct {
	fetcher crawler.Fetcher
	policy  crawler.RetryPolicy
	limiter crawler.Limiter
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEngine wires a fetcher to a retry policy. limiter may be nil.
func NewEngine(
	fetcher crawler.Fetcher,
	policy crawler.RetryPolicy,
	limiter crawler.Limiter,
	logger *zap.Logger,
) *Engine {
	if policy == nil {
		policy = crawler.NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fetcher: fetcher,
		policy:  policy,
		limiter: limiter,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// FetchDocument returns the body of the first successful response for url.
func (e *Engine) FetchDocument(ctx context.Context, url string) ([]byte, error) {
	resp, err := e.Do(ctx, crawler.FetchRequest{URL: url})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do runs request until it yields a 2xx response, the policy gives up, or ctx ends.
func (e *Engine) Do(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := e.attempt(ctx, request)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, ctx.Err())
		}
		if !e.policy.ShouldRetry(err, attempt+1) {
			if crawler.IsTransient(err) {
				return crawler.FetchResponse{}, fmt.Errorf("fetch %s after %d attempts: %w: %w",
					request.URL, attempt+1, crawler.ErrRetriesExhausted, err)
			}
			return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, err)
		}
		metrics.ObserveFetchRetry()
		delay := e.policy.Backoff(attempt)
		e.logger.Debug("retrying fetch",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, err)
		}
	}
}

func (e *Engine) attempt(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, request.URL); err != nil {
			return crawler.FetchResponse{}, err
		}
	}
	resp, err := e.fetcher.Fetch(ctx, request)
	if err != nil {
		metrics.ObserveFetch("error")
		return crawler.FetchResponse{}, err
	}
	metrics.ObserveFetch(metrics.StatusClass(resp.StatusCode))
	if !resp.OK() {
		return crawler.FetchResponse{}, fmt.Errorf("%w: %d", crawler.ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
