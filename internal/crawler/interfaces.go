package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher performs a single GET attempt and returns the response regardless of status.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// DocumentFetcher returns the body of a successful response, retrying as configured.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string) ([]byte, error)
}

// ParseFunc maps one raw detail document to a Course or ErrCourseNotFound.
type ParseFunc func(id string, raw []byte) (Course, error)

// Queue provides the blocking FIFO the worker pool drains.
type Queue interface {
	Put(item WorkItem) error
	Take(ctx context.Context) (WorkItem, error)
	Done() error
	Join(ctx context.Context) error
}

// Recorder is the aggregation sink workers report outcomes to.
type Recorder interface {
	Add(outcome Outcome, total int)
}

// RetryPolicy decides whether a failed attempt is retried and how long to wait.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Limiter blocks until a request to url may proceed.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// BlobStore writes serialized records and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// CourseStore persists structured course rows.
type CourseStore interface {
	UpsertCourse(ctx context.Context, course Course) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
