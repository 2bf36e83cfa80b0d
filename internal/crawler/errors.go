package crawler

import "errors"

// Sentinel errors shared by the crawl pipeline.
var (
	// ErrCourseNotFound marks a detail document stating the course does not exist.
	ErrCourseNotFound = errors.New("course does not exist")
	// ErrMissingField marks an absent required document fragment.
	ErrMissingField = errors.New("required field missing")
	// ErrMalformedField marks a present fragment whose value cannot be interpreted.
	ErrMalformedField = errors.New("malformed field")
	// ErrUnexpectedStatus marks a non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrRetriesExhausted is returned once the attempt cap is reached.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrQueueClosed is returned by Take/Put after Close.
	ErrQueueClosed = errors.New("queue closed")
	// ErrTooManyDone is returned when Done is called more often than Put.
	ErrTooManyDone = errors.New("done called too many times")
)
