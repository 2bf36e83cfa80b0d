// Package writer persists finished course records: one JSON object per
// course in a blob store, optionally mirrored to Postgres and announced on
// Pub/Sub.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

const contentTypeJSON = "application/json"

// Config controls where records land.
type Config struct {
	// Prefix is prepended to every object path, e.g. "courses/2016".
	Prefix string
	// Topic receives one Notification per written course when a Publisher is set.
	Topic string
}

// Deps are the collaborators a Writer uses. Courses and Publisher are optional.
type Deps struct {
	Blobs     crawler.BlobStore
	Courses   crawler.CourseStore
	Publisher crawler.Publisher
	Hasher    crawler.Hasher
	Clock     crawler.Clock
}

// Notification is the Pub/Sub payload announcing a stored course.
type Notification struct {
	CourseID  string    `json:"course_id"`
	BlobURI   string    `json:"blob_uri"`
	Hash      string    `json:"hash"`
	WrittenAt time.Time `json:"written_at"`
}

// Writer persists finished courses.
type Writer struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New validates deps and returns a Writer.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Writer, error) {
	if deps.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if deps.Hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{cfg: cfg, deps: deps, logger: logger}, nil
}

// ObjectPath is the blob path for a course id: <prefix>/<id>.json.
func ObjectPath(prefix, id string) string {
	return path.Join(strings.Trim(prefix, "/"), id+".json")
}

// Encode serializes course with the record field order and empty (not null)
// collections.
func Encode(course crawler.Course) ([]byte, error) {
	if course.Breadths == nil {
		course.Breadths = []int{}
	}
	if course.MeetingSections == nil {
		course.MeetingSections = []crawler.MeetingSection{}
	}
	data, err := json.Marshal(course)
	if err != nil {
		return nil, fmt.Errorf("marshal course %s: %w", course.ID, err)
	}
	return data, nil
}

// WriteCourse stores course and returns its blob URI.
func (w *Writer) WriteCourse(ctx context.Context, course crawler.Course) (string, error) {
	if course.ID == "" {
		return "", fmt.Errorf("course id is required")
	}
	data, err := Encode(course)
	if err != nil {
		return "", err
	}
	digest, err := w.deps.Hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash course %s: %w", course.ID, err)
	}

	uri, err := w.deps.Blobs.PutObject(ctx, ObjectPath(w.cfg.Prefix, course.ID), contentTypeJSON, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store course %s: %w", course.ID, err)
	}

	if w.deps.Courses != nil {
		if err := w.deps.Courses.UpsertCourse(ctx, course); err != nil {
			return uri, fmt.Errorf("upsert course %s: %w", course.ID, err)
		}
	}

	if w.deps.Publisher != nil && w.cfg.Topic != "" {
		note := Notification{
			CourseID:  course.ID,
			BlobURI:   uri,
			Hash:      digest,
			WrittenAt: w.deps.Clock.Now(),
		}
		msgID, err := w.deps.Publisher.Publish(ctx, w.cfg.Topic, note)
		if err != nil {
			return uri, fmt.Errorf("publish course %s: %w", course.ID, err)
		}
		w.logger.Debug("course announced", zap.String("course_id", course.ID), zap.String("message_id", msgID))
	}

	w.logger.Debug("course written",
		zap.String("course_id", course.ID),
		zap.String("uri", uri),
		zap.String("hash", digest),
	)
	return uri, nil
}

// WriteAll writes every course, continuing past failures. It returns the
// number written and the joined errors.
func (w *Writer) WriteAll(ctx context.Context, courses []crawler.Course) (int, error) {
	var (
		written int
		errs    []error
	)
	for _, c := range courses {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := w.WriteCourse(ctx, c); err != nil {
			w.logger.Warn("write course failed", zap.String("course_id", c.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}
