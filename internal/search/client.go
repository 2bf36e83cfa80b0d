// Package search queries the catalog search endpoint for candidate course ids.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

const (
	// AllCampuses is the fixed campus filter sent with every search.
	AllCampuses = "St. George,Scarborough,Mississauga"

	idMarker = "offImg"
	idLen    = 14
)

// Row is one search result; the first cell embeds the course id.
type Row []string

// Config controls the search client.
type Config struct {
	Host string
	// MaxAttempts caps attempts; 0 retries until ctx ends.
	MaxAttempts int
	// RetryDelay is the pause after a non-success status. Transient transport
	// errors are retried without delay.
	RetryDelay time.Duration
}

// Client issues catalog searches through a shared Fetcher.
type Client struct {
	fetcher crawler.Fetcher
	cfg     Config
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient builds a search Client.
func NewClient(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
	}
}

type searchResponse struct {
	AAData [][]json.RawMessage `json:"aaData"`
}

// Search runs one query across all campuses and returns the raw result rows.
func (c *Client) Search(ctx context.Context, query, requirements string) ([]Row, error) {
	request := crawler.FetchRequest{
		URL: crawler.SearchURL(c.cfg.Host),
		Query: map[string]string{
			"queryText":    query,
			"requirements": requirements,
			"campusParam":  AllCampuses,
		},
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.fetcher.Fetch(ctx, request)
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("search: %w", ctx.Err())
		case err != nil:
			if !crawler.IsTransient(err) {
				return nil, fmt.Errorf("search: %w", err)
			}
			c.logger.Debug("search request failed; retrying", zap.Int("attempt", attempt), zap.Error(err))
		case !resp.OK():
			err = fmt.Errorf("%w: %d", crawler.ErrUnexpectedStatus, resp.StatusCode)
			c.logger.Debug("search returned non-success status; retrying",
				zap.Int("attempt", attempt),
				zap.Int("status_code", resp.StatusCode),
			)
			if c.exhausted(attempt) {
				return nil, fmt.Errorf("search after %d attempts: %w: %w", attempt, crawler.ErrRetriesExhausted, err)
			}
			if serr := c.sleep(ctx, c.cfg.RetryDelay); serr != nil {
				return nil, fmt.Errorf("search: %w", serr)
			}
			continue
		default:
			return decodeRows(resp.Body)
		}
		if c.exhausted(attempt) {
			return nil, fmt.Errorf("search after %d attempts: %w: %w", attempt, crawler.ErrRetriesExhausted, err)
		}
	}
}

// CourseIDs searches and extracts the course id from every row, in row order.
func (c *Client) CourseIDs(ctx context.Context, query, requirements string) ([]string, error) {
	rows, err := c.Search(ctx, query, requirements)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			return nil, fmt.Errorf("search row %d: %w: empty row", i, crawler.ErrMalformedField)
		}
		id, err := ExtractCourseID(row[0])
		if err != nil {
			return nil, fmt.Errorf("search row %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	c.logger.Info("search complete", zap.Int("courses", len(ids)))
	return ids, nil
}

// ExtractCourseID returns the 14 characters that follow the id marker in cell.
func ExtractCourseID(cell string) (string, error) {
	_, rest, ok := strings.Cut(cell, idMarker)
	if !ok {
		return "", fmt.Errorf("%w: no course id marker in %q", crawler.ErrMalformedField, cell)
	}
	if len(rest) < idLen {
		return "", fmt.Errorf("%w: course id %q shorter than %d", crawler.ErrMalformedField, rest, idLen)
	}
	return rest[:idLen], nil
}

func (c *Client) exhausted(attempt int) bool {
	return c.cfg.MaxAttempts > 0 && attempt >= c.cfg.MaxAttempts
}

func decodeRows(body []byte) ([]Row, error) {
	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if payload.AAData == nil {
		return nil, errors.New("decode search response: missing aaData")
	}
	rows := make([]Row, 0, len(payload.AAData))
	for _, raw := range payload.AAData {
		row := make(Row, 0, len(raw))
		for _, cell := range raw {
			row = append(row, decodeCell(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeCell unquotes string cells; numbers and nulls are kept verbatim.
func decodeCell(cell json.RawMessage) string {
	if bytes.Equal(bytes.TrimSpace(cell), []byte("null")) {
		return "null"
	}
	var s string
	if err := json.Unmarshal(cell, &s); err != nil {
		return string(cell)
	}
	return s
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
