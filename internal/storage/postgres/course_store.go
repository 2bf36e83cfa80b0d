// Package postgres provides Postgres-backed persistence for course records.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

const defaultTable = "courses"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CourseStoreConfig controls the Postgres connection pool used for course rows.
type CourseStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// CourseStore upserts course rows keyed by course id.
type CourseStore struct {
	pool  execCloser
	table string
	query string
}

// NewCourseStore dials Postgres and returns a CourseStore.
func NewCourseStore(ctx context.Context, cfg CourseStoreConfig) (*CourseStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewCourseStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewCourseStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCourseStoreWithPool(pool execCloser, table string) (*CourseStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CourseStore{pool: pool, table: table, query: upsertQuery(table)}, nil
}

// Close releases the underlying pool resources.
func (s *CourseStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertCourse inserts course or replaces the existing row with the same id.
func (s *CourseStore) UpsertCourse(ctx context.Context, course crawler.Course) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("course store is not configured")
	}
	if course.ID == "" {
		return fmt.Errorf("course id is required")
	}
	breadths, err := json.Marshal(nonNil(course.Breadths))
	if err != nil {
		return fmt.Errorf("marshal breadths: %w", err)
	}
	sections, err := json.Marshal(nonNil(course.MeetingSections))
	if err != nil {
		return fmt.Errorf("marshal meeting sections: %w", err)
	}
	args := []any{
		course.ID,
		course.Code,
		course.Name,
		course.Description,
		course.Division,
		course.Department,
		course.Prerequisites,
		course.Exclusions,
		course.Level,
		string(course.Campus),
		course.Term,
		breadths,
		sections,
	}
	if _, err := s.pool.Exec(ctx, s.query, args...); err != nil {
		return fmt.Errorf("upsert course %s: %w", course.ID, err)
	}
	return nil
}

func upsertQuery(table string) string {
	return fmt.Sprintf(`
INSERT INTO %s (
	id,
	code,
	name,
	description,
	division,
	department,
	prerequisites,
	exclusions,
	level,
	campus,
	term,
	breadths,
	meeting_sections
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (id) DO UPDATE SET
	code = EXCLUDED.code,
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	division = EXCLUDED.division,
	department = EXCLUDED.department,
	prerequisites = EXCLUDED.prerequisites,
	exclusions = EXCLUDED.exclusions,
	level = EXCLUDED.level,
	campus = EXCLUDED.campus,
	term = EXCLUDED.term,
	breadths = EXCLUDED.breadths,
	meeting_sections = EXCLUDED.meeting_sections,
	updated_at = now()`, table)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
