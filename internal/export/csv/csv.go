// Package csv exports crawled courses as a flat CSV summary, one row per
// course.
package csv

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

// Row is the CSV projection of a course.
type Row struct {
	ID          string `csv:"id"`
	Code        string `csv:"code"`
	Name        string `csv:"name"`
	Campus      string `csv:"campus"`
	Term        string `csv:"term"`
	Level       int    `csv:"level"`
	Division    string `csv:"division"`
	Department  string `csv:"department"`
	Breadths    string `csv:"breadths"`
	Sections    int    `csv:"sections"`
	Instructors string `csv:"instructors"`
	Size        int    `csv:"size"`
	Enrolment   int    `csv:"enrolment"`
}

// Rows is sortable by course id.
type Rows []Row

func (r Rows) Len() int           { return len(r) }
func (r Rows) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r Rows) Less(i, j int) bool { return r[i].ID < r[j].ID }

// ToRow flattens course. Size and enrolment are summed over sections;
// instructors are de-duplicated and sorted.
func ToRow(course crawler.Course) Row {
	row := Row{
		ID:         course.ID,
		Code:       course.Code,
		Name:       course.Name,
		Campus:     string(course.Campus),
		Term:       course.Term,
		Level:      course.Level,
		Division:   course.Division,
		Department: course.Department,
		Sections:   len(course.MeetingSections),
	}
	breadths := make([]string, 0, len(course.Breadths))
	for _, b := range course.Breadths {
		breadths = append(breadths, strconv.Itoa(b))
	}
	row.Breadths = strings.Join(breadths, ";")

	var instructors []string
	for _, s := range course.MeetingSections {
		row.Size += s.Size
		row.Enrolment += s.Enrolment
		instructors = append(instructors, s.Instructors...)
	}
	slices.Sort(instructors)
	row.Instructors = strings.Join(slices.Compact(instructors), ";")
	return row
}

// WriteCourses writes a header plus one row per course, ordered by id.
func WriteCourses(w io.Writer, courses []crawler.Course) error {
	rows := make(Rows, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, ToRow(c))
	}
	sort.Sort(rows)
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("marshal csv: %w", err)
	}
	return nil
}

// WriteFile writes courses to path, creating parent directories.
func WriteFile(path string, courses []crawler.Course) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create csv directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close csv file: %w", closeErr)
		}
	}()
	return WriteCourses(file, courses)
}
