// Package parser turns course detail documents into crawler.Course records.
package parser

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

const (
	// titles read "CSC108H1: Introduction to ..."; the code prefix is dropped.
	titlePrefixLen = 10
	levelDigits    = 3
	breadthDigits  = "12345"
)

// Parser evaluates a Schema against detail documents. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	schema Schema
}

// New builds a Parser for schema.
func New(schema Schema) *Parser {
	return &Parser{schema: schema}
}

var defaultParser = New(DefaultSchema)

// Parse runs the default schema over raw.
func Parse(id string, raw []byte) (crawler.Course, error) {
	return defaultParser.Parse(id, raw)
}

// Parse maps raw to a Course. It returns crawler.ErrCourseNotFound when the
// document says the course does not exist, and wraps ErrMissingField or
// ErrMalformedField when a required value is absent or unusable.
func (p *Parser) Parse(id string, raw []byte) (crawler.Course, error) {
	if p.schema.NotFoundMarker != "" && bytes.Contains(raw, []byte(p.schema.NotFoundMarker)) {
		return crawler.Course{}, crawler.ErrCourseNotFound
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return crawler.Course{}, fmt.Errorf("course %s: read document: %w", id, err)
	}

	values, err := p.extract(doc)
	if err != nil {
		return crawler.Course{}, fmt.Errorf("course %s: %w", id, err)
	}

	course, err := assemble(id, values)
	if err != nil {
		return crawler.Course{}, fmt.Errorf("course %s: %w", id, err)
	}

	sections, err := parseSections(doc.Find(p.schema.SectionTable).First())
	if err != nil {
		return crawler.Course{}, fmt.Errorf("course %s: %w", id, err)
	}
	course.MeetingSections = sections
	return course, nil
}

func (p *Parser) extract(doc *goquery.Document) (map[string]string, error) {
	values := make(map[string]string, len(p.schema.Fields))
	for _, f := range p.schema.Fields {
		sel := doc.Find(f.Container).First()
		if f.Inner != "" {
			sel = sel.Find(f.Inner).First()
		}
		if sel.Length() == 0 {
			if f.Required {
				return nil, fmt.Errorf("%w: %s", crawler.ErrMissingField, f.Name)
			}
			values[f.Name] = f.Default
			continue
		}
		values[f.Name] = strings.TrimSpace(sel.Text())
	}
	return values, nil
}

func assemble(id string, values map[string]string) (crawler.Course, error) {
	level, err := parseLevel(values[FieldLevel])
	if err != nil {
		return crawler.Course{}, err
	}
	campus, ok := crawler.CampusFromLabel(values[FieldCampus])
	if !ok {
		return crawler.Course{}, fmt.Errorf("%w: campus %q", crawler.ErrMalformedField, values[FieldCampus])
	}
	return crawler.Course{
		ID:            id,
		Code:          crawler.CodeFromID(id),
		Name:          courseName(values[FieldTitle]),
		Description:   values[FieldDescription],
		Division:      values[FieldDivision],
		Department:    values[FieldDepartment],
		Prerequisites: values[FieldPrerequisites],
		Exclusions:    values[FieldExclusions],
		Level:         level,
		Campus:        campus,
		Term:          values[FieldTerm],
		Breadths:      parseBreadths(values[FieldBreadths]),
	}, nil
}

func courseName(title string) string {
	runes := []rune(title)
	if len(runes) <= titlePrefixLen {
		return ""
	}
	return strings.TrimSpace(string(runes[titlePrefixLen:]))
}

func parseLevel(label string) (int, error) {
	runes := []rune(label)
	if len(runes) < levelDigits {
		return 0, fmt.Errorf("%w: level %q", crawler.ErrMalformedField, label)
	}
	level, err := strconv.Atoi(string(runes[:levelDigits]))
	if err != nil {
		return 0, fmt.Errorf("%w: level %q", crawler.ErrMalformedField, label)
	}
	return level, nil
}

// parseBreadths collects breadth digits, sorted ascending without duplicates.
func parseBreadths(text string) []int {
	breadths := []int{}
	for _, r := range text {
		if strings.ContainsRune(breadthDigits, r) {
			breadths = append(breadths, int(r-'0'))
		}
	}
	slices.Sort(breadths)
	return slices.Compact(breadths)
}
