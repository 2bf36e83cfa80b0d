package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

const (
	alternateWeek = "Alternate week"
	sectionCells  = 5
)

func parseSections(table *goquery.Selection) ([]crawler.MeetingSection, error) {
	sections := []crawler.MeetingSection{}
	if table.Length() == 0 {
		return sections, nil
	}
	var err error
	table.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return true
		}
		var section crawler.MeetingSection
		section, err = parseSection(tds)
		if err != nil {
			err = fmt.Errorf("meeting section row %d: %w", i, err)
			return false
		}
		sections = append(sections, section)
		return true
	})
	if err != nil {
		return nil, err
	}
	return sections, nil
}

func parseSection(tds *goquery.Selection) (crawler.MeetingSection, error) {
	if tds.Length() < sectionCells {
		return crawler.MeetingSection{}, fmt.Errorf("%w: %d cells", crawler.ErrMalformedField, tds.Length())
	}
	code, err := sectionCode(tds.Eq(0).Text())
	if err != nil {
		return crawler.MeetingSection{}, err
	}
	times, err := parseTimes(tds.Eq(1).Text(), pairs(tds.Eq(3).Text()))
	if err != nil {
		return crawler.MeetingSection{}, err
	}
	sizeText := strings.TrimSpace(tds.Eq(4).Text())
	size, err := strconv.Atoi(sizeText)
	if err != nil {
		return crawler.MeetingSection{}, fmt.Errorf("%w: size %q", crawler.ErrMalformedField, sizeText)
	}
	return crawler.MeetingSection{
		Code:        code,
		Instructors: instructors(tds.Eq(2)),
		Times:       times,
		Size:        size,
		Enrolment:   0,
	}, nil
}

// sectionCode turns "LEC 0101" into "L0101".
func sectionCode(raw string) (string, error) {
	parts := strings.Fields(raw)
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: section code %q", crawler.ErrMalformedField, raw)
	}
	return parts[0][:1] + parts[1], nil
}

// pairs joins whitespace separated tokens two at a time; a trailing odd token is dropped.
func pairs(text string) []string {
	tokens := strings.Fields(text)
	out := make([]string, 0, len(tokens)/2)
	for i := 0; i+1 < len(tokens); i += 2 {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

func parseTimes(raw string, locations []string) ([]crawler.TimeSlot, error) {
	tokens := strings.Fields(strings.ReplaceAll(raw, alternateWeek, ""))
	slots := make([]crawler.TimeSlot, 0, len(tokens)/2)
	for i := 0; i+1 < len(tokens); i += 2 {
		day, hours := tokens[i], tokens[i+1]
		startText, endText, ok := strings.Cut(hours, "-")
		if !ok {
			return nil, fmt.Errorf("%w: hours %q", crawler.ErrMalformedField, hours)
		}
		start, err := clockHours(startText)
		if err != nil {
			return nil, err
		}
		end, err := clockHours(endText)
		if err != nil {
			return nil, err
		}
		location := ""
		if idx := len(slots); idx < len(locations) {
			location = locations[idx]
		}
		slots = append(slots, crawler.NewTimeSlot(day, start, end, location))
	}
	return slots, nil
}

// clockHours converts "9:30" to 9.5.
func clockHours(clock string) (float64, error) {
	h, m, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, fmt.Errorf("%w: clock %q", crawler.ErrMalformedField, clock)
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q", crawler.ErrMalformedField, clock)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q", crawler.ErrMalformedField, clock)
	}
	return float64(hours) + float64(minutes)/60, nil
}

// instructors splits the cell on <br> and drops blank lines.
func instructors(cell *goquery.Selection) []string {
	var b strings.Builder
	for _, n := range cell.Nodes {
		writeLines(&b, n)
	}
	out := []string{}
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func writeLines(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && c.Data == "br":
			b.WriteByte('\n')
		default:
			writeLines(b, c)
		}
	}
}
