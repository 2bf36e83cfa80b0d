// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"strings"
	"time"
)

// Campus is the short canonical code for one of the three physical campuses.
type Campus string

// Supported campus codes.
const (
	CampusStGeorge    Campus = "UTSG"
	CampusScarborough Campus = "UTSC"
	CampusMississauga Campus = "UTM"
)

const (
	campusLabelStG  = "St. George"
	campusLabelUTM  = "Mississauga"
	campusLabelUTSC = "Scarborough"

	// course ids end with a five character session suffix, e.g. "20169".
	courseIDSessionLen = 5
)

// CampusFromLabel maps the long-form campus label shown on a detail page to its code.
func CampusFromLabel(label string) (Campus, bool) {
	switch label {
	case campusLabelStG:
		return CampusStGeorge, true
	case campusLabelUTM:
		return CampusMississauga, true
	case campusLabelUTSC:
		return CampusScarborough, true
	default:
		return "", false
	}
}

// Course is the normalized record produced for one detail document. The JSON
// field order is the serialization contract consumed by writers.
type Course struct {
	ID              string           `json:"id"`
	Code            string           `json:"code"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Division        string           `json:"division"`
	Department      string           `json:"department"`
	Prerequisites   string           `json:"prerequisites"`
	Exclusions      string           `json:"exclusions"`
	Level           int              `json:"level"`
	Campus          Campus           `json:"campus"`
	Term            string           `json:"term"`
	Breadths        []int            `json:"breadths"`
	MeetingSections []MeetingSection `json:"meeting_sections"`
}

// MeetingSection is one scheduled offering (lecture, tutorial, practical) of a course.
type MeetingSection struct {
	Code        string     `json:"code"`
	Instructors []string   `json:"instructors"`
	Times       []TimeSlot `json:"times"`
	Size        int        `json:"size"`
	Enrolment   int        `json:"enrolment"`
}

// TimeSlot is a recurring meeting interval. Start and End are fractional hours.
type TimeSlot struct {
	Day      string  `json:"day"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Location string  `json:"location"`
}

// NewTimeSlot builds a TimeSlot whose duration is always end-start.
func NewTimeSlot(day string, start, end float64, location string) TimeSlot {
	return TimeSlot{
		Day:      day,
		Start:    start,
		End:      end,
		Duration: end - start,
		Location: location,
	}
}

// CodeFromID strips the trailing session suffix from a course id.
func CodeFromID(id string) string {
	if len(id) < courseIDSessionLen {
		return ""
	}
	return id[:len(id)-courseIDSessionLen]
}

// DetailURL builds the detail document URL for a course id.
func DetailURL(host, id string) string {
	return strings.TrimRight(host, "/") + "/courseSearch/coursedetails/" + id
}

// SearchURL is the catalog search endpoint under host.
func SearchURL(host string) string {
	return strings.TrimRight(host, "/") + "/courseSearch/course/search"
}

// WorkItem is one queued detail fetch.
type WorkItem struct {
	ID    string
	URL   string
	Total int
}

// OutcomeStatus is the terminal classification of a work item.
type OutcomeStatus string

// Outcome statuses recorded by the aggregator.
const (
	OutcomeParsed   OutcomeStatus = "parsed"
	OutcomeNotFound OutcomeStatus = "not_found"
	OutcomeFailed   OutcomeStatus = "failed"
)

// Outcome is what a worker hands to the aggregator for one item.
type Outcome struct {
	ID       string
	URL      string
	Status   OutcomeStatus
	Course   Course
	Err      error
	Duration time.Duration
}

// ParsedCourses keeps only successfully parsed courses, preserving order.
func ParsedCourses(outcomes []Outcome) []Course {
	out := make([]Course, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Status == OutcomeParsed {
			out = append(out, o.Course)
		}
	}
	return out
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Query   map[string]string
	Headers http.Header
}

// FetchResponse is the result of a single fetch attempt.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the status indicates success.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
