package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
)

const courseID = "CSC148H1S20169"

var fragments = map[string]string{
	FieldTitle:         `<div id="u19"><h2><span class="uif-headerText-span">CSC148H1: Introduction to Computer Science</span></h2></div>`,
	FieldDivision:      `<div id="u23"><label>Division</label><span id="u23">  Faculty of Arts and Science </span></div>`,
	FieldDescription:   `<div id="u32"><span id="u32">Abstract data types and data structures.</span></div>`,
	FieldDepartment:    `<div id="u41"><span id="u41">Computer Science</span></div>`,
	FieldLevel:         `<div id="u86"><span id="u86">100/A-level</span></div>`,
	FieldCampus:        `<div id="u149"><span id="u149">St. George</span></div>`,
	FieldTerm:          `<div id="u158"><span id="u158">2016 Winter</span></div>`,
	FieldBreadths:      `<div id="u122"><span id="u122">The Physical and Mathematical Universes (5), Society (3)</span></div>`,
	FieldExclusions:    `<div id="u68"><span id="u68">CSC150H1</span></div>`,
	FieldPrerequisites: `<div id="u50"><span id="u50">CSC108H1</span></div>`,
}

const sectionTable = `<div id="u172"><table>
<thead><tr><th>Activity</th><th>Day and Time</th><th>Instructor</th><th>Location</th><th>Class Size</th></tr></thead>
<tbody>
<tr><td>LEC 0101</td><td>MONDAY 10:00-11:00 WEDNESDAY 10:00-11:30</td><td>Smith, J.<br>Doe, A.<br></td><td>BA 1130 BA 1160</td><td>150</td></tr>
<tr><td>TUT 5101</td><td>THURSDAY 18:10-19:00 Alternate week</td><td> </td><td></td><td>30</td></tr>
</tbody></table></div>`

func detailPage(omit ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, f := range DefaultSchema.Fields {
		if !contains(omit, f.Name) {
			b.WriteString(fragments[f.Name])
		}
	}
	if !contains(omit, "sections") {
		b.WriteString(sectionTable)
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestParseFullDocument(t *testing.T) {
	t.Parallel()

	course, err := Parse(courseID, detailPage())
	require.NoError(t, err)

	assert.Equal(t, courseID, course.ID)
	assert.Equal(t, "CSC148H1S", course.Code)
	assert.Equal(t, "Introduction to Computer Science", course.Name)
	assert.Equal(t, "Faculty of Arts and Science", course.Division)
	assert.Equal(t, "Abstract data types and data structures.", course.Description)
	assert.Equal(t, "Computer Science", course.Department)
	assert.Equal(t, 100, course.Level)
	assert.Equal(t, crawler.CampusStGeorge, course.Campus)
	assert.Equal(t, "2016 Winter", course.Term)
	assert.Equal(t, []int{3, 5}, course.Breadths)
	assert.Equal(t, "CSC150H1", course.Exclusions)
	assert.Equal(t, "CSC108H1", course.Prerequisites)

	require.Len(t, course.MeetingSections, 2)
	lec := course.MeetingSections[0]
	assert.Equal(t, "L0101", lec.Code)
	assert.Equal(t, []string{"Smith, J.", "Doe, A."}, lec.Instructors)
	assert.Equal(t, 150, lec.Size)
	assert.Equal(t, 0, lec.Enrolment)
	assert.Equal(t, []crawler.TimeSlot{
		{Day: "MONDAY", Start: 10, End: 11, Duration: 1, Location: "BA 1130"},
		{Day: "WEDNESDAY", Start: 10, End: 11.5, Duration: 1.5, Location: "BA 1160"},
	}, lec.Times)

	tut := course.MeetingSections[1]
	assert.Equal(t, "T5101", tut.Code)
	assert.Empty(t, tut.Instructors)
	require.Len(t, tut.Times, 1)
	assert.Equal(t, "THURSDAY", tut.Times[0].Day)
	assert.InDelta(t, 18+10.0/60, tut.Times[0].Start, 1e-9)
	assert.InDelta(t, 19-(18+10.0/60), tut.Times[0].Duration, 1e-9)
	assert.Equal(t, "", tut.Times[0].Location)
}

func TestParseIsDeterministic(t *testing.T) {
	t.Parallel()

	raw := detailPage()
	first, err := Parse(courseID, raw)
	require.NoError(t, err)
	_, err = Parse("OTHER100H1F20169", detailPage("sections"))
	require.NoError(t, err)
	second, err := Parse(courseID, raw)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestParseNotFound(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><div class="error">The course you are trying to access does not exist</div></body></html>`)
	_, err := Parse(courseID, raw)
	require.ErrorIs(t, err, crawler.ErrCourseNotFound)
}

func TestParseOptionalFragmentsDefault(t *testing.T) {
	t.Parallel()

	course, err := Parse(courseID, detailPage(FieldBreadths, FieldExclusions, FieldPrerequisites, "sections"))
	require.NoError(t, err)
	assert.NotNil(t, course.Breadths)
	assert.Empty(t, course.Breadths)
	assert.Equal(t, "", course.Exclusions)
	assert.Equal(t, "", course.Prerequisites)
	assert.NotNil(t, course.MeetingSections)
	assert.Empty(t, course.MeetingSections)
}

func TestParseMissingRequiredField(t *testing.T) {
	t.Parallel()

	for _, f := range DefaultSchema.Fields {
		if !f.Required {
			continue
		}
		t.Run(f.Name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(courseID, detailPage(f.Name))
			require.ErrorIs(t, err, crawler.ErrMissingField)
			require.Contains(t, err.Error(), f.Name)
			require.Contains(t, err.Error(), courseID)
		})
	}
}

func TestParseCampusMapping(t *testing.T) {
	t.Parallel()

	tests := map[string]crawler.Campus{
		"St. George":  crawler.CampusStGeorge,
		"Mississauga": crawler.CampusMississauga,
		"Scarborough": crawler.CampusScarborough,
	}
	for label, want := range tests {
		t.Run(label, func(t *testing.T) {
			t.Parallel()
			raw := strings.Replace(string(detailPage()), ">St. George<", ">"+label+"<", 1)
			course, err := Parse(courseID, []byte(raw))
			require.NoError(t, err)
			require.Equal(t, want, course.Campus)
		})
	}
}

func TestParseUnknownCampus(t *testing.T) {
	t.Parallel()

	raw := strings.Replace(string(detailPage()), ">St. George<", ">Downsview<", 1)
	_, err := Parse(courseID, []byte(raw))
	require.ErrorIs(t, err, crawler.ErrMalformedField)
}

func TestParseMalformedLevel(t *testing.T) {
	t.Parallel()

	raw := strings.Replace(string(detailPage()), ">100/A-level<", ">A-level<", 1)
	_, err := Parse(courseID, []byte(raw))
	require.ErrorIs(t, err, crawler.ErrMalformedField)
}

func TestParseMalformedSectionRow(t *testing.T) {
	t.Parallel()

	raw := strings.Replace(string(detailPage()), "10:00-11:00", "10am-11am", 1)
	_, err := Parse(courseID, []byte(raw))
	require.ErrorIs(t, err, crawler.ErrMalformedField)
	require.Contains(t, err.Error(), "meeting section")
}

func TestParseBreadths(t *testing.T) {
	t.Parallel()

	require.Equal(t, []int{1, 3}, parseBreadths("3,1,3"))
	require.Equal(t, []int{1, 2, 3, 4, 5}, parseBreadths("5 4 3 2 1 6 7 0"))
	require.Equal(t, []int{}, parseBreadths("None"))
}

func TestSectionCode(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"LEC 0101":    "L0101",
		"TUT 5101":    "T5101",
		" PRA  0201 ": "P0201",
	}
	for raw, want := range tests {
		got, err := sectionCode(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := sectionCode("LEC")
	require.ErrorIs(t, err, crawler.ErrMalformedField)
}

func TestParseTimes(t *testing.T) {
	t.Parallel()

	slots, err := parseTimes("TUESDAY 9:00-10:30", nil)
	require.NoError(t, err)
	require.Equal(t, []crawler.TimeSlot{
		{Day: "TUESDAY", Start: 9, End: 10.5, Duration: 1.5, Location: ""},
	}, slots)

	slots, err = parseTimes("MONDAY 9:00-10:00 Alternate week FRIDAY 13:00-14:00", []string{"SS 2117"})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.Equal(t, "SS 2117", slots[0].Location)
	require.Equal(t, "FRIDAY", slots[1].Day)
	require.Equal(t, "", slots[1].Location)

	_, err = parseTimes("MONDAY 9:00", nil)
	require.ErrorIs(t, err, crawler.ErrMalformedField)
}

func TestClockHours(t *testing.T) {
	t.Parallel()

	got, err := clockHours("9:30")
	require.NoError(t, err)
	require.InDelta(t, 9.5, got, 1e-9)

	for _, bad := range []string{"930", "x:30", "9:yy"} {
		_, err := clockHours(bad)
		require.ErrorIs(t, err, crawler.ErrMalformedField, bad)
	}
}

func TestCustomSchema(t *testing.T) {
	t.Parallel()

	schema := Schema{
		NotFoundMarker: "gone",
		Fields: []Field{
			{Name: FieldTitle, Container: "h1", Required: true},
			{Name: FieldDivision, Container: ".division", Required: true},
			{Name: FieldDescription, Container: ".description", Default: "n/a"},
			{Name: FieldDepartment, Container: ".department", Required: true},
			{Name: FieldLevel, Container: ".level", Required: true},
			{Name: FieldCampus, Container: ".campus", Required: true},
			{Name: FieldTerm, Container: ".term", Required: true},
		},
		SectionTable: "table.sections",
	}
	raw := []byte(`<html><body>
<h1>MAT137Y1: Calculus with Proofs</h1>
<p class="division">Arts and Science</p>
<p class="department">Mathematics</p>
<p class="level">100</p>
<p class="campus">Mississauga</p>
<p class="term">2016 Fall</p>
</body></html>`)

	course, err := New(schema).Parse("MAT137Y1Y20169", raw)
	require.NoError(t, err)
	require.Equal(t, "Calculus with Proofs", course.Name)
	require.Equal(t, "n/a", course.Description)
	require.Equal(t, crawler.CampusMississauga, course.Campus)
	require.Empty(t, course.MeetingSections)

	_, err = New(schema).Parse("MAT137Y1Y20169", []byte("<p>gone</p>"))
	require.ErrorIs(t, err, crawler.ErrCourseNotFound)
}
