package parser

// Field names produced by the extraction schema.
const (
	FieldTitle         = "title"
	FieldDivision      = "division"
	FieldDescription   = "description"
	FieldDepartment    = "department"
	FieldLevel         = "level"
	FieldCampus        = "campus"
	FieldTerm          = "term"
	FieldBreadths      = "breadths"
	FieldExclusions    = "exclusions"
	FieldPrerequisites = "prerequisites"
)

// Field declares how one text value is located in a detail document. The value
// is the trimmed text of the first Inner match below the first Container match.
type Field struct {
	Name      string
	Container string
	Inner     string
	Required  bool
	Default   string
}

// Schema is the full extraction table for a detail document.
type Schema struct {
	// NotFoundMarker short-circuits parsing when present anywhere in the document.
	NotFoundMarker string
	Fields         []Field
	// SectionTable selects the meeting section table; rows are read positionally.
	SectionTable string
}

// DefaultSchema matches the markup of the course finder detail page.
var DefaultSchema = Schema{
	NotFoundMarker: "The course you are trying to access does not exist",
	Fields: []Field{
		{Name: FieldTitle, Container: "#u19", Inner: "span.uif-headerText-span", Required: true},
		{Name: FieldDivision, Container: "#u23", Inner: "span#u23", Required: true},
		{Name: FieldDescription, Container: "#u32", Inner: "span#u32", Required: true},
		{Name: FieldDepartment, Container: "#u41", Inner: "span#u41", Required: true},
		{Name: FieldLevel, Container: "#u86", Inner: "span#u86", Required: true},
		{Name: FieldCampus, Container: "#u149", Inner: "span#u149", Required: true},
		{Name: FieldTerm, Container: "#u158", Inner: "span#u158", Required: true},
		{Name: FieldBreadths, Container: "#u122", Inner: "span#u122"},
		{Name: FieldExclusions, Container: "#u68", Inner: "span#u68"},
		{Name: FieldPrerequisites, Container: "#u50", Inner: "span#u50"},
	},
	SectionTable: "#u172",
}
