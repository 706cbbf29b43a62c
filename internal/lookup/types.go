package lookup

import "strconv"

// Row is one raw input record, one string per column.
type Row []string

// DOB is a date of birth as decoded from a slash-delimited cell. No calendar
// validation is applied.
type DOB struct {
	Month int
	Day   int
	Year  int
}

// Record is the validated, typed identity of one voter.
type Record struct {
	Surname     string
	HouseNumber string
	Street      string
	ZipCode     string
	DateOfBirth DOB
}

// Result is the status classification parsed from one lookup response.
type Result struct {
	RegistrationStatus string
	Party              string
	BallotStatus       string
}

// Fields returns the result columns in output order.
func (r Result) Fields() []string {
	return []string{r.RegistrationStatus, r.Party, r.BallotStatus}
}

// Annotate returns a new row holding the input columns followed by the
// result columns. The input row is left untouched.
func (r Result) Annotate(row Row) Row {
	out := make(Row, 0, len(row)+3)
	out = append(out, row...)
	return append(out, r.Fields()...)
}

// Form field names understood by the lookup service.
const (
	FieldSurname     = "lname"
	FieldHouseNumber = "no"
	FieldStreet      = "sname"
	FieldZip         = "zip"
	FieldDOBMonth    = "dobm"
	FieldDOBDay      = "dobd"
	FieldDOBYear     = "doby"
)

// FormValues returns the lookup form fields for the record, keyed by the bare
// service field names.
func (r Record) FormValues() map[string]string {
	return map[string]string{
		FieldSurname:     r.Surname,
		FieldHouseNumber: r.HouseNumber,
		FieldStreet:      r.Street,
		FieldZip:         r.ZipCode,
		FieldDOBMonth:    strconv.Itoa(r.DateOfBirth.Month),
		FieldDOBDay:      strconv.Itoa(r.DateOfBirth.Day),
		FieldDOBYear:     strconv.Itoa(r.DateOfBirth.Year),
	}
}
