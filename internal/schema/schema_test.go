package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/voterstat/internal/lookup"
)

// rollRow builds a 28-column row shaped like the roll export.
func rollRow(dob string) lookup.Row {
	row := make(lookup.Row, 28)
	row[1] = "Smith"
	row[5] = "123"
	row[6] = "Main St"
	row[13] = "14604"
	row[27] = dob
	return row
}

func TestMapRollLayout(t *testing.T) {
	t.Parallel()

	layout, err := Resolve(LayoutRoll, nil)
	require.NoError(t, err)

	rec, err := Map(rollRow("01/02/1980"), layout)
	require.NoError(t, err)
	require.Equal(t, lookup.Record{
		Surname:     "Smith",
		HouseNumber: "123",
		Street:      "Main St",
		ZipCode:     "14604",
		DateOfBirth: lookup.DOB{Month: 1, Day: 2, Year: 1980},
	}, rec)
}

func TestMapCountyDataLayout(t *testing.T) {
	t.Parallel()

	layout, err := Resolve("County-Data", nil)
	require.NoError(t, err)

	row := make(lookup.Row, 16)
	row[6] = "Jones"
	row[9] = "77"
	row[10] = "Elm Ave"
	row[14] = "14620"
	row[15] = " 12 / 31 / 1999 "

	rec, err := Map(row, layout)
	require.NoError(t, err)
	require.Equal(t, "Jones", rec.Surname)
	require.Equal(t, "77", rec.HouseNumber)
	require.Equal(t, "Elm Ave", rec.Street)
	require.Equal(t, "14620", rec.ZipCode)
	require.Equal(t, lookup.DOB{Month: 12, Day: 31, Year: 1999}, rec.DateOfBirth)
}

func TestMapAcceptsCalendarInvalidDates(t *testing.T) {
	t.Parallel()

	rec, err := Map(rollRow("02/31/2001"), builtins[LayoutRoll])
	require.NoError(t, err)
	require.Equal(t, lookup.DOB{Month: 2, Day: 31, Year: 2001}, rec.DateOfBirth)
}

func TestMapNamesEveryMissingAttribute(t *testing.T) {
	t.Parallel()

	layout := Layout{AttrSurname: 0, AttrStreet: 1}
	_, err := Map(lookup.Row{"Smith", "Main St"}, layout)

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	require.ErrorIs(t, err, lookup.ErrValidation)
	require.Equal(t, []string{AttrHouseNumber, AttrZipCode, AttrDateOfBirth}, rej.Missing)
	require.Equal(t, "missing attribute: house_number, zip_code, date_of_birth", rej.Error())
}

func TestMapOutOfRangeIndexIsMissing(t *testing.T) {
	t.Parallel()

	row := rollRow("01/02/1980")[:20]
	_, err := Map(row, builtins[LayoutRoll])

	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	require.Equal(t, []string{AttrDateOfBirth}, rej.Missing)
}

func TestMapInvalidField(t *testing.T) {
	t.Parallel()

	layout := Layout{
		AttrSurname:     1,
		AttrHouseNumber: 5,
		AttrStreet:      6,
		AttrZipCode:     13,
		AttrDateOfBirth: 27,
		"middle_name":   2,
	}
	_, err := Map(rollRow("01/02/1980"), layout)
	require.ErrorIs(t, err, lookup.ErrValidation)
	require.EqualError(t, err, "invalid field")
}

func TestMapMalformedDates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dob  string
	}{
		{"empty", ""},
		{"two parts", "01/1980"},
		{"four parts", "01/02/19/80"},
		{"dashes", "01-02-1980"},
		{"non numeric", "Jan/02/1980"},
		{"blank component", "01//1980"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Map(rollRow(tt.dob), builtins[LayoutRoll])
			require.Error(t, err)
			require.True(t, errors.Is(err, lookup.ErrValidation), "want validation error, got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("default when empty", func(t *testing.T) {
		t.Parallel()
		layout, err := Resolve("", nil)
		require.NoError(t, err)
		require.Equal(t, builtins[LayoutRoll], layout)
	})

	t.Run("unknown name", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve("boe", nil)
		require.ErrorIs(t, err, lookup.ErrConfiguration)
		require.Contains(t, err.Error(), "county-data, roll")
	})

	t.Run("custom layout", func(t *testing.T) {
		t.Parallel()
		custom := map[string]Layout{"Mailing": {
			AttrSurname: 0, AttrHouseNumber: 1, AttrStreet: 2, AttrZipCode: 3, AttrDateOfBirth: 4,
		}}
		layout, err := Resolve("mailing", custom)
		require.NoError(t, err)
		require.Equal(t, 4, layout.MaxIndex())
	})

	t.Run("incomplete custom layout", func(t *testing.T) {
		t.Parallel()
		custom := map[string]Layout{"partial": {AttrSurname: 0}}
		_, err := Resolve("partial", custom)
		require.ErrorIs(t, err, lookup.ErrConfiguration)
		require.Contains(t, err.Error(), "house_number, street, zip_code, date_of_birth")
	})

	t.Run("resolved layout is a copy", func(t *testing.T) {
		t.Parallel()
		layout, err := Resolve(LayoutCountyData, nil)
		require.NoError(t, err)
		layout[AttrSurname] = 99
		require.Equal(t, 6, builtins[LayoutCountyData][AttrSurname])
	})
}

func TestValidateRejectsNegativeIndex(t *testing.T) {
	t.Parallel()

	layout := Layout{AttrSurname: -1, AttrHouseNumber: 1, AttrStreet: 2, AttrZipCode: 3, AttrDateOfBirth: 4}
	err := Validate(layout)
	require.ErrorIs(t, err, lookup.ErrConfiguration)
	require.Contains(t, err.Error(), "negative")
}

func FuzzMap(f *testing.F) {
	for _, seed := range []string{"01/02/1980", "", "1/2/3/4", "a/b/c"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, dob string) {
		_, err := Map(rollRow(dob), builtins[LayoutRoll])
		if err != nil && !errors.Is(err, lookup.ErrValidation) {
			t.Fatalf("unexpected error class for %q: %v", dob, err)
		}
	})
}
