// Package schema maps raw input rows onto canonical voter records using named
// column layouts.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/JakeFAU/voterstat/internal/lookup"
)

// Canonical attribute names a Layout must define.
const (
	AttrSurname     = "surname"
	AttrHouseNumber = "house_number"
	AttrStreet      = "street"
	AttrZipCode     = "zip_code"
	AttrDateOfBirth = "date_of_birth"
)

// Attributes lists the canonical attributes in reporting order.
var Attributes = []string{
	AttrSurname,
	AttrHouseNumber,
	AttrStreet,
	AttrZipCode,
	AttrDateOfBirth,
}

// Layout maps canonical attribute names to zero-based column indexes.
type Layout map[string]int

// Built-in layouts.
const (
	LayoutRoll       = "roll"
	LayoutCountyData = "county-data"

	// DefaultLayout is used when no layout is configured.
	DefaultLayout = LayoutRoll
)

var builtins = map[string]Layout{
	LayoutRoll: {
		AttrSurname:     1,
		AttrHouseNumber: 5,
		AttrStreet:      6,
		AttrZipCode:     13,
		AttrDateOfBirth: 27,
	},
	LayoutCountyData: {
		AttrSurname:     6,
		AttrHouseNumber: 9,
		AttrStreet:      10,
		AttrZipCode:     14,
		AttrDateOfBirth: 15,
	},
}

// RejectionError explains why a row could not be mapped. It always matches
// lookup.ErrValidation.
type RejectionError struct {
	Reason  string
	Missing []string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Unwrap ties every rejection to the validation error class.
func (e *RejectionError) Unwrap() error {
	return lookup.ErrValidation
}

// Map projects row through layout into a canonical record.
func Map(row lookup.Row, layout Layout) (lookup.Record, error) {
	if unknown := unknownAttributes(layout); len(unknown) > 0 {
		return lookup.Record{}, &RejectionError{Reason: "invalid field"}
	}

	var missing []string
	cells := make(map[string]string, len(Attributes))
	for _, attr := range Attributes {
		idx, ok := layout[attr]
		if !ok || idx < 0 || idx >= len(row) {
			missing = append(missing, attr)
			continue
		}
		cells[attr] = row[idx]
	}
	if len(missing) > 0 {
		return lookup.Record{}, &RejectionError{
			Reason:  "missing attribute: " + strings.Join(missing, ", "),
			Missing: missing,
		}
	}

	dob, err := parseDOB(cells[AttrDateOfBirth])
	if err != nil {
		return lookup.Record{}, err
	}
	return lookup.Record{
		Surname:     cells[AttrSurname],
		HouseNumber: cells[AttrHouseNumber],
		Street:      cells[AttrStreet],
		ZipCode:     cells[AttrZipCode],
		DateOfBirth: dob,
	}, nil
}

func parseDOB(cell string) (lookup.DOB, error) {
	parts := strings.Split(cell, "/")
	if len(parts) != 3 {
		return lookup.DOB{}, &RejectionError{
			Reason: fmt.Sprintf("malformed date of birth %q: want month/day/year", cell),
		}
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return lookup.DOB{}, &RejectionError{
				Reason: fmt.Sprintf("malformed date of birth %q: component %d is not an integer", cell, i+1),
			}
		}
		nums[i] = n
	}
	return lookup.DOB{Month: nums[0], Day: nums[1], Year: nums[2]}, nil
}

func unknownAttributes(layout Layout) []string {
	var unknown []string
	for name := range layout {
		if !isAttribute(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func isAttribute(name string) bool {
	for _, attr := range Attributes {
		if attr == name {
			return true
		}
	}
	return false
}
