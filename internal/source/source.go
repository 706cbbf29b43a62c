// Package source reads input rows from CSV streams.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JakeFAU/voterstat/internal/lookup"
)

// CSV yields rows from a CSV stream. Rows may differ in length; the schema
// mapper decides whether a row is wide enough.
type CSV struct {
	r    *csv.Reader
	rows int
}

// NewCSV returns a source reading from r.
func NewCSV(r io.Reader) *CSV {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &CSV{r: cr}
}

// Next implements lookup.Source.
func (s *CSV) Next() (lookup.Row, error) {
	rec, err := s.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read input row %d: %w", s.rows+1, err)
	}
	s.rows++
	return lookup.Row(rec), nil
}

// Rows reports how many rows have been read.
func (s *CSV) Rows() int {
	return s.rows
}

// Count reads r to the end and returns the number of CSV rows it holds, using
// the same parsing rules as CSV so quoted newlines are not counted twice.
func Count(r io.Reader) (int, error) {
	src := NewCSV(r)
	for {
		if _, err := src.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return src.Rows(), nil
			}
			return src.Rows(), err
		}
	}
}
