// Package sink serializes finished rows to CSV streams.
package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/JakeFAU/voterstat/internal/lookup"
)

// CSV writes one record per call and flushes it before releasing the lock, so
// rows from concurrent callers never interleave.
type CSV struct {
	mu   sync.Mutex
	w    *csv.Writer
	rows atomic.Int64
}

// NewCSV returns a sink writing to w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

// Write serializes row as a single CSV record.
func (s *CSV) Write(row lookup.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	s.rows.Add(1)
	return nil
}

// Rows reports how many rows were written.
func (s *CSV) Rows() int64 {
	return s.rows.Load()
}

// Rejects records rows that produced no output as row ++ [stage, reason].
type Rejects struct {
	out *CSV
}

// NewRejects returns a recorder writing to w.
func NewRejects(w io.Writer) *Rejects {
	return &Rejects{out: NewCSV(w)}
}

// Reject implements lookup.RejectRecorder.
func (r *Rejects) Reject(row lookup.Row, stage lookup.Stage, reason string) error {
	rec := make(lookup.Row, 0, len(row)+2)
	rec = append(rec, row...)
	rec = append(rec, string(stage), reason)
	return r.out.Write(rec)
}

// Rows reports how many rejects were written.
func (r *Rejects) Rows() int64 {
	return r.out.Rows()
}
