package lookup

import "context"

// Fetcher performs one round trip to the lookup service for a record and
// returns the raw response body.
type Fetcher interface {
	Fetch(ctx context.Context, record Record) (string, error)
}

// Extractor parses a lookup response into a Result.
type Extractor interface {
	Extract(body string) (Result, error)
}

// Sink receives finished output rows. Implementations must be safe for
// concurrent use and write each row atomically.
type Sink interface {
	Write(row Row) error
}

// RejectRecorder receives rows that produced no output, with the stage that
// rejected them and the reason.
type RejectRecorder interface {
	Reject(row Row, stage Stage, reason string) error
}

// Source yields input rows in order. Next returns io.EOF once exhausted.
type Source interface {
	Next() (Row, error)
}
