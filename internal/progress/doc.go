// Package progress reports run progress on the log stream. A Reporter counts
// settled lookup units and periodically logs totals and throughput so long
// enrichment runs stay observable without touching stdout.
package progress
