// Package worker implements the lookup unit: map a row, fetch its status, parse
// the response, and hand the annotated row to the sink.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/voterstat/internal/lookup"
	"github.com/JakeFAU/voterstat/internal/metrics"
	"github.com/JakeFAU/voterstat/internal/schema"
)

// Unit runs one lookup per input row. A single Unit is shared by every
// concurrently running lookup, so it holds no per-row state.
type Unit struct {
	layout    schema.Layout
	fetcher   lookup.Fetcher
	extractor lookup.Extractor
	sink      lookup.Sink
	rejects   lookup.RejectRecorder
	logger    *zap.Logger
}

// New constructs a Unit. rejects may be nil.
func New(
	layout schema.Layout,
	fetcher lookup.Fetcher,
	extractor lookup.Extractor,
	sink lookup.Sink,
	rejects lookup.RejectRecorder,
	logger *zap.Logger,
) *Unit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Unit{
		layout:    layout,
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		rejects:   rejects,
		logger:    logger,
	}
}

// Run processes row. On success exactly one output row reaches the sink. Any
// returned error means no output was produced for row; its class tells the
// caller which stage failed.
func (u *Unit) Run(ctx context.Context, row lookup.Row) error {
	record, err := schema.Map(row, u.layout)
	if err != nil {
		u.logger.Debug("row rejected", zap.Int("columns", len(row)), zap.Error(err))
		u.reject(row, err)
		return fmt.Errorf("map row: %w", err)
	}

	result, err := u.lookup(ctx, record)
	if err != nil {
		u.reject(row, err)
		return err
	}

	if err := u.sink.Write(result.Annotate(row)); err != nil {
		return fmt.Errorf("write output row: %w", err)
	}
	return nil
}

func (u *Unit) lookup(ctx context.Context, record lookup.Record) (lookup.Result, error) {
	start := time.Now()
	body, err := u.fetcher.Fetch(ctx, record)
	metrics.ObserveLookup(err == nil, time.Since(start))
	if err != nil {
		return lookup.Result{}, fmt.Errorf("fetch status: %w", err)
	}

	result, err := u.extractor.Extract(body)
	if err != nil {
		return lookup.Result{}, fmt.Errorf("extract status: %w", err)
	}
	return result, nil
}

func (u *Unit) reject(row lookup.Row, cause error) {
	if u.rejects == nil {
		return
	}
	if err := u.rejects.Reject(row, lookup.Classify(cause), cause.Error()); err != nil {
		u.logger.Warn("record reject failed", zap.Error(err))
	}
}
