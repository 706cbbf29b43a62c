// Package dispatcher admits input rows as concurrent lookup units while
// keeping the number of unsettled units under a fixed ceiling.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/voterstat/internal/lookup"
	"github.com/JakeFAU/voterstat/internal/metrics"
)

// DefaultMaxConcurrency is the in-flight ceiling used when none is configured.
const DefaultMaxConcurrency = 128

// Runner executes one unit of work for a row. *worker.Unit satisfies it.
type Runner interface {
	Run(ctx context.Context, row lookup.Row) error
}

// Outcome is how a settled unit finished.
type Outcome string

// Settlement outcomes.
const (
	OutcomeEmitted Outcome = metrics.OutcomeEmitted
	OutcomeDropped Outcome = metrics.OutcomeDropped
	OutcomeFailed  Outcome = metrics.OutcomeFailed
)

// Stats summarizes a completed run.
type Stats struct {
	Admitted     int
	Emitted      int
	Dropped      int
	Failed       int
	PeakInFlight int
}

// Settled reports the number of units that finished, whatever the outcome.
func (s Stats) Settled() int {
	return s.Emitted + s.Dropped + s.Failed
}

// Config controls a Dispatcher.
type Config struct {
	MaxConcurrency int
	// OnSettle, when set, is called from the dispatch loop once per settled
	// unit. It must not block.
	OnSettle func(Outcome)
}

// Dispatcher drives one run. It is not reusable across concurrent runs.
type Dispatcher struct {
	runner   Runner
	cfg      Config
	logger   *zap.Logger
	inFlight map[uint64]struct{}
	settled  chan settlement
	stats    Stats
}

type settlement struct {
	id  uint64
	err error
}

// New constructs a Dispatcher. A non-positive MaxConcurrency selects
// DefaultMaxConcurrency.
func New(runner Runner, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
}

// Run reads src until EOF, admitting each row as a unit once a slot is free,
// then waits for every admitted unit to settle. Unit failures are counted and
// never abort the run. A source read error or cancellation of ctx stops
// admission; in-flight units are drained and the error is returned alongside
// the stats gathered so far.
func (d *Dispatcher) Run(ctx context.Context, src lookup.Source) (Stats, error) {
	d.inFlight = make(map[uint64]struct{}, d.cfg.MaxConcurrency)
	// Sized to the ceiling so a settling unit never blocks on send.
	d.settled = make(chan settlement, d.cfg.MaxConcurrency)
	d.stats = Stats{}

	// Rows are read on a separate goroutine so units that settle while the
	// source blocks are reaped immediately.
	want := make(chan struct{})
	reads := make(chan readResult, 1)
	defer close(want)
	go readRows(src, want, reads)

	var (
		next    uint64
		readErr error
	)
admission:
	for {
		d.reapReady()
		if len(d.inFlight) == d.cfg.MaxConcurrency {
			d.reap(<-d.settled)
			d.reapReady()
		}

		if err := ctx.Err(); err != nil {
			readErr = d.stopAdmission(err)
			break
		}

		want <- struct{}{}
		var res readResult
	wait:
		for {
			select {
			case res = <-reads:
				break wait
			case s := <-d.settled:
				d.reap(s)
			case <-ctx.Done():
				readErr = d.stopAdmission(ctx.Err())
				break admission
			}
		}

		if errors.Is(res.err, io.EOF) {
			break
		}
		if res.err != nil {
			readErr = fmt.Errorf("read source: %w", res.err)
			d.logger.Error("input read failed, draining in-flight units",
				zap.Int("in_flight", len(d.inFlight)), zap.Error(res.err))
			break
		}

		d.admit(ctx, next, res.row)
		next++
	}

	for len(d.inFlight) > 0 {
		d.reap(<-d.settled)
	}
	metrics.SetInFlight(0)

	d.logger.Info("dispatch complete",
		zap.Int("admitted", d.stats.Admitted),
		zap.Int("emitted", d.stats.Emitted),
		zap.Int("dropped", d.stats.Dropped),
		zap.Int("failed", d.stats.Failed),
		zap.Int("peak_in_flight", d.stats.PeakInFlight),
	)
	return d.stats, readErr
}

func (d *Dispatcher) stopAdmission(cause error) error {
	d.logger.Warn("run canceled, draining in-flight units", zap.Int("in_flight", len(d.inFlight)))
	return fmt.Errorf("admission stopped: %w", cause)
}

type readResult struct {
	row lookup.Row
	err error
}

// readRows performs one src.Next per request on want. It exits when want is
// closed or the source reports an error, EOF included. reads must be buffered
// so a read finishing after the loop gave up never blocks.
func readRows(src lookup.Source, want <-chan struct{}, reads chan<- readResult) {
	for range want {
		row, err := src.Next()
		reads <- readResult{row: row, err: err}
		if err != nil {
			return
		}
	}
}

func (d *Dispatcher) admit(ctx context.Context, id uint64, row lookup.Row) {
	d.inFlight[id] = struct{}{}
	d.stats.Admitted++
	d.stats.PeakInFlight = max(d.stats.PeakInFlight, len(d.inFlight))
	metrics.ObserveAdmission()
	metrics.SetInFlight(len(d.inFlight))

	go func() {
		d.settled <- settlement{id: id, err: d.runner.Run(ctx, row)}
	}()
}

// reapReady removes every unit that has already settled without blocking.
func (d *Dispatcher) reapReady() {
	for {
		select {
		case s := <-d.settled:
			d.reap(s)
		default:
			return
		}
	}
}

func (d *Dispatcher) reap(s settlement) {
	delete(d.inFlight, s.id)
	metrics.SetInFlight(len(d.inFlight))

	outcome, stage := classify(s.err)
	switch outcome {
	case OutcomeEmitted:
		d.stats.Emitted++
	case OutcomeDropped:
		d.stats.Dropped++
		d.logger.Debug("row dropped", zap.Uint64("row", s.id), zap.Error(s.err))
	default:
		d.stats.Failed++
		d.logger.Warn("lookup failed",
			zap.Uint64("row", s.id), zap.String("stage", string(stage)), zap.Error(s.err))
	}
	metrics.ObserveSettlement(string(outcome), string(stage))
	if d.cfg.OnSettle != nil {
		d.cfg.OnSettle(outcome)
	}
}

func classify(err error) (Outcome, lookup.Stage) {
	if err == nil {
		return OutcomeEmitted, ""
	}
	stage := lookup.Classify(err)
	if stage == lookup.StageValidation {
		return OutcomeDropped, stage
	}
	return OutcomeFailed, stage
}
