package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/JakeFAU/voterstat/internal/dispatcher"
)

const defaultInterval = time.Second

// Config controls a Reporter.
//   - Interval: time between progress lines (default 1s).
//   - Logger: destination for progress lines.
//   - Now: clock override for tests (defaults to time.Now).
//   - Total: expected number of units; zero means unknown (stdin input), in
//     which case percent and ETA are omitted.
type Config struct {
	Interval time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
	Total    int64
}

// Reporter aggregates settlement outcomes. Observe is safe for concurrent use
// and never blocks.
type Reporter struct {
	cfg     Config
	logger  *zap.Logger
	started time.Time

	emitted atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64

	closeOnce sync.Once
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Emitted int64
	Dropped int64
	Failed  int64
	Total   int64
	Elapsed time.Duration
}

// Processed returns the number of settled units.
func (s Snapshot) Processed() int64 {
	return s.Emitted + s.Dropped + s.Failed
}

// Rate returns settled units per second, or zero before any time has passed.
func (s Snapshot) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Processed()) / s.Elapsed.Seconds()
}

// Percent returns the share of Total already settled, or false when the
// total is unknown.
func (s Snapshot) Percent() (float64, bool) {
	if s.Total <= 0 {
		return 0, false
	}
	return 100 * float64(s.Processed()) / float64(s.Total), true
}

// ETA estimates the time left at the current rate. It reports false when the
// total is unknown or nothing has settled yet.
func (s Snapshot) ETA() (time.Duration, bool) {
	rate := s.Rate()
	if s.Total <= 0 || rate <= 0 {
		return 0, false
	}
	remaining := max(s.Total-s.Processed(), 0)
	return time.Duration(float64(remaining) / rate * float64(time.Second)), true
}

// NewReporter returns a Reporter whose clock starts now.
func NewReporter(cfg Config) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		cfg:     cfg,
		logger:  logger.Named("progress"),
		started: cfg.Now(),
	}
}

// Observe records one settled unit.
func (r *Reporter) Observe(outcome dispatcher.Outcome) {
	switch outcome {
	case dispatcher.OutcomeEmitted:
		r.emitted.Add(1)
	case dispatcher.OutcomeDropped:
		r.dropped.Add(1)
	default:
		r.failed.Add(1)
	}
}

// Snapshot returns the current counters.
func (r *Reporter) Snapshot() Snapshot {
	return Snapshot{
		Emitted: r.emitted.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
		Total:   r.cfg.Total,
		Elapsed: r.cfg.Now().Sub(r.started),
	}
}

// Run logs a progress line every interval until ctx is done. Lines are only
// written when the processed count has moved since the previous one.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := r.Snapshot()
			if snap.Processed() == last {
				continue
			}
			last = snap.Processed()
			r.log("progress", snap)
		}
	}
}

// Close logs the final totals once.
func (r *Reporter) Close() {
	r.closeOnce.Do(func() {
		r.log("run finished", r.Snapshot())
	})
}

func (r *Reporter) log(msg string, snap Snapshot) {
	fields := []zap.Field{
		zap.String("processed", humanize.Comma(snap.Processed())),
		zap.String("emitted", humanize.Comma(snap.Emitted)),
		zap.String("dropped", humanize.Comma(snap.Dropped)),
		zap.String("failed", humanize.Comma(snap.Failed)),
		zap.String("rate", humanize.CommafWithDigits(snap.Rate(), 1)+"/s"),
		zap.Duration("elapsed", snap.Elapsed.Round(time.Millisecond)),
	}
	if pct, ok := snap.Percent(); ok {
		fields = append(fields,
			zap.String("total", humanize.Comma(snap.Total)),
			zap.String("percent", humanize.FtoaWithDigits(pct, 1)+"%"),
		)
	}
	if eta, ok := snap.ETA(); ok {
		now := r.cfg.Now()
		fields = append(fields, zap.String("eta", humanize.RelTime(now, now.Add(eta), "left", "ago")))
	}
	r.logger.Info(msg, fields...)
}
