package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
)

// PassRunner runs one settlement pass for a processing month.
type PassRunner interface {
	RunPass(ctx context.Context, year, month int) (*services.PassReport, error)
}

// ClockPollerConfig holds configuration for the clock poller
type ClockPollerConfig struct {
	// CheckInterval is how often the calendar date is checked (default: 1m)
	CheckInterval time.Duration

	// Location decides where midnight is. Nil keeps the clock's own location.
	Location *time.Location
}

// DefaultClockPollerConfig returns sensible defaults
func DefaultClockPollerConfig() ClockPollerConfig {
	return ClockPollerConfig{CheckInterval: time.Minute}
}

// ClockPoller triggers a settlement pass at startup and whenever the
// calendar date changes. It holds no state besides the last date it saw;
// which cards are due is decided by the runner.
type ClockPoller struct {
	runner PassRunner
	config ClockPollerConfig
	logger *log.Logger
	now    func() time.Time
	ticks  <-chan time.Time

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	lastDate string
}

// PollerOption configures a ClockPoller.
type PollerOption func(*ClockPoller)

// WithPollerClock replaces time.Now.
func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *ClockPoller) { p.now = now }
}

// WithTicks replaces the interval ticker with ch.
func WithTicks(ch <-chan time.Time) PollerOption {
	return func(p *ClockPoller) { p.ticks = ch }
}

// WithPollerLogger overrides the component logger.
func WithPollerLogger(l *log.Logger) PollerOption {
	return func(p *ClockPoller) { p.logger = l }
}

// NewClockPoller creates a new clock poller
func NewClockPoller(runner PassRunner, config ClockPollerConfig, opts ...PollerOption) *ClockPoller {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultClockPollerConfig().CheckInterval
	}
	p := &ClockPoller{
		runner: runner,
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.ForComponent(log.ComponentPoller)
	}
	return p
}

// Run checks the date until ctx is cancelled. The first check happens
// immediately, so a pass always runs at startup.
func (p *ClockPoller) Run(ctx context.Context) error {
	if p.runner == nil {
		return errors.New("clock poller has no pass runner")
	}

	ticks := p.ticks
	if ticks == nil {
		ticker := time.NewTicker(p.config.CheckInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	p.logger.InfoContext(ctx, "Clock poller started",
		"check_interval", p.config.CheckInterval)

	p.check(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Clock poller stopped", "reason", ctx.Err())
			return nil
		case <-ticks:
			p.check(ctx)
		}
	}
}

// Start runs the poller in the background. Returns an error if already running.
func (p *ClockPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("clock poller is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.doneCh = make(chan struct{})
	done := p.doneCh
	p.mu.Unlock()

	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			p.logger.ErrorContext(ctx, "Clock poller exited", log.FieldError, err)
		}
	}()
	return nil
}

// Stop cancels the background loop and waits for the current pass to end.
func (p *ClockPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel, done := p.cancel, p.doneCh
	p.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Clock poller stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the poller loop is active
func (p *ClockPoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastDate returns the date of the last pass as YYYY-MM-DD. It is empty
// before the first pass and after a failed one.
func (p *ClockPoller) LastDate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDate
}

func (p *ClockPoller) today() core.Date {
	now := p.now()
	if p.config.Location != nil {
		now = now.In(p.config.Location)
	}
	return core.DateOf(now)
}

// check runs a pass when the full date differs from the last one seen.
// Comparing only the day of month would miss a change after a suspension
// of exactly one month. A pass that fails, in whole or for any card, leaves
// the date unrecorded so the next tick runs it again.
func (p *ClockPoller) check(ctx context.Context) {
	today := p.today()
	key := today.String()

	p.mu.Lock()
	changed := key != p.lastDate
	if changed {
		p.lastDate = key
	}
	p.mu.Unlock()

	if !changed || p.runPass(ctx, today) {
		return
	}

	p.mu.Lock()
	if p.lastDate == key {
		p.lastDate = ""
	}
	p.mu.Unlock()
}

// runPass reports whether the pass completed with no failed card.
func (p *ClockPoller) runPass(ctx context.Context, today core.Date) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "Settlement pass panicked",
				"date", today.String(),
				"panic", fmt.Sprint(r))
			ok = false
		}
	}()

	report, err := p.runner.RunPass(ctx, today.Year(), today.Month())
	if err != nil {
		p.logger.ErrorContext(ctx, "Settlement pass failed, retrying on next tick",
			log.NewFields().
				WithOperation(log.OpPass).
				WithError(err).
				ToSlice()...)
		return false
	}
	if report == nil {
		return true
	}

	p.logger.DebugContext(ctx, "Settlement pass finished",
		"date", today.String(),
		"cards", len(report.Outcomes),
		"duration", report.Duration())

	if failed := report.Failed(); len(failed) > 0 {
		p.logger.WarnContext(ctx, "Settlement pass had failed cards, retrying on next tick",
			"date", today.String(),
			"failed", len(failed))
		return false
	}
	return true
}
