package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledger/internal/services"
)

type passCall struct {
	year, month int
}

// fakeRunner records every pass and can fail or panic on chosen calls.
type fakeRunner struct {
	calls   chan passCall
	mu      sync.Mutex
	n       int
	panicOn map[int]bool
	errOn   map[int]bool
	cardOn  map[int]bool // report a failed card
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		calls:   make(chan passCall, 16),
		panicOn: map[int]bool{},
		errOn:   map[int]bool{},
		cardOn:  map[int]bool{},
	}
}

func (r *fakeRunner) RunPass(_ context.Context, year, month int) (*services.PassReport, error) {
	r.mu.Lock()
	r.n++
	n := r.n
	r.mu.Unlock()

	r.calls <- passCall{year, month}
	if r.panicOn[n] {
		panic("boom")
	}
	if r.errOn[n] {
		return nil, errors.New("directory unavailable")
	}
	report := &services.PassReport{Year: year, Month: month}
	if r.cardOn[n] {
		report.Outcomes = []services.CardOutcome{{
			PaymentMethodID: 10,
			Status:          services.StatusFailed,
			Err:             errors.New("database is locked"),
		}}
	}
	return report, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func waitCall(t *testing.T, r *fakeRunner) passCall {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a pass")
		return passCall{}
	}
}

// startPoller runs the poller with a manual tick channel and returns a
// function that cancels it and waits for Run to return.
func startPoller(t *testing.T, r *fakeRunner, clock *fakeClock, cfg ClockPollerConfig) (chan<- time.Time, *ClockPoller, func()) {
	t.Helper()
	ticks := make(chan time.Time)
	p := NewClockPoller(r, cfg, WithPollerClock(clock.Now), WithTicks(ticks))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("poller did not stop")
		}
	}
	return ticks, p, stop
}

func TestDefaultClockPollerConfig(t *testing.T) {
	cfg := DefaultClockPollerConfig()
	if cfg.CheckInterval != time.Minute {
		t.Errorf("expected CheckInterval 1m, got %v", cfg.CheckInterval)
	}

	p := NewClockPoller(nil, ClockPollerConfig{})
	if p.config.CheckInterval != time.Minute {
		t.Errorf("zero interval should fall back to 1m, got %v", p.config.CheckInterval)
	}
}

func TestClockPoller_PassOnStartupAndDateChange(t *testing.T) {
	r := newFakeRunner()
	clock := &fakeClock{now: time.Date(2025, 3, 14, 23, 58, 0, 0, time.UTC)}
	ticks, p, stop := startPoller(t, r, clock, DefaultClockPollerConfig())
	defer stop()

	if got := waitCall(t, r); got != (passCall{2025, 3}) {
		t.Fatalf("startup pass = %+v", got)
	}

	// Same date: no pass.
	clock.Set(time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC))
	ticks <- clock.Now()

	// Date changes: one pass.
	clock.Set(time.Date(2025, 3, 15, 0, 0, 30, 0, time.UTC))
	ticks <- clock.Now()
	if got := waitCall(t, r); got != (passCall{2025, 3}) {
		t.Fatalf("date-change pass = %+v", got)
	}

	// Still the same date after the change: no pass.
	ticks <- clock.Now()
	ticks <- clock.Now()

	if n := r.count(); n != 2 {
		t.Errorf("expected 2 passes, got %d", n)
	}
	if got := p.LastDate(); got != "2025-03-15" {
		t.Errorf("LastDate = %q", got)
	}
}

func TestClockPoller_SameDayOfMonthNextMonth(t *testing.T) {
	r := newFakeRunner()
	clock := &fakeClock{now: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
	ticks, _, stop := startPoller(t, r, clock, DefaultClockPollerConfig())
	defer stop()
	waitCall(t, r)

	// Suspended for exactly one month: the day of month is unchanged.
	clock.Set(time.Date(2025, 2, 15, 12, 0, 0, 0, time.UTC))
	ticks <- clock.Now()
	if got := waitCall(t, r); got != (passCall{2025, 2}) {
		t.Fatalf("pass after resume = %+v", got)
	}
}

func TestClockPoller_YearRollover(t *testing.T) {
	r := newFakeRunner()
	clock := &fakeClock{now: time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)}
	ticks, _, stop := startPoller(t, r, clock, DefaultClockPollerConfig())
	defer stop()

	if got := waitCall(t, r); got != (passCall{2024, 12}) {
		t.Fatalf("startup pass = %+v", got)
	}
	clock.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ticks <- clock.Now()
	if got := waitCall(t, r); got != (passCall{2025, 1}) {
		t.Fatalf("new-year pass = %+v", got)
	}
}

func TestClockPoller_Location(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	r := newFakeRunner()
	// 2025-03-31 16:00 UTC is already April 1st in KST.
	clock := &fakeClock{now: time.Date(2025, 3, 31, 16, 0, 0, 0, time.UTC)}
	_, p, stop := startPoller(t, r, clock, ClockPollerConfig{CheckInterval: time.Minute, Location: kst})
	defer stop()

	if got := waitCall(t, r); got != (passCall{2025, 4}) {
		t.Fatalf("pass = %+v, want April", got)
	}
	if got := p.LastDate(); got != "2025-04-01" {
		t.Errorf("LastDate = %q", got)
	}
}

func TestClockPoller_SurvivesFailingPasses(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *fakeRunner)
	}{
		{"error", func(r *fakeRunner) { r.errOn[1] = true }},
		{"panic", func(r *fakeRunner) { r.panicOn[1] = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			tt.setup(r)
			clock := &fakeClock{now: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}
			ticks, _, stop := startPoller(t, r, clock, DefaultClockPollerConfig())
			defer stop()

			waitCall(t, r)

			clock.Set(time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC))
			ticks <- clock.Now()
			if got := waitCall(t, r); got != (passCall{2025, 5}) {
				t.Fatalf("pass after failure = %+v", got)
			}
		})
	}
}

func TestClockPoller_RunWithoutRunner(t *testing.T) {
	p := NewClockPoller(nil, DefaultClockPollerConfig())
	if err := p.Run(context.Background()); err == nil {
		t.Error("expected error without a pass runner")
	}
}

func TestClockPoller_StartStop(t *testing.T) {
	r := newFakeRunner()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	p := NewClockPoller(r, DefaultClockPollerConfig(),
		WithPollerClock(clock.Now),
		WithTicks(make(chan time.Time)))

	if p.IsRunning() {
		t.Error("poller should not be running initially")
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	waitCall(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if p.IsRunning() {
		t.Error("poller should not be running after Stop")
	}
	if err := p.Stop(ctx); err != nil {
		t.Errorf("Stop on a stopped poller should be a no-op, got %v", err)
	}
}

func TestClockPoller_RetriesFailedPassOnSameDay(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *fakeRunner)
	}{
		{"pass error", func(r *fakeRunner) { r.errOn[1] = true }},
		{"failed card", func(r *fakeRunner) { r.cardOn[1] = true }},
		{"panic", func(r *fakeRunner) { r.panicOn[1] = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			tt.setup(r)
			clock := &fakeClock{now: time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)}
			ticks, p, stop := startPoller(t, r, clock, DefaultClockPollerConfig())
			defer stop()

			waitCall(t, r)

			// Same calendar date: the failed pass runs again.
			clock.Set(time.Date(2025, 5, 10, 8, 1, 0, 0, time.UTC))
			ticks <- clock.Now()
			if got := waitCall(t, r); got != (passCall{2025, 5}) {
				t.Fatalf("retry pass = %+v", got)
			}

			// The retry succeeded, so further same-day ticks do nothing.
			ticks <- clock.Now()
			ticks <- clock.Now()
			if n := r.count(); n != 2 {
				t.Errorf("expected 2 passes, got %d", n)
			}
			if got := p.LastDate(); got != "2025-05-10" {
				t.Errorf("LastDate = %q", got)
			}
		})
	}
}

func TestClockPoller_KeepsRetryingUntilPassSucceeds(t *testing.T) {
	r := newFakeRunner()
	r.errOn[1] = true
	r.cardOn[2] = true
	clock := &fakeClock{now: time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)}
	ticks, _, stop := startPoller(t, r, clock, DefaultClockPollerConfig())
	defer stop()

	waitCall(t, r)
	ticks <- clock.Now()
	waitCall(t, r)
	ticks <- clock.Now()
	waitCall(t, r)
	ticks <- clock.Now()
	if n := r.count(); n != 3 {
		t.Errorf("expected 3 passes, got %d", n)
	}
}
