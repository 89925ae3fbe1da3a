package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bryanwahyu/leakwatch/internal/application"
	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// State of the scheduler
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Runner is implemented by Engine.
type Runner interface {
	RunScan(ctx context.Context, targets []assets.Target) (assets.ScanResult, error)
}

// TargetLister returns the targets for the next tick, in order.
type TargetLister interface {
	List() []assets.Target
}

// Scheduler owns the background scan loop. At most one scan runs at a time;
// triggers that arrive while a scan is running wait for and share its result.
type Scheduler struct {
	Engine       Runner
	Targets      TargetLister
	Notifier     assets.Notifier
	Clock        application.Clock
	Interval     time.Duration
	InitialDelay time.Duration
	RunOnStart   bool
	Log          zerolog.Logger

	// OnFailure, when set, observes every aborted scan.
	OnFailure func(err error)

	group singleflight.Group
	state atomic.Int32
	runs  atomic.Int64

	mu      sync.RWMutex
	last    assets.ScanResult
	hasLast bool
	lastErr error
}

const scanKey = "scan"

// Trigger runs a scan, or joins the one in flight. The scan itself is detached
// from ctx; ctx only bounds how long the caller waits.
func (s *Scheduler) Trigger(ctx context.Context) (assets.ScanResult, error) {
	scanCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(scanKey, func() (any, error) {
		return s.run(scanCtx)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return assets.ScanResult{}, r.Err
		}
		return r.Val.(assets.ScanResult), nil
	case <-ctx.Done():
		return assets.ScanResult{}, ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context) (assets.ScanResult, error) {
	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateIdle))
	s.runs.Add(1)

	var targets []assets.Target
	if s.Targets != nil {
		targets = s.Targets.List()
	}
	res, err := s.Engine.RunScan(ctx, targets)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.last, s.hasLast = res, true
	}
	s.mu.Unlock()

	if err != nil {
		s.Log.Error().Err(err).Msg("scan failed, retrying on next tick")
		if s.OnFailure != nil {
			s.OnFailure(err)
		}
		return assets.ScanResult{}, err
	}
	if s.Notifier != nil {
		s.Notifier.OnScanResult(ctx, res)
	}
	return res, nil
}

// Run drives the interval loop until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.RunOnStart {
		delay := s.InitialDelay
		if delay <= 0 {
			delay = time.Millisecond
		}
		t := s.clock().NewTicker(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C():
			t.Stop()
			s.tick(ctx)
		}
	}

	interval := s.Interval
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	t := s.clock().NewTicker(interval)
	defer t.Stop()
	s.Log.Info().Dur("interval", interval).Msg("scan scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.Log.Info().Msg("scan scheduler stopped")
			return nil
		case <-t.C():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	// failures are logged inside run
	_, _ = s.Trigger(ctx)
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Runs counts scans actually executed, not triggers.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Last returns the most recent successful result.
func (s *Scheduler) Last() (assets.ScanResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

// LastError is the error of the most recent scan, nil when it succeeded.
func (s *Scheduler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Scheduler) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}
