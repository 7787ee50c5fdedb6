package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// StartFunc runs when a scheduled tournament reaches its start time.
type StartFunc func(ctx context.Context, tournamentID uuid.UUID)

type Scheduler interface {
	Schedule(tournamentID uuid.UUID, startTime time.Time)
	Cancel(tournamentID uuid.UUID)
	Stop()
}

// TimerScheduler keeps one timer per tournament and invokes the configured
// start callback when a timer fires. Scheduling the same tournament again
// replaces its timer; start times already in the past fire immediately.
type TimerScheduler struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.Mutex
	timers map[uuid.UUID]clockwork.Timer

	startMu sync.RWMutex
	startFn StartFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTimerScheduler(clock clockwork.Clock, logger *slog.Logger) *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		clock:  clock,
		logger: logger,
		timers: make(map[uuid.UUID]clockwork.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetStartFunc wires the callback invoked on expiry. The tournament service
// and the scheduler are constructed independently, so the callback arrives
// after construction; timers that fire before it is set are dropped with a
// warning.
func (s *TimerScheduler) SetStartFunc(fn StartFunc) {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.startFn = fn
}

func (s *TimerScheduler) Schedule(tournamentID uuid.UUID, startTime time.Time) {
	duration := startTime.Sub(s.clock.Now())
	if duration <= 0 {
		s.logger.Info("scheduled start already due, firing now",
			slog.String("tournament_id", tournamentID.String()))
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.fire(tournamentID)
		}()
		return
	}

	timer := s.clock.NewTimer(duration)
	s.replaceTimer(tournamentID, timer)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-timer.Chan():
			s.removeTimer(tournamentID)
			s.fire(tournamentID)
		case <-s.ctx.Done():
			stopAndDrainTimer(timer)
		}
	}()

	s.logger.Info("tournament start scheduled",
		slog.String("tournament_id", tournamentID.String()),
		slog.Time("start_time", startTime),
		slog.Duration("in", duration))
}

// Cancel drops the tournament's pending timer. Cancelling a tournament that
// has no timer is a no-op.
func (s *TimerScheduler) Cancel(tournamentID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[tournamentID]; ok {
		stopAndDrainTimer(timer)
		delete(s.timers, tournamentID)
		s.logger.Info("tournament start unscheduled",
			slog.String("tournament_id", tournamentID.String()))
	}
}

// Stop cancels every pending timer and waits for in-flight callbacks.
func (s *TimerScheduler) Stop() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.timers = make(map[uuid.UUID]clockwork.Timer)
	s.mu.Unlock()
}

func (s *TimerScheduler) fire(tournamentID uuid.UUID) {
	s.startMu.RLock()
	fn := s.startFn
	s.startMu.RUnlock()

	if fn == nil {
		s.logger.Warn("timer fired before start callback was wired",
			slog.String("tournament_id", tournamentID.String()))
		return
	}
	fn(s.ctx, tournamentID)
}

func (s *TimerScheduler) replaceTimer(tournamentID uuid.UUID, timer clockwork.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[tournamentID]; ok {
		stopAndDrainTimer(existing)
	}
	s.timers[tournamentID] = timer
}

func (s *TimerScheduler) removeTimer(tournamentID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, tournamentID)
}

// stopAndDrainTimer stops a timer and drains its channel if it already
// fired, as the time.Timer.Stop documentation prescribes.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
