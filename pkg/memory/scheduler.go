package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultCleanupInterval is used when Start is given a non-positive
// interval.
const DefaultCleanupInterval = time.Hour

// Scheduler periodically drives session cleanup and the corruption
// sweep without caller involvement. Lifecycle is explicit: the host
// application calls Start and Stop; nothing hooks process signals.
type Scheduler struct {
	manager       *Manager
	guard         *Guard
	sweepInterval time.Duration
	log           logrus.FieldLogger

	mu       sync.Mutex
	cron     *cron.Cron
	interval time.Duration
	running  bool

	// Non-blocking run guards so an immediate run, a scheduled tick
	// and a restart can never execute the same job concurrently.
	cleanupMu sync.Mutex
	sweepMu   sync.Mutex
}

// NewScheduler creates a scheduler over the manager and guard. The
// corruption sweep runs on sweepInterval; a non-positive value makes it
// follow the cleanup interval.
func NewScheduler(manager *Manager, guard *Guard, sweepInterval time.Duration, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		manager:       manager,
		guard:         guard,
		sweepInterval: sweepInterval,
		log:           log,
	}
}

// Start begins immediate and periodic execution of cleanup and sweep.
// Calling Start while already running is a no-op.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Debug("scheduler already running")
		return
	}
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	s.interval = interval
	s.startLocked(true)
}

// startLocked spins up the cron instance. Caller holds s.mu.
func (s *Scheduler) startLocked(runNow bool) {
	logger := cron.PrintfLogger(s.log)
	c := cron.New(cron.WithChain(cron.Recover(logger)))

	// @every specs cannot fail to parse for positive durations.
	_, _ = c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.runCleanup)

	sweep := s.sweepInterval
	if sweep <= 0 {
		sweep = s.interval
	}
	_, _ = c.AddFunc(fmt.Sprintf("@every %s", sweep), s.runSweep)

	c.Start()
	s.cron = c
	s.running = true

	s.log.WithFields(logrus.Fields{
		"cleanup_interval": s.interval.String(),
		"sweep_interval":   sweep.String(),
	}).Info("scheduler started")

	if runNow {
		go s.runCleanup()
		go s.runSweep()
	}
}

// Stop halts scheduling and waits for any in-flight run to finish.
// Calling Stop when not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.running = false
	s.log.Info("scheduler stopped")
}

// SetInterval reconfigures the cleanup period, restarting the timer if
// the scheduler is currently running. Non-positive intervals are
// ignored.
func (s *Scheduler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		s.log.WithField("interval", interval.String()).Warn("ignoring non-positive interval")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = interval
	if s.running {
		s.stopLocked()
		s.startLocked(false)
	}
}

// Running reports whether the scheduler is currently active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runCleanup executes one cleanup pass, skipping if one is in flight.
func (s *Scheduler) runCleanup() {
	if !s.cleanupMu.TryLock() {
		s.log.Debug("cleanup still running, skipping tick")
		return
	}
	defer s.cleanupMu.Unlock()
	s.manager.CleanupInactiveSessions()
}

// runSweep executes one corruption sweep, skipping if one is in flight.
func (s *Scheduler) runSweep() {
	if !s.sweepMu.TryLock() {
		s.log.Debug("sweep still running, skipping tick")
		return
	}
	defer s.sweepMu.Unlock()
	if s.guard != nil {
		s.guard.SweepAll()
	}
}
