package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/logging"
)

const (
	DefaultDailySchedule   = "0 0 * * *"
	DefaultMonthlySchedule = "0 0 1 * *"
)

// Scheduler triggers the ledger's daily and monthly resets on cron schedules
// evaluated in the ledger's time zone.
type Scheduler struct {
	ledger    *Ledger
	daily     string
	monthly   string
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *zap.Logger
	running   bool
	stopWatch func() bool
}

// NewScheduler creates a scheduler with both reset jobs registered. Empty
// schedules use the midnight defaults.
func NewScheduler(l *Ledger, daily, monthly string, logger *zap.Logger) (*Scheduler, error) {
	if daily == "" {
		daily = DefaultDailySchedule
	}
	if monthly == "" {
		monthly = DefaultMonthlySchedule
	}
	s := &Scheduler{
		ledger:  l,
		daily:   daily,
		monthly: monthly,
		cron:    cron.New(cron.WithLocation(l.Location())),
		logger:  logging.OrNop(logger).With(zap.String("component", "ledger.scheduler")),
	}

	if _, err := s.cron.AddFunc(daily, func() {
		n := s.ledger.ResetDaily()
		s.logger.Info("daily spend reset", zap.Int("providers", n))
	}); err != nil {
		return nil, fmt.Errorf("invalid daily schedule %q: %w", daily, err)
	}
	if _, err := s.cron.AddFunc(monthly, func() {
		n := s.ledger.ResetMonthly()
		s.logger.Info("monthly spend reset", zap.Int("providers", n))
	}); err != nil {
		return nil, fmt.Errorf("invalid monthly schedule %q: %w", monthly, err)
	}
	return s, nil
}

// Start starts the cron runner. The scheduler stops when ctx is cancelled or
// Stop is called, and may be started again afterwards.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.stopWatch = context.AfterFunc(ctx, s.Stop)
	s.logger.Info("ledger scheduler started", zap.String("daily", s.daily), zap.String("monthly", s.monthly))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.stopWatch()
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("ledger scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRuns returns the next fire time of each registered job.
func (s *Scheduler) NextRuns() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, e := range s.cron.Entries() {
		out = append(out, e.Next)
	}
	return out
}
