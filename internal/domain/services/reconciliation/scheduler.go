package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ryzan/ryzan_service/pkg/logger"
)

const runTimeout = 10 * time.Minute

// DefaultSchedule runs reconciliation every fifteen minutes
const DefaultSchedule = "*/15 * * * *"

// Scheduler handles automated reconciliation runs
type Scheduler struct {
	service  *Service
	schedule string
	logger   *logger.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new reconciliation scheduler
func NewScheduler(service *Service, schedule string, logger *logger.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		service:  service,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the job and starts the cron runner
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		s.execute(ctx, "scheduled")
	}); err != nil {
		return fmt.Errorf("invalid reconciliation schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Reconciliation scheduler started", "schedule", s.schedule)
	return nil
}

// Shutdown stops the runner and waits for an in-flight run to finish
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Reconciliation scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunManualReconciliation triggers a run outside the schedule
func (s *Scheduler) RunManualReconciliation(ctx context.Context) (*Report, error) {
	return s.execute(ctx, "manual")
}

func (s *Scheduler) execute(ctx context.Context, runType string) (*Report, error) {
	report, err := s.service.RunReconciliation(ctx, runType)
	if err != nil {
		s.logger.Error("Reconciliation failed", "run_type", runType, "error", err)
		return nil, err
	}

	s.logger.Info("Reconciliation completed",
		"run_type", runType,
		"checked", report.Checked,
		"corrected", report.Corrected,
		"outcomes", report.Outcomes,
		"duration", report.Duration,
	)
	return report, nil
}
