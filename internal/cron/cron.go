package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
	"github.com/robfig/cron/v3"
)

// PurgeSchedule runs the refresh token purge at the top of every hour.
const PurgeSchedule = "0 * * * *"

const jobTimeout = 30 * time.Second

// Scheduler handles scheduled maintenance tasks
type Scheduler struct {
	cron     *cron.Cron
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(userRepo repository.UserRepository) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		userRepo: userRepo,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(PurgeSchedule, s.purgeExpiredTokens); err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("cron scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("cron scheduler stopped")
}

// purgeExpiredTokens deletes refresh tokens past their expiry.
func (s *Scheduler) purgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := s.userRepo.DeleteExpiredRefreshTokens(ctx, s.now())
	if err != nil {
		slog.Error("refresh token purge failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("purged expired refresh tokens", "count", removed)
	}
}
