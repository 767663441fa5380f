package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionStore is the slice of persistence the scheduler sweeps
type SessionStore interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Scheduler runs background maintenance jobs
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionStore
	logger   *zap.Logger
}

// NewScheduler creates a new job scheduler
func NewScheduler(sessions SessionStore, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		logger:   logger.Named("jobs"),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Abandoned authorization attempts leave session rows behind; sweep
	// them on the same cadence as their 10 minute TTL.
	s.cron.AddFunc("*/10 * * * *", s.cleanupExpiredSessions)

	s.cron.Start()
	go s.cleanupExpiredSessions()

	s.logger.Info("Job scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Job scheduler stopped")
}

func (s *Scheduler) cleanupExpiredSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("Failed to delete expired oauth sessions", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("Deleted expired oauth sessions", zap.Int64("count", deleted))
	}
}
