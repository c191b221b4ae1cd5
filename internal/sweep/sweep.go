// Package sweep periodically purges expired links. Redirect access already
// deletes expired records lazily; the sweep catches the ones nobody visits.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/repository"
)

// Sweeper schedules the expired-link cleanup job.
type Sweeper struct {
	storage  repository.Storage
	schedule string
	cron     *cron.Cron
	log      *zap.Logger
}

func New(storage repository.Storage, schedule string, log *zap.Logger) *Sweeper {
	return &Sweeper{
		storage:  storage,
		schedule: schedule,
		cron:     cron.New(),
		log:      log,
	}
}

// Start registers and launches the cron job.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.log.Info("expired-link sweep scheduled", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("expired-link sweep stopped")
}

// Run executes one sweep immediately, outside of the schedule. Used by the
// admin cleanup endpoint.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	return s.storage.DeleteExpired(ctx)
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.storage.DeleteExpired(ctx)
	if err != nil {
		s.log.Error("expired-link sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("expired-link sweep completed", zap.Int64("removed", removed))
	}
}
