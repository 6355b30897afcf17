package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Reloader is anything whose state can be refreshed on a schedule.
type Reloader interface {
	Reload(ctx context.Context) error
}

// MappingScheduler reloads the mapping table on a cron schedule, so a
// long-running server picks up edits to the mapping file without restarts.
type MappingScheduler struct {
	cron   *cron.Cron
	target Reloader
	logger *slog.Logger
}

// NewMappingScheduler validates the cron expression and registers the reload
// job. Start must be called before any reload fires.
func NewMappingScheduler(schedule string, target Reloader, logger *slog.Logger) (*MappingScheduler, error) {
	s := &MappingScheduler{
		cron:   cron.New(),
		target: target,
		logger: logger,
	}
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.target.Reload(context.Background()); err != nil {
			s.logger.Warn("scheduled mapping reload failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid mapping reload schedule %q: %w", schedule, err)
	}
	s.logger.Info("mapping reload scheduled", "schedule", schedule)
	return s, nil
}

// Start begins firing scheduled reloads.
func (s *MappingScheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule. Running reloads finish.
func (s *MappingScheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("mapping reload scheduler stopped")
}
