package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"moviepicker/internal/logging"
	"moviepicker/internal/metrics"
)

// PassPurger deletes passes whose window has lapsed.
type PassPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CleanupService handles periodic maintenance of the local database.
// Filtering never depends on it: expired passes are ignored whether or not
// they have been purged.
type CleanupService struct {
	db     *sql.DB
	passes PassPurger
}

func NewCleanupService(db *sql.DB, passes PassPurger) *CleanupService {
	return &CleanupService{
		db:     db,
		passes: passes,
	}
}

// PurgeExpiredPasses removes passed-movie records that no longer exclude anything.
func (s *CleanupService) PurgeExpiredPasses(ctx context.Context) error {
	removed, err := s.passes.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	metrics.PassesPurged.Add(float64(removed))
	logging.Info().Int64("removed", removed).Msg("Purged expired passes")
	return nil
}

// OptimizeDatabase lets SQLite refresh its query planner statistics.
func (s *CleanupService) OptimizeDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize database: %w", err)
	}
	return nil
}

// RunFullCleanup runs every maintenance operation, continuing past failures.
// It returns how many operations failed.
func (s *CleanupService) RunFullCleanup(ctx context.Context) int {
	cleanupOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"purge expired passes", s.PurgeExpiredPasses},
		{"optimize database", s.OptimizeDatabase},
	}

	failures := 0
	for _, op := range cleanupOps {
		if err := op.fn(ctx); err != nil {
			failures++
			logging.Error().Err(err).Str("operation", op.name).Msg("Cleanup operation failed")
		}
	}
	return failures
}

// ScheduleCleanup runs RunFullCleanup every interval until ctx is cancelled.
func (s *CleanupService) ScheduleCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Cleanup scheduler stopping")
			return
		case <-ticker.C:
			if failures := s.RunFullCleanup(ctx); failures > 0 {
				logging.Warn().Int("failures", failures).Msg("Scheduled cleanup finished with failures")
			}
		}
	}
}
