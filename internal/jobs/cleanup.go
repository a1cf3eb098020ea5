package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/repository"
)

const cleanupTimeout = 30 * time.Second

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// staleStatuses are the snapshot states nobody resumes from.
var staleStatuses = []model.SessionStatus{
	model.SessionStatusDisconnected,
	model.SessionStatusError,
	model.SessionStatusIdle,
}

// CleanupJob prunes old session events and abandoned session snapshots on a
// cron schedule.
type CleanupJob struct {
	sessionRepo repository.SessionRepository
	eventRepo   repository.SessionEventRepository
	schedule    string
	retention   time.Duration
	now         func() time.Time
	sched       *cron.Cron
}

func NewCleanupJob(
	sessionRepo repository.SessionRepository,
	eventRepo repository.SessionEventRepository,
	schedule string,
	retention time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
		schedule:    schedule,
		retention:   retention,
		now:         time.Now,
		sched: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
}

// Start runs one cleanup right away and then follows the schedule.
func (j *CleanupJob) Start() error {
	if _, err := j.sched.AddFunc(j.schedule, j.cleanup); err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", j.schedule, err)
	}

	go j.cleanup()
	j.sched.Start()

	log.Info().Str("schedule", j.schedule).Dur("retention", j.retention).Msg("cleanup job started")
	return nil
}

func (j *CleanupJob) Stop() {
	<-j.sched.Stop().Done()
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	before := j.now().Add(-j.retention)

	j.runCleanup(ctx, "session events", func(ctx context.Context) (int64, error) {
		return j.eventRepo.DeleteOlderThan(ctx, before)
	})
	j.runCleanup(ctx, "stale sessions", func(ctx context.Context) (int64, error) {
		return j.sessionRepo.DeleteStale(ctx, before, staleStatuses)
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
