package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/notifications"
	"github.com/meridiancrm/meridian/pkg/observability"
)

// PruneJob removes read notifications past the retention window and
// expired sessions
type PruneJob struct {
	notifications *notifications.Store
	sessions      *auth.SessionStore
	retention     time.Duration
	logger        *observability.Logger
}

// NewPruneJob creates the retention job
func NewPruneJob(notificationStore *notifications.Store, sessionStore *auth.SessionStore, retention time.Duration, logger *observability.Logger) *PruneJob {
	return &PruneJob{
		notifications: notificationStore,
		sessions:      sessionStore,
		retention:     retention,
		logger:        logger,
	}
}

// Name implements Job
func (j *PruneJob) Name() string { return "retention-prune" }

// Run prunes both retention surfaces; the first failure aborts
func (j *PruneJob) Run(ctx context.Context) error {
	now := time.Now().UTC()

	pruned, err := j.notifications.PruneRead(ctx, now.Add(-j.retention))
	if err != nil {
		return fmt.Errorf("pruning notifications: %w", err)
	}

	sessions, err := j.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("pruning sessions: %w", err)
	}

	j.logger.
		WithField("notifications_pruned", pruned).
		WithField("sessions_pruned", sessions).
		Info("Retention prune finished")
	return nil
}
