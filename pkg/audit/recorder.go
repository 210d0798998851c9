package audit

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/observability"
)

// Event is one auditable act, described by the handler that ran it
type Event struct {
	Actor      *auth.User
	Action     Action
	EntityType EntityType
	EntityID   int64
	Details    interface{}
	IPAddress  string
	UserAgent  string
}

// Recorder writes audit entries best-effort. A failed write is logged
// and counted but never reaches the caller; the mutation it trails has
// already committed.
type Recorder struct {
	store   *Store
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewRecorder creates a recorder
func NewRecorder(store *Store, log *logrus.Logger, metrics *observability.Metrics) *Recorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{store: store, log: log, metrics: metrics}
}

// Record appends one entry for the event
func (r *Recorder) Record(ctx context.Context, ev Event) {
	entry := &Entry{
		Action:     ev.Action,
		EntityType: ev.EntityType,
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
	}
	if ev.Actor != nil {
		entry.UserID = &ev.Actor.ID
	}
	if ev.EntityID != 0 {
		entry.EntityID = &ev.EntityID
	}

	if err := r.store.Append(ctx, entry, ev.Details); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"action":      string(ev.Action),
			"entity_type": string(ev.EntityType),
			"entity_id":   ev.EntityID,
			"request_id":  observability.GetRequestID(ctx),
		}).Error("audit write failed")
		if r.metrics != nil {
			r.metrics.AuditFailuresTotal.Inc()
		}
		return
	}

	if r.metrics != nil {
		r.metrics.AuditEventsTotal.WithLabelValues(string(ev.Action), string(ev.EntityType)).Inc()
	}
}
