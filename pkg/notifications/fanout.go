package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/observability"
)

// Entity identifies the record a fan-out event is about
type Entity struct {
	Kind  string // lead, contact, account, deal, task
	ID    int64
	Label string // display text, e.g. "Jane Smith" or the deal name
}

// Fanout applies the notification rules after a successful mutation.
// Delivery is best-effort: a failed insert is logged and counted, never
// surfaced to the caller, and never rolls the mutation back. No rule
// ever targets the acting user.
type Fanout struct {
	store   *Store
	metrics *observability.Metrics
}

// NewFanout creates a fan-out dispatcher
func NewFanout(store *Store, metrics *observability.Metrics) *Fanout {
	return &Fanout{store: store, metrics: metrics}
}

// Created notifies an explicitly assigned user about a new record.
// A defaulted assignee (the creator) produces nothing.
func (f *Fanout) Created(ctx context.Context, actor *auth.User, entity Entity, assignee *int64) {
	if assignee == nil || *assignee == actor.ID {
		return
	}

	f.deliver(ctx, &Notification{
		UserID:    *assignee,
		Type:      typeFor(entity.Kind),
		Title:     fmt.Sprintf("New %s Assigned", titleKind(entity.Kind)),
		Message:   fmt.Sprintf("You have been assigned a new %s: %s", entity.Kind, entity.Label),
		RelatedTo: &crm.RelatedTo{Kind: entity.Kind, ID: entity.ID},
		Priority:  PriorityHigh,
	})
}

// Reassigned notifies the new assignee of a handover
func (f *Fanout) Reassigned(ctx context.Context, actor *auth.User, entity Entity, oldAssignee, newAssignee *int64) {
	if newAssignee == nil || *newAssignee == actor.ID {
		return
	}
	if oldAssignee != nil && *oldAssignee == *newAssignee {
		return
	}

	f.deliver(ctx, &Notification{
		UserID:    *newAssignee,
		Type:      typeFor(entity.Kind),
		Title:     fmt.Sprintf("%s Reassigned", titleKind(entity.Kind)),
		Message:   fmt.Sprintf("You have been assigned a %s: %s", entity.Kind, entity.Label),
		RelatedTo: &crm.RelatedTo{Kind: entity.Kind, ID: entity.ID},
		Priority:  PriorityHigh,
	})
}

// StatusChanged notifies the record's assignee about a stage or status
// move. With no assignee the target falls back to the actor, which is
// then suppressed as a self-notification. Deal stage moves are High,
// lead and task status moves Medium.
func (f *Fanout) StatusChanged(ctx context.Context, actor *auth.User, entity Entity, assignee *int64, from, to string) {
	if from == to {
		return
	}

	target := actor.ID
	if assignee != nil {
		target = *assignee
	}
	if target == actor.ID {
		return
	}

	priority := PriorityMedium
	message := fmt.Sprintf("%s %s status changed to %s", titleKind(entity.Kind), entity.Label, to)
	title := fmt.Sprintf("%s Status Changed", titleKind(entity.Kind))
	if entity.Kind == "deal" {
		priority = PriorityHigh
		title = "Deal Stage Updated"
		message = fmt.Sprintf("Deal %q moved to %s", entity.Label, to)
	}

	f.deliver(ctx, &Notification{
		UserID:    target,
		Type:      typeFor(entity.Kind),
		Title:     title,
		Message:   message,
		RelatedTo: &crm.RelatedTo{Kind: entity.Kind, ID: entity.ID},
		Priority:  priority,
	})
}

func (f *Fanout) deliver(ctx context.Context, n *Notification) {
	if _, err := f.store.Create(ctx, n); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("notification_type", string(n.Type)).
			WithField("user_id", n.UserID).
			Error("Notification delivery failed")
		return
	}
	if f.metrics != nil {
		f.metrics.NotificationsCreatedTotal.WithLabelValues(string(n.Type)).Inc()
	}
}

func typeFor(kind string) Type {
	switch kind {
	case "lead":
		return TypeLeadAssignment
	case "deal":
		return TypeDealStageChange
	case "task":
		return TypeTaskReminder
	}
	return TypeSystemAlert
}

func titleKind(kind string) string {
	if kind == "" {
		return ""
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}
