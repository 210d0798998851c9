// Package notifications delivers in-app notifications: the per-user
// store behind the notification endpoints and the fan-out rules the
// mutation pipeline runs after a successful write.
package notifications

import (
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/crm"
)

// Type classifies a notification
type Type string

const (
	TypeTaskReminder    Type = "Task Reminder"
	TypeLeadAssignment  Type = "Lead Assignment"
	TypeDealStageChange Type = "Deal Stage Change"
	TypeNewMessage      Type = "New Message"
	TypeSystemAlert     Type = "System Alert"
)

// ParseType validates a notification type string
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeTaskReminder, TypeLeadAssignment, TypeDealStageChange, TypeNewMessage, TypeSystemAlert:
		return Type(s), nil
	}
	return "", apperr.InvalidInput("invalid notification type: %s", s)
}

// Priority orders notifications by urgency
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Notification is one in-app notification addressed to a single user
type Notification struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	IsRead    bool           `json:"is_read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	RelatedTo *crm.RelatedTo `json:"related_to,omitempty"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}
