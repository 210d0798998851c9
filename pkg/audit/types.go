// Package audit keeps the append-only activity trail. Entries are
// written best-effort after every successful mutation and are never
// updated or deleted by the application; the retention surface is the
// export path, not deletion.
package audit

import (
	"encoding/json"
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// Action is what the actor did
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionRead    Action = "READ"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionLogin   Action = "LOGIN"
	ActionLogout  Action = "LOGOUT"
	ActionAssign  Action = "ASSIGN"
	ActionConvert Action = "CONVERT"
	ActionExport  Action = "EXPORT"
	ActionImport  Action = "IMPORT"
)

// ParseAction validates an action string
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionLogin,
		ActionLogout, ActionAssign, ActionConvert, ActionExport, ActionImport:
		return Action(s), nil
	}
	return "", apperr.InvalidInput("invalid audit action: %s", s)
}

// EntityType is what kind of record the action touched
type EntityType string

const (
	EntityUser          EntityType = "User"
	EntityLead          EntityType = "Lead"
	EntityContact       EntityType = "Contact"
	EntityAccount       EntityType = "Account"
	EntityDeal          EntityType = "Deal"
	EntityTask          EntityType = "Task"
	EntityCommunication EntityType = "Communication"
	EntityCampaign      EntityType = "Campaign"
	EntityNotification  EntityType = "Notification"
	EntityAuditLog      EntityType = "AuditLog"
	EntityOrganization  EntityType = "Organization"
)

// ParseEntityType validates an entity type string
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityUser, EntityLead, EntityContact, EntityAccount, EntityDeal,
		EntityTask, EntityCommunication, EntityCampaign, EntityNotification,
		EntityAuditLog, EntityOrganization:
		return EntityType(s), nil
	}
	return "", apperr.InvalidInput("invalid entity type: %s", s)
}

// Entry is one audit log record
type Entry struct {
	ID         int64           `json:"id"`
	UserID     *int64          `json:"user_id,omitempty"`
	Action     Action          `json:"action"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   *int64          `json:"entity_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Detail payloads, one tagged variant per mutation shape. The kind tag
// lets consumers of the raw JSONB column dispatch without guessing.

// CreateDetails snapshots the significant input fields of a create
type CreateDetails struct {
	Kind     string                 `json:"kind"`
	Snapshot map[string]interface{} `json:"snapshot"`
}

// NewCreateDetails builds the create variant
func NewCreateDetails(snapshot map[string]interface{}) CreateDetails {
	return CreateDetails{Kind: "create", Snapshot: snapshot}
}

// UpdateDetails carries the raw partial-update payload
type UpdateDetails struct {
	Kind    string      `json:"kind"`
	Changes interface{} `json:"changes"`
}

// NewUpdateDetails builds the update variant
func NewUpdateDetails(changes interface{}) UpdateDetails {
	return UpdateDetails{Kind: "update", Changes: changes}
}

// DeleteDetails names the deleted record by an identifying field
type DeleteDetails struct {
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
}

// NewDeleteDetails builds the delete variant
func NewDeleteDetails(identifier string) DeleteDetails {
	return DeleteDetails{Kind: "delete", Identifier: identifier}
}

// ConvertDetails records the artifacts a lead conversion produced
type ConvertDetails struct {
	Kind      string `json:"kind"`
	ContactID *int64 `json:"contact_id,omitempty"`
	AccountID *int64 `json:"account_id,omitempty"`
	DealID    *int64 `json:"deal_id,omitempty"`
}

// NewConvertDetails builds the convert variant
func NewConvertDetails(contactID, accountID, dealID *int64) ConvertDetails {
	return ConvertDetails{Kind: "convert", ContactID: contactID, AccountID: accountID, DealID: dealID}
}
