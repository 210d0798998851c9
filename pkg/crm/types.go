// Package crm holds the CRM entities and their PostgreSQL stores. All
// owned entities share the same pipeline semantics: filtered listing
// newest first, pointer-field partial updates, and row scoping for
// restricted roles applied by the callers through the authz policy.
package crm

import (
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// LeadStatus is a lead's pipeline position
type LeadStatus string

const (
	LeadNew       LeadStatus = "New"
	LeadContacted LeadStatus = "Contacted"
	LeadQualified LeadStatus = "Qualified"
	LeadLost      LeadStatus = "Lost"
)

// ParseLeadStatus validates a lead status string
func ParseLeadStatus(s string) (LeadStatus, error) {
	switch LeadStatus(s) {
	case LeadNew, LeadContacted, LeadQualified, LeadLost:
		return LeadStatus(s), nil
	}
	return "", apperr.InvalidInput("invalid lead status: %s", s)
}

// DealStage is a deal's pipeline stage
type DealStage string

const (
	DealProspecting DealStage = "Prospecting"
	DealProposal    DealStage = "Proposal"
	DealNegotiation DealStage = "Negotiation"
	DealClosedWon   DealStage = "Closed Won"
	DealClosedLost  DealStage = "Closed Lost"
)

// ParseDealStage validates a deal stage string
func ParseDealStage(s string) (DealStage, error) {
	switch DealStage(s) {
	case DealProspecting, DealProposal, DealNegotiation, DealClosedWon, DealClosedLost:
		return DealStage(s), nil
	}
	return "", apperr.InvalidInput("invalid deal stage: %s", s)
}

// Closed reports whether the stage is terminal
func (s DealStage) Closed() bool {
	return s == DealClosedWon || s == DealClosedLost
}

// AccountType classifies an account
type AccountType string

const (
	AccountCustomer   AccountType = "Customer"
	AccountPartner    AccountType = "Partner"
	AccountCompetitor AccountType = "Competitor"
	AccountReseller   AccountType = "Reseller"
	AccountOther      AccountType = "Other"
)

// ParseAccountType validates an account type string
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(s) {
	case AccountCustomer, AccountPartner, AccountCompetitor, AccountReseller, AccountOther:
		return AccountType(s), nil
	}
	return "", apperr.InvalidInput("invalid account type: %s", s)
}

// TaskType classifies a task
type TaskType string

const (
	TaskCall     TaskType = "Call"
	TaskMeeting  TaskType = "Meeting"
	TaskEmail    TaskType = "Email"
	TaskFollowUp TaskType = "Follow-up"
	TaskOther    TaskType = "Other"
)

// TaskPriority orders tasks by urgency
type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
	PriorityUrgent TaskPriority = "Urgent"
)

// TaskStatus is a task's lifecycle state
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
	TaskCancelled  TaskStatus = "Cancelled"
)

// ParseTaskStatus validates a task status string
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled:
		return TaskStatus(s), nil
	}
	return "", apperr.InvalidInput("invalid task status: %s", s)
}

// CommunicationType classifies a logged communication
type CommunicationType string

const (
	CommEmail    CommunicationType = "Email"
	CommCall     CommunicationType = "Call"
	CommNote     CommunicationType = "Note"
	CommMeeting  CommunicationType = "Meeting"
	CommDocument CommunicationType = "Document"
)

// RelatedTo is a loose reference to another entity
type RelatedTo struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// UserRef is the expanded projection of an assigned user
type UserRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AccountRef is the expanded projection of a linked account
type AccountRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ContactRef is the expanded projection of a linked contact
type ContactRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CampaignRef is the expanded projection of a source campaign
type CampaignRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ConvertedTo carries the artifacts a lead conversion produced
type ConvertedTo struct {
	ContactID *int64 `json:"contact_id,omitempty"`
	AccountID *int64 `json:"account_id,omitempty"`
	DealID    *int64 `json:"deal_id,omitempty"`
}

// Empty reports whether no conversion artifact exists
func (c ConvertedTo) Empty() bool {
	return c.ContactID == nil && c.AccountID == nil && c.DealID == nil
}

// Lead is an unqualified prospect
type Lead struct {
	ID          int64        `json:"id"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	Email       string       `json:"email,omitempty"`
	Mobile      string       `json:"mobile,omitempty"`
	Company     string       `json:"company,omitempty"`
	JobTitle    string       `json:"job_title,omitempty"`
	Status      LeadStatus   `json:"status"`
	SourceID    *int64       `json:"source_id,omitempty"`
	Source      *CampaignRef `json:"source,omitempty"`
	Value       float64      `json:"value"`
	Notes       string       `json:"notes,omitempty"`
	AssignedTo  *int64       `json:"assigned_to,omitempty"`
	Assignee    *UserRef     `json:"assignee,omitempty"`
	ConvertedTo ConvertedTo  `json:"converted_to"`
	ConvertedAt *time.Time   `json:"converted_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Contact is a person at an account
type Contact struct {
	ID         int64       `json:"id"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	Email      string      `json:"email,omitempty"`
	Mobile     string      `json:"mobile,omitempty"`
	JobTitle   string      `json:"job_title,omitempty"`
	AccountID  *int64      `json:"account_id,omitempty"`
	Account    *AccountRef `json:"account,omitempty"`
	Notes      string      `json:"notes,omitempty"`
	AssignedTo *int64      `json:"assigned_to,omitempty"`
	Assignee   *UserRef    `json:"assignee,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Account is a company record
type Account struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email,omitempty"`
	Phone      string      `json:"phone,omitempty"`
	Website    string      `json:"website,omitempty"`
	Industry   string      `json:"industry,omitempty"`
	Type       AccountType `json:"type"`
	Notes      string      `json:"notes,omitempty"`
	AssignedTo *int64      `json:"assigned_to,omitempty"`
	Assignee   *UserRef    `json:"assignee,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Deal is an opportunity in the pipeline
type Deal struct {
	ID                int64        `json:"id"`
	Name              string       `json:"name"`
	AccountID         *int64       `json:"account_id,omitempty"`
	Account           *AccountRef  `json:"account,omitempty"`
	ContactID         *int64       `json:"contact_id,omitempty"`
	Contact           *ContactRef  `json:"contact,omitempty"`
	Stage             DealStage    `json:"stage"`
	Value             float64      `json:"value"`
	Currency          string       `json:"currency"`
	ExpectedCloseDate *time.Time   `json:"expected_close_date,omitempty"`
	ClosedAt          *time.Time   `json:"closed_at,omitempty"`
	Probability       int          `json:"probability"`
	SourceID          *int64       `json:"source_id,omitempty"`
	Source            *CampaignRef `json:"source,omitempty"`
	AssignedTo        *int64       `json:"assigned_to,omitempty"`
	Assignee          *UserRef     `json:"assignee,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Task is a scheduled activity
type Task struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Type        TaskType     `json:"type"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	RelatedTo   *RelatedTo   `json:"related_to,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	AssignedTo  *int64       `json:"assigned_to,omitempty"`
	Assignee    *UserRef     `json:"assignee,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Campaign is a marketing campaign (unowned; tracked by creator)
type Campaign struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Budget         float64    `json:"budget"`
	Currency       string     `json:"currency"`
	LeadsGenerated int        `json:"leads_generated"`
	DealsWon       int        `json:"deals_won"`
	CreatedBy      *int64     `json:"created_by,omitempty"`
	Creator        *UserRef   `json:"creator,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Communication is a logged interaction (unowned; tracked by creator)
type Communication struct {
	ID        int64             `json:"id"`
	Type      CommunicationType `json:"type"`
	Subject   string            `json:"subject"`
	Content   string            `json:"content,omitempty"`
	RelatedTo *RelatedTo        `json:"related_to,omitempty"`
	Direction string            `json:"direction"`
	CreatedBy *int64            `json:"created_by,omitempty"`
	Creator   *UserRef          `json:"creator,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
