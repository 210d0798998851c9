package crm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// LeadStore persists leads
type LeadStore struct {
	db *sql.DB
}

// NewLeadStore creates a lead store
func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{db: db}
}

// LeadFilter narrows lead listing
type LeadFilter struct {
	Status     *LeadStatus
	AssignedTo *int64
	Search     string
	Limit      int
	Offset     int
}

// LeadUpdate carries partial-update fields; nil means unchanged
type LeadUpdate struct {
	FirstName  *string     `json:"first_name"`
	LastName   *string     `json:"last_name"`
	Email      *string     `json:"email"`
	Mobile     *string     `json:"mobile"`
	Company    *string     `json:"company"`
	JobTitle   *string     `json:"job_title"`
	Status     *LeadStatus `json:"status"`
	SourceID   *int64      `json:"source_id"`
	Value      *float64    `json:"value"`
	Notes      *string     `json:"notes"`
	AssignedTo *int64      `json:"assigned_to"`
}

const leadColumns = `l.id, l.first_name, l.last_name, l.email, l.mobile, l.company, l.job_title,
	l.status, l.source_id, l.value, l.notes, l.assigned_to,
	l.converted_contact_id, l.converted_account_id, l.converted_deal_id, l.converted_at,
	l.created_at, l.updated_at`

func leadSelect() string {
	return fmt.Sprintf("SELECT %s, %s FROM leads l %s",
		leadColumns, projectionColumns("leads"), projectionJoins("leads", "l"))
}

func scanLead(row interface{ Scan(...interface{}) error }) (*Lead, error) {
	var l Lead
	var assigneeFirst, assigneeLast, sourceName sql.NullString

	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Mobile, &l.Company, &l.JobTitle,
		&l.Status, &l.SourceID, &l.Value, &l.Notes, &l.AssignedTo,
		&l.ConvertedTo.ContactID, &l.ConvertedTo.AccountID, &l.ConvertedTo.DealID, &l.ConvertedAt,
		&l.CreatedAt, &l.UpdatedAt,
		&assigneeFirst, &assigneeLast, &sourceName,
	)
	if err != nil {
		return nil, err
	}

	if l.AssignedTo != nil && assigneeFirst.Valid {
		l.Assignee = &UserRef{ID: *l.AssignedTo, FirstName: assigneeFirst.String, LastName: assigneeLast.String}
	}
	if l.SourceID != nil && sourceName.Valid {
		l.Source = &CampaignRef{ID: *l.SourceID, Name: sourceName.String}
	}
	return &l, nil
}

// Create inserts a lead and reloads it with expanded references
func (s *LeadStore) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	if lead.Status == "" {
		lead.Status = LeadNew
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO leads (first_name, last_name, email, mobile, company, job_title,
			status, source_id, value, notes, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		lead.FirstName, lead.LastName, lead.Email, lead.Mobile, lead.Company, lead.JobTitle,
		lead.Status, lead.SourceID, lead.Value, lead.Notes, lead.AssignedTo,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a lead with expanded references
func (s *LeadStore) GetByID(ctx context.Context, id int64) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, leadSelect()+" WHERE l.id = $1", id)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("lead not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// List returns leads matching the filter, newest first
func (s *LeadStore) List(ctx context.Context, filter LeadFilter) ([]*Lead, error) {
	var b clauseBuilder

	if filter.Status != nil {
		b.add("l.status = $%d", *filter.Status)
	}
	if filter.AssignedTo != nil {
		b.add("l.assigned_to = $%d", *filter.AssignedTo)
	}
	if filter.Search != "" {
		b.addSearch(filter.Search, "l.first_name", "l.last_name", "l.email", "l.company")
	}

	query := leadSelect() + b.where() + " ORDER BY l.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", b.nextArg(filter.Limit))
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", b.nextArg(filter.Offset))
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// Update applies a partial update and returns the refreshed lead
func (s *LeadStore) Update(ctx context.Context, id int64, update LeadUpdate) (*Lead, error) {
	var b clauseBuilder

	if update.FirstName != nil {
		b.add("first_name = $%d", *update.FirstName)
	}
	if update.LastName != nil {
		b.add("last_name = $%d", *update.LastName)
	}
	if update.Email != nil {
		b.add("email = $%d", *update.Email)
	}
	if update.Mobile != nil {
		b.add("mobile = $%d", *update.Mobile)
	}
	if update.Company != nil {
		b.add("company = $%d", *update.Company)
	}
	if update.JobTitle != nil {
		b.add("job_title = $%d", *update.JobTitle)
	}
	if update.Status != nil {
		b.add("status = $%d", *update.Status)
	}
	if update.SourceID != nil {
		b.add("source_id = $%d", *update.SourceID)
	}
	if update.Value != nil {
		b.add("value = $%d", *update.Value)
	}
	if update.Notes != nil {
		b.add("notes = $%d", *update.Notes)
	}
	if update.AssignedTo != nil {
		b.add("assigned_to = $%d", *update.AssignedTo)
	}

	if b.empty() {
		return s.GetByID(ctx, id)
	}

	b.clauses = append(b.clauses, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = $%d", b.set(), b.nextArg(id))

	result, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("lead not found")
	}

	return s.GetByID(ctx, id)
}

// MarkConverted records the conversion artifacts, stamps converted_at,
// and forces the status to Qualified
func (s *LeadStore) MarkConverted(ctx context.Context, id int64, converted ConvertedTo) (*Lead, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE leads SET converted_contact_id = $1, converted_account_id = $2,
			converted_deal_id = $3, converted_at = NOW(), status = $4, updated_at = NOW()
		WHERE id = $5`,
		converted.ContactID, converted.AccountID, converted.DealID, LeadQualified, id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark lead converted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("lead not found")
	}

	return s.GetByID(ctx, id)
}

// Delete removes a lead
func (s *LeadStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}
