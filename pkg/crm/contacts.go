package crm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// ContactStore persists contacts
type ContactStore struct {
	db *sql.DB
}

// NewContactStore creates a contact store
func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

// ContactFilter narrows contact listing
type ContactFilter struct {
	AccountID  *int64
	AssignedTo *int64
	Search     string
	Limit      int
	Offset     int
}

// ContactUpdate carries partial-update fields; nil means unchanged
type ContactUpdate struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Email      *string `json:"email"`
	Mobile     *string `json:"mobile"`
	JobTitle   *string `json:"job_title"`
	AccountID  *int64  `json:"account_id"`
	Notes      *string `json:"notes"`
	AssignedTo *int64  `json:"assigned_to"`
}

const contactColumns = `c.id, c.first_name, c.last_name, c.email, c.mobile, c.job_title,
	c.account_id, c.notes, c.assigned_to, c.created_at, c.updated_at`

func contactSelect() string {
	return fmt.Sprintf("SELECT %s, %s FROM contacts c %s",
		contactColumns, projectionColumns("contacts"), projectionJoins("contacts", "c"))
}

func scanContact(row interface{ Scan(...interface{}) error }) (*Contact, error) {
	var c Contact
	var assigneeFirst, assigneeLast, accountName sql.NullString

	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Mobile, &c.JobTitle,
		&c.AccountID, &c.Notes, &c.AssignedTo, &c.CreatedAt, &c.UpdatedAt,
		&assigneeFirst, &assigneeLast, &accountName,
	)
	if err != nil {
		return nil, err
	}

	if c.AssignedTo != nil && assigneeFirst.Valid {
		c.Assignee = &UserRef{ID: *c.AssignedTo, FirstName: assigneeFirst.String, LastName: assigneeLast.String}
	}
	if c.AccountID != nil && accountName.Valid {
		c.Account = &AccountRef{ID: *c.AccountID, Name: accountName.String}
	}
	return &c, nil
}

// Create inserts a contact and reloads it with expanded references
func (s *ContactStore) Create(ctx context.Context, contact *Contact) (*Contact, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (first_name, last_name, email, mobile, job_title, account_id, notes, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		contact.FirstName, contact.LastName, contact.Email, contact.Mobile,
		contact.JobTitle, contact.AccountID, contact.Notes, contact.AssignedTo,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a contact with expanded references
func (s *ContactStore) GetByID(ctx context.Context, id int64) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, contactSelect()+" WHERE c.id = $1", id)
	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("contact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return contact, nil
}

// List returns contacts matching the filter, newest first
func (s *ContactStore) List(ctx context.Context, filter ContactFilter) ([]*Contact, error) {
	var b clauseBuilder

	if filter.AccountID != nil {
		b.add("c.account_id = $%d", *filter.AccountID)
	}
	if filter.AssignedTo != nil {
		b.add("c.assigned_to = $%d", *filter.AssignedTo)
	}
	if filter.Search != "" {
		b.addSearch(filter.Search, "c.first_name", "c.last_name", "c.email")
	}

	query := contactSelect() + b.where() + " ORDER BY c.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", b.nextArg(filter.Limit))
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", b.nextArg(filter.Offset))
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

// Update applies a partial update and returns the refreshed contact
func (s *ContactStore) Update(ctx context.Context, id int64, update ContactUpdate) (*Contact, error) {
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
	if update.JobTitle != nil {
		b.add("job_title = $%d", *update.JobTitle)
	}
	if update.AccountID != nil {
		b.add("account_id = $%d", *update.AccountID)
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
	query := fmt.Sprintf("UPDATE contacts SET %s WHERE id = $%d", b.set(), b.nextArg(id))

	result, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("contact not found")
	}

	return s.GetByID(ctx, id)
}

// Delete removes a contact
func (s *ContactStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("contact not found")
	}
	return nil
}
