package crm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// AccountStore persists accounts
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore creates an account store
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// AccountFilter narrows account listing
type AccountFilter struct {
	Type       *AccountType
	AssignedTo *int64
	Search     string
	Limit      int
	Offset     int
}

// AccountUpdate carries partial-update fields; nil means unchanged
type AccountUpdate struct {
	Name       *string      `json:"name"`
	Email      *string      `json:"email"`
	Phone      *string      `json:"phone"`
	Website    *string      `json:"website"`
	Industry   *string      `json:"industry"`
	Type       *AccountType `json:"type"`
	Notes      *string      `json:"notes"`
	AssignedTo *int64       `json:"assigned_to"`
}

const accountColumns = `a.id, a.name, a.email, a.phone, a.website, a.industry, a.type,
	a.notes, a.assigned_to, a.created_at, a.updated_at`

func accountSelect() string {
	return fmt.Sprintf("SELECT %s, %s FROM accounts a %s",
		accountColumns, projectionColumns("accounts"), projectionJoins("accounts", "a"))
}

func scanAccount(row interface{ Scan(...interface{}) error }) (*Account, error) {
	var a Account
	var assigneeFirst, assigneeLast sql.NullString

	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.Phone, &a.Website, &a.Industry, &a.Type,
		&a.Notes, &a.AssignedTo, &a.CreatedAt, &a.UpdatedAt,
		&assigneeFirst, &assigneeLast,
	)
	if err != nil {
		return nil, err
	}

	if a.AssignedTo != nil && assigneeFirst.Valid {
		a.Assignee = &UserRef{ID: *a.AssignedTo, FirstName: assigneeFirst.String, LastName: assigneeLast.String}
	}
	return &a, nil
}

// Create inserts an account and reloads it with expanded references
func (s *AccountStore) Create(ctx context.Context, account *Account) (*Account, error) {
	if account.Type == "" {
		account.Type = AccountCustomer
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (name, email, phone, website, industry, type, notes, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		account.Name, account.Email, account.Phone, account.Website,
		account.Industry, account.Type, account.Notes, account.AssignedTo,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches an account with expanded references
func (s *AccountStore) GetByID(ctx context.Context, id int64) (*Account, error) {
	row := s.db.QueryRowContext(ctx, accountSelect()+" WHERE a.id = $1", id)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// List returns accounts matching the filter, newest first
func (s *AccountStore) List(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	var b clauseBuilder

	if filter.Type != nil {
		b.add("a.type = $%d", *filter.Type)
	}
	if filter.AssignedTo != nil {
		b.add("a.assigned_to = $%d", *filter.AssignedTo)
	}
	if filter.Search != "" {
		b.addSearch(filter.Search, "a.name", "a.email", "a.industry")
	}

	query := accountSelect() + b.where() + " ORDER BY a.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", b.nextArg(filter.Limit))
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", b.nextArg(filter.Offset))
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Update applies a partial update and returns the refreshed account
func (s *AccountStore) Update(ctx context.Context, id int64, update AccountUpdate) (*Account, error) {
	var b clauseBuilder

	if update.Name != nil {
		b.add("name = $%d", *update.Name)
	}
	if update.Email != nil {
		b.add("email = $%d", *update.Email)
	}
	if update.Phone != nil {
		b.add("phone = $%d", *update.Phone)
	}
	if update.Website != nil {
		b.add("website = $%d", *update.Website)
	}
	if update.Industry != nil {
		b.add("industry = $%d", *update.Industry)
	}
	if update.Type != nil {
		b.add("type = $%d", *update.Type)
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
	query := fmt.Sprintf("UPDATE accounts SET %s WHERE id = $%d", b.set(), b.nextArg(id))

	result, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("account not found")
	}

	return s.GetByID(ctx, id)
}

// Delete removes an account
func (s *AccountStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("account not found")
	}
	return nil
}
