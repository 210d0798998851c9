package crm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// DealStore persists deals
type DealStore struct {
	db *sql.DB
}

// NewDealStore creates a deal store
func NewDealStore(db *sql.DB) *DealStore {
	return &DealStore{db: db}
}

// DealFilter narrows deal listing
type DealFilter struct {
	Stage      *DealStage
	AccountID  *int64
	AssignedTo *int64
	Search     string
	Limit      int
	Offset     int
}

// DealUpdate carries partial-update fields; nil means unchanged
type DealUpdate struct {
	Name              *string    `json:"name"`
	AccountID         *int64     `json:"account_id"`
	ContactID         *int64     `json:"contact_id"`
	Stage             *DealStage `json:"stage"`
	Value             *float64   `json:"value"`
	Currency          *string    `json:"currency"`
	ExpectedCloseDate *time.Time `json:"expected_close_date"`
	Probability       *int       `json:"probability"`
	SourceID          *int64     `json:"source_id"`
	AssignedTo        *int64     `json:"assigned_to"`
}

const dealColumns = `d.id, d.name, d.account_id, d.contact_id, d.stage, d.value, d.currency,
	d.expected_close_date, d.closed_at, d.probability, d.source_id, d.assigned_to,
	d.created_at, d.updated_at`

func dealSelect() string {
	return fmt.Sprintf("SELECT %s, %s FROM deals d %s",
		dealColumns, projectionColumns("deals"), projectionJoins("deals", "d"))
}

func scanDeal(row interface{ Scan(...interface{}) error }) (*Deal, error) {
	var d Deal
	var assigneeFirst, assigneeLast, accountName, contactFirst, contactLast, sourceName sql.NullString

	err := row.Scan(
		&d.ID, &d.Name, &d.AccountID, &d.ContactID, &d.Stage, &d.Value, &d.Currency,
		&d.ExpectedCloseDate, &d.ClosedAt, &d.Probability, &d.SourceID, &d.AssignedTo,
		&d.CreatedAt, &d.UpdatedAt,
		&assigneeFirst, &assigneeLast, &accountName, &contactFirst, &contactLast, &sourceName,
	)
	if err != nil {
		return nil, err
	}

	if d.AssignedTo != nil && assigneeFirst.Valid {
		d.Assignee = &UserRef{ID: *d.AssignedTo, FirstName: assigneeFirst.String, LastName: assigneeLast.String}
	}
	if d.AccountID != nil && accountName.Valid {
		d.Account = &AccountRef{ID: *d.AccountID, Name: accountName.String}
	}
	if d.ContactID != nil && contactFirst.Valid {
		d.Contact = &ContactRef{ID: *d.ContactID, FirstName: contactFirst.String, LastName: contactLast.String}
	}
	if d.SourceID != nil && sourceName.Valid {
		d.Source = &CampaignRef{ID: *d.SourceID, Name: sourceName.String}
	}
	return &d, nil
}

// Create inserts a deal and reloads it with expanded references
func (s *DealStore) Create(ctx context.Context, deal *Deal) (*Deal, error) {
	if deal.Stage == "" {
		deal.Stage = DealProspecting
	}
	if deal.Currency == "" {
		deal.Currency = "USD"
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO deals (name, account_id, contact_id, stage, value, currency,
			expected_close_date, probability, source_id, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		deal.Name, deal.AccountID, deal.ContactID, deal.Stage, deal.Value, deal.Currency,
		deal.ExpectedCloseDate, deal.Probability, deal.SourceID, deal.AssignedTo,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a deal with expanded references
func (s *DealStore) GetByID(ctx context.Context, id int64) (*Deal, error) {
	row := s.db.QueryRowContext(ctx, dealSelect()+" WHERE d.id = $1", id)
	deal, err := scanDeal(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("deal not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return deal, nil
}

// List returns deals matching the filter, newest first
func (s *DealStore) List(ctx context.Context, filter DealFilter) ([]*Deal, error) {
	var b clauseBuilder

	if filter.Stage != nil {
		b.add("d.stage = $%d", *filter.Stage)
	}
	if filter.AccountID != nil {
		b.add("d.account_id = $%d", *filter.AccountID)
	}
	if filter.AssignedTo != nil {
		b.add("d.assigned_to = $%d", *filter.AssignedTo)
	}
	if filter.Search != "" {
		b.addSearch(filter.Search, "d.name")
	}

	query := dealSelect() + b.where() + " ORDER BY d.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", b.nextArg(filter.Limit))
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", b.nextArg(filter.Offset))
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	deals := make([]*Deal, 0)
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

// Update applies a partial update and returns the refreshed deal. A
// move into a terminal stage stamps closed_at.
func (s *DealStore) Update(ctx context.Context, id int64, update DealUpdate) (*Deal, error) {
	var b clauseBuilder

	if update.Name != nil {
		b.add("name = $%d", *update.Name)
	}
	if update.AccountID != nil {
		b.add("account_id = $%d", *update.AccountID)
	}
	if update.ContactID != nil {
		b.add("contact_id = $%d", *update.ContactID)
	}
	if update.Stage != nil {
		b.add("stage = $%d", *update.Stage)
		if update.Stage.Closed() {
			b.clauses = append(b.clauses, "closed_at = NOW()")
		}
	}
	if update.Value != nil {
		b.add("value = $%d", *update.Value)
	}
	if update.Currency != nil {
		b.add("currency = $%d", *update.Currency)
	}
	if update.ExpectedCloseDate != nil {
		b.add("expected_close_date = $%d", *update.ExpectedCloseDate)
	}
	if update.Probability != nil {
		b.add("probability = $%d", *update.Probability)
	}
	if update.SourceID != nil {
		b.add("source_id = $%d", *update.SourceID)
	}
	if update.AssignedTo != nil {
		b.add("assigned_to = $%d", *update.AssignedTo)
	}

	if b.empty() {
		return s.GetByID(ctx, id)
	}

	b.clauses = append(b.clauses, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE deals SET %s WHERE id = $%d", b.set(), b.nextArg(id))

	result, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update deal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("deal not found")
	}

	return s.GetByID(ctx, id)
}

// Delete removes a deal
func (s *DealStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("deal not found")
	}
	return nil
}
