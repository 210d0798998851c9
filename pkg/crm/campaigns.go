package crm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// CampaignStore persists campaigns
type CampaignStore struct {
	db *sql.DB
}

// NewCampaignStore creates a campaign store
func NewCampaignStore(db *sql.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

// CampaignFilter narrows campaign listing
type CampaignFilter struct {
	Status *string
	Type   *string
	Search string
	Limit  int
	Offset int
}

// CampaignUpdate carries partial-update fields; nil means unchanged
type CampaignUpdate struct {
	Name           *string    `json:"name"`
	Type           *string    `json:"type"`
	Status         *string    `json:"status"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Budget         *float64   `json:"budget"`
	Currency       *string    `json:"currency"`
	LeadsGenerated *int       `json:"leads_generated"`
	DealsWon       *int       `json:"deals_won"`
}

const campaignColumns = `cp.id, cp.name, cp.type, cp.status, cp.start_date, cp.end_date,
	cp.budget, cp.currency, cp.leads_generated, cp.deals_won, cp.created_by,
	cp.created_at, cp.updated_at`

func campaignSelect() string {
	return fmt.Sprintf("SELECT %s, %s FROM campaigns cp %s",
		campaignColumns, projectionColumns("campaigns"), projectionJoins("campaigns", "cp"))
}

func scanCampaign(row interface{ Scan(...interface{}) error }) (*Campaign, error) {
	var c Campaign
	var creatorFirst, creatorLast sql.NullString

	err := row.Scan(
		&c.ID, &c.Name, &c.Type, &c.Status, &c.StartDate, &c.EndDate,
		&c.Budget, &c.Currency, &c.LeadsGenerated, &c.DealsWon, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt,
		&creatorFirst, &creatorLast,
	)
	if err != nil {
		return nil, err
	}

	if c.CreatedBy != nil && creatorFirst.Valid {
		c.Creator = &UserRef{ID: *c.CreatedBy, FirstName: creatorFirst.String, LastName: creatorLast.String}
	}
	return &c, nil
}

// Create inserts a campaign and reloads it with expanded references
func (s *CampaignStore) Create(ctx context.Context, campaign *Campaign) (*Campaign, error) {
	if campaign.Status == "" {
		campaign.Status = "Planned"
	}
	if campaign.Currency == "" {
		campaign.Currency = "USD"
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (name, type, status, start_date, end_date, budget, currency, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		campaign.Name, campaign.Type, campaign.Status, campaign.StartDate,
		campaign.EndDate, campaign.Budget, campaign.Currency, campaign.CreatedBy,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a campaign with expanded references
func (s *CampaignStore) GetByID(ctx context.Context, id int64) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx, campaignSelect()+" WHERE cp.id = $1", id)
	campaign, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("campaign not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

// List returns campaigns matching the filter, newest first
func (s *CampaignStore) List(ctx context.Context, filter CampaignFilter) ([]*Campaign, error) {
	var b clauseBuilder

	if filter.Status != nil {
		b.add("cp.status = $%d", *filter.Status)
	}
	if filter.Type != nil {
		b.add("cp.type = $%d", *filter.Type)
	}
	if filter.Search != "" {
		b.addSearch(filter.Search, "cp.name")
	}

	query := campaignSelect() + b.where() + " ORDER BY cp.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", b.nextArg(filter.Limit))
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", b.nextArg(filter.Offset))
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := make([]*Campaign, 0)
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

// Update applies a partial update and returns the refreshed campaign
func (s *CampaignStore) Update(ctx context.Context, id int64, update CampaignUpdate) (*Campaign, error) {
	var b clauseBuilder

	if update.Name != nil {
		b.add("name = $%d", *update.Name)
	}
	if update.Type != nil {
		b.add("type = $%d", *update.Type)
	}
	if update.Status != nil {
		b.add("status = $%d", *update.Status)
	}
	if update.StartDate != nil {
		b.add("start_date = $%d", *update.StartDate)
	}
	if update.EndDate != nil {
		b.add("end_date = $%d", *update.EndDate)
	}
	if update.Budget != nil {
		b.add("budget = $%d", *update.Budget)
	}
	if update.Currency != nil {
		b.add("currency = $%d", *update.Currency)
	}
	if update.LeadsGenerated != nil {
		b.add("leads_generated = $%d", *update.LeadsGenerated)
	}
	if update.DealsWon != nil {
		b.add("deals_won = $%d", *update.DealsWon)
	}

	if b.empty() {
		return s.GetByID(ctx, id)
	}

	b.clauses = append(b.clauses, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d", b.set(), b.nextArg(id))

	result, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("campaign not found")
	}

	return s.GetByID(ctx, id)
}

// Delete removes a campaign
func (s *CampaignStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("campaign not found")
	}
	return nil
}
