package crm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// CommunicationStore persists logged communications
type CommunicationStore struct {
	db *sql.DB
}

// NewCommunicationStore creates a communication store
func NewCommunicationStore(db *sql.DB) *CommunicationStore {
	return &CommunicationStore{db: db}
}

// CommunicationFilter narrows communication listing
type CommunicationFilter struct {
	Type        *CommunicationType
	RelatedKind *string
	RelatedID   *int64
	Search      string
	Limit       int
	Offset      int
}

// CommunicationUpdate carries partial-update fields; nil means unchanged
type CommunicationUpdate struct {
	Type      *CommunicationType `json:"type"`
	Subject   *string            `json:"subject"`
	Content   *string            `json:"content"`
	RelatedTo *RelatedTo         `json:"related_to"`
	Direction *string            `json:"direction"`
}

const communicationColumns = `cm.id, cm.type, cm.subject, cm.content, cm.related_kind,
	cm.related_id, cm.direction, cm.created_by, cm.created_at, cm.updated_at`

func communicationSelect() string {
	return fmt.Sprintf("SELECT %s, %s FROM communications cm %s",
		communicationColumns, projectionColumns("communications"), projectionJoins("communications", "cm"))
}

func scanCommunication(row interface{ Scan(...interface{}) error }) (*Communication, error) {
	var c Communication
	var relatedKind sql.NullString
	var relatedID sql.NullInt64
	var creatorFirst, creatorLast sql.NullString

	err := row.Scan(
		&c.ID, &c.Type, &c.Subject, &c.Content, &relatedKind,
		&relatedID, &c.Direction, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&creatorFirst, &creatorLast,
	)
	if err != nil {
		return nil, err
	}

	if relatedKind.Valid && relatedID.Valid {
		c.RelatedTo = &RelatedTo{Kind: relatedKind.String, ID: relatedID.Int64}
	}
	if c.CreatedBy != nil && creatorFirst.Valid {
		c.Creator = &UserRef{ID: *c.CreatedBy, FirstName: creatorFirst.String, LastName: creatorLast.String}
	}
	return &c, nil
}

// Create inserts a communication and reloads it with expanded references
func (s *CommunicationStore) Create(ctx context.Context, comm *Communication) (*Communication, error) {
	if comm.Direction == "" {
		comm.Direction = "Outbound"
	}

	var relatedKind *string
	var relatedID *int64
	if comm.RelatedTo != nil {
		relatedKind = &comm.RelatedTo.Kind
		relatedID = &comm.RelatedTo.ID
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO communications (type, subject, content, related_kind, related_id, direction, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		comm.Type, comm.Subject, comm.Content, relatedKind, relatedID, comm.Direction, comm.CreatedBy,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create communication: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a communication with expanded references
func (s *CommunicationStore) GetByID(ctx context.Context, id int64) (*Communication, error) {
	row := s.db.QueryRowContext(ctx, communicationSelect()+" WHERE cm.id = $1", id)
	comm, err := scanCommunication(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("communication not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get communication: %w", err)
	}
	return comm, nil
}

// List returns communications matching the filter, newest first
func (s *CommunicationStore) List(ctx context.Context, filter CommunicationFilter) ([]*Communication, error) {
	var b clauseBuilder

	if filter.Type != nil {
		b.add("cm.type = $%d", *filter.Type)
	}
	if filter.RelatedKind != nil {
		b.add("cm.related_kind = $%d", *filter.RelatedKind)
	}
	if filter.RelatedID != nil {
		b.add("cm.related_id = $%d", *filter.RelatedID)
	}
	if filter.Search != "" {
		b.addSearch(filter.Search, "cm.subject", "cm.content")
	}

	query := communicationSelect() + b.where() + " ORDER BY cm.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", b.nextArg(filter.Limit))
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", b.nextArg(filter.Offset))
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list communications: %w", err)
	}
	defer rows.Close()

	comms := make([]*Communication, 0)
	for rows.Next() {
		comm, err := scanCommunication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan communication: %w", err)
		}
		comms = append(comms, comm)
	}
	return comms, rows.Err()
}

// Update applies a partial update and returns the refreshed communication
func (s *CommunicationStore) Update(ctx context.Context, id int64, update CommunicationUpdate) (*Communication, error) {
	var b clauseBuilder

	if update.Type != nil {
		b.add("type = $%d", *update.Type)
	}
	if update.Subject != nil {
		b.add("subject = $%d", *update.Subject)
	}
	if update.Content != nil {
		b.add("content = $%d", *update.Content)
	}
	if update.RelatedTo != nil {
		b.add("related_kind = $%d", update.RelatedTo.Kind)
		b.add("related_id = $%d", update.RelatedTo.ID)
	}
	if update.Direction != nil {
		b.add("direction = $%d", *update.Direction)
	}

	if b.empty() {
		return s.GetByID(ctx, id)
	}

	b.clauses = append(b.clauses, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE communications SET %s WHERE id = $%d", b.set(), b.nextArg(id))

	result, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update communication: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("communication not found")
	}

	return s.GetByID(ctx, id)
}

// Delete removes a communication
func (s *CommunicationStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM communications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete communication: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("communication not found")
	}
	return nil
}
