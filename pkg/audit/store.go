package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store persists audit entries. Append and read only; no update or
// delete path exists.
type Store struct {
	db *sql.DB
}

// NewStore creates an audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListFilter narrows audit listing
type ListFilter struct {
	UserID     *int64
	Action     *Action
	EntityType *EntityType
	From       *time.Time
	To         *time.Time
	Limit      int
}

const entryColumns = `id, user_id, action, entity_type, entity_id, details,
	ip_address, user_agent, created_at`

func scanEntry(row interface{ Scan(...interface{}) error }) (*Entry, error) {
	var e Entry
	var details []byte
	var ip, ua sql.NullString

	err := row.Scan(
		&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &details,
		&ip, &ua, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Details = json.RawMessage(details)
	e.IPAddress = ip.String
	e.UserAgent = ua.String
	return &e, nil
}

// Append inserts an entry. Details may be any JSON-marshalable value;
// nil stores NULL.
func (s *Store) Append(ctx context.Context, e *Entry, details interface{}) error {
	var payload interface{}
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		e.Details = data
		payload = data
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		e.UserID, e.Action, e.EntityType, e.EntityID, payload, nullable(e.IPAddress), nullable(e.UserAgent),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Entry, error) {
	query := fmt.Sprintf("SELECT %s FROM audit_logs", entryColumns)
	var conditions []string
	var args []interface{}

	add := func(format string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Action != nil {
		add("action = $%d", *filter.Action)
	}
	if filter.EntityType != nil {
		add("entity_type = $%d", *filter.EntityType)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}

	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
