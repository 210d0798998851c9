package crm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// TaskStore persists tasks
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore creates a task store
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// TaskFilter narrows task listing
type TaskFilter struct {
	Status     *TaskStatus
	Type       *TaskType
	Priority   *TaskPriority
	AssignedTo *int64
	Search     string
	Limit      int
	Offset     int
}

// TaskUpdate carries partial-update fields; nil means unchanged
type TaskUpdate struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Type        *TaskType     `json:"type"`
	Priority    *TaskPriority `json:"priority"`
	Status      *TaskStatus   `json:"status"`
	DueDate     *time.Time    `json:"due_date"`
	RelatedTo   *RelatedTo    `json:"related_to"`
	AssignedTo  *int64        `json:"assigned_to"`
}

const taskColumns = `t.id, t.title, t.description, t.type, t.priority, t.status, t.due_date,
	t.related_kind, t.related_id, t.completed_at, t.assigned_to, t.created_at, t.updated_at`

func taskSelect() string {
	return fmt.Sprintf("SELECT %s, %s FROM tasks t %s",
		taskColumns, projectionColumns("tasks"), projectionJoins("tasks", "t"))
}

func scanTask(row interface{ Scan(...interface{}) error }) (*Task, error) {
	var t Task
	var relatedKind sql.NullString
	var relatedID sql.NullInt64
	var assigneeFirst, assigneeLast sql.NullString

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Type, &t.Priority, &t.Status, &t.DueDate,
		&relatedKind, &relatedID, &t.CompletedAt, &t.AssignedTo, &t.CreatedAt, &t.UpdatedAt,
		&assigneeFirst, &assigneeLast,
	)
	if err != nil {
		return nil, err
	}

	if relatedKind.Valid && relatedID.Valid {
		t.RelatedTo = &RelatedTo{Kind: relatedKind.String, ID: relatedID.Int64}
	}
	if t.AssignedTo != nil && assigneeFirst.Valid {
		t.Assignee = &UserRef{ID: *t.AssignedTo, FirstName: assigneeFirst.String, LastName: assigneeLast.String}
	}
	return &t, nil
}

// Create inserts a task and reloads it with expanded references
func (s *TaskStore) Create(ctx context.Context, task *Task) (*Task, error) {
	if task.Type == "" {
		task.Type = TaskOther
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Status == "" {
		task.Status = TaskPending
	}

	var relatedKind *string
	var relatedID *int64
	if task.RelatedTo != nil {
		relatedKind = &task.RelatedTo.Kind
		relatedID = &task.RelatedTo.ID
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, type, priority, status, due_date,
			related_kind, related_id, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		task.Title, task.Description, task.Type, task.Priority, task.Status,
		task.DueDate, relatedKind, relatedID, task.AssignedTo,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task with expanded references
func (s *TaskStore) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelect()+" WHERE t.id = $1", id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns tasks matching the filter, newest first
func (s *TaskStore) List(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	var b clauseBuilder

	if filter.Status != nil {
		b.add("t.status = $%d", *filter.Status)
	}
	if filter.Type != nil {
		b.add("t.type = $%d", *filter.Type)
	}
	if filter.Priority != nil {
		b.add("t.priority = $%d", *filter.Priority)
	}
	if filter.AssignedTo != nil {
		b.add("t.assigned_to = $%d", *filter.AssignedTo)
	}
	if filter.Search != "" {
		b.addSearch(filter.Search, "t.title", "t.description")
	}

	query := taskSelect() + b.where() + " ORDER BY t.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", b.nextArg(filter.Limit))
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", b.nextArg(filter.Offset))
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Update applies a partial update and returns the refreshed task. A
// move into Completed stamps completed_at.
func (s *TaskStore) Update(ctx context.Context, id int64, update TaskUpdate) (*Task, error) {
	var b clauseBuilder

	if update.Title != nil {
		b.add("title = $%d", *update.Title)
	}
	if update.Description != nil {
		b.add("description = $%d", *update.Description)
	}
	if update.Type != nil {
		b.add("type = $%d", *update.Type)
	}
	if update.Priority != nil {
		b.add("priority = $%d", *update.Priority)
	}
	if update.Status != nil {
		b.add("status = $%d", *update.Status)
		if *update.Status == TaskCompleted {
			b.clauses = append(b.clauses, "completed_at = NOW()")
		}
	}
	if update.DueDate != nil {
		b.add("due_date = $%d", *update.DueDate)
	}
	if update.RelatedTo != nil {
		b.add("related_kind = $%d", update.RelatedTo.Kind)
		b.add("related_id = $%d", update.RelatedTo.ID)
	}
	if update.AssignedTo != nil {
		b.add("assigned_to = $%d", *update.AssignedTo)
	}

	if b.empty() {
		return s.GetByID(ctx, id)
	}

	b.clauses = append(b.clauses, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", b.set(), b.nextArg(id))

	result, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFound("task not found")
	}

	return s.GetByID(ctx, id)
}

// Delete removes a task
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("task not found")
	}
	return nil
}
