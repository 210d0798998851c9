package crm

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskTestColumns = []string{
	"id", "title", "description", "type", "priority", "status", "due_date",
	"related_kind", "related_id", "completed_at", "assigned_to", "created_at", "updated_at",
	"assignee_first_name", "assignee_last_name",
}

func taskRows(id int64, title string, status TaskStatus, completedAt interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(taskTestColumns).AddRow(
		id, title, "", "Call", "Medium", string(status), nil,
		nil, nil, completedAt, nil, now, now,
		nil, nil,
	)
}

func TestTaskStoreCreateDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewTaskStore(db)

	mock.ExpectQuery(`INSERT INTO tasks`).
		WithArgs("Follow up with Acme", "", "Other", "Medium", "Pending",
			nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT (.+) FROM tasks t`).
		WithArgs(int64(1)).
		WillReturnRows(taskRows(1, "Follow up with Acme", TaskPending, nil))

	task, err := store.Create(context.Background(), &Task{Title: "Follow up with Acme"})
	require.NoError(t, err)
	assert.Equal(t, TaskPending, task.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStoreCompletedStampsCompletedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewTaskStore(db)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE tasks SET status = $1, completed_at = NOW(), updated_at = NOW() WHERE id = $2")).
		WithArgs("Completed", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM tasks t`).
		WithArgs(int64(1)).
		WillReturnRows(taskRows(1, "Follow up with Acme", TaskCompleted, time.Now()))

	status := TaskCompleted
	task, err := store.Update(context.Background(), 1, TaskUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStoreNonCompletedStatusDoesNotStamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewTaskStore(db)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs("In Progress", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM tasks t`).
		WithArgs(int64(1)).
		WillReturnRows(taskRows(1, "Follow up with Acme", TaskInProgress, nil))

	status := TaskInProgress
	task, err := store.Update(context.Background(), 1, TaskUpdate{Status: &status})
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStoreRelatedToRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewTaskStore(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM tasks t`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(taskTestColumns).AddRow(
			int64(1), "Call the lead", "", "Call", "High", "Pending", nil,
			"lead", int64(5), nil, nil, now, now,
			nil, nil,
		))

	task, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, task.RelatedTo)
	assert.Equal(t, "lead", task.RelatedTo.Kind)
	assert.Equal(t, int64(5), task.RelatedTo.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
