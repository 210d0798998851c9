package notifications

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/crm"
)

var notificationTestColumns = []string{
	"id", "user_id", "type", "title", "message", "is_read", "read_at",
	"related_kind", "related_id", "priority", "created_at",
}

func notificationRows(id, userID int64, isRead bool) *sqlmock.Rows {
	now := time.Now()
	var readAt interface{}
	if isRead {
		readAt = now
	}
	return sqlmock.NewRows(notificationTestColumns).AddRow(
		id, userID, "Lead Assignment", "New Lead Assigned",
		"You have been assigned a new lead: Jane Smith",
		isRead, readAt, "lead", int64(5), "High", now,
	)
}

func TestStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(int64(7), "Lead Assignment", "New Lead Assigned",
			"You have been assigned a new lead: Jane Smith", "lead", int64(5), "High").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	n, err := store.Create(context.Background(), &Notification{
		UserID:    7,
		Type:      TypeLeadAssignment,
		Title:     "New Lead Assigned",
		Message:   "You have been assigned a new lead: Jane Smith",
		RelatedTo: &crm.RelatedTo{Kind: "lead", ID: 5},
		Priority:  PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListForUserFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`WHERE user_id = \$1 AND is_read = \$2 AND type = \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs(int64(7), false, "Lead Assignment", 50).
		WillReturnRows(notificationRows(1, 7, false))

	isRead := false
	typ := TypeLeadAssignment
	got, err := store.ListForUser(context.Background(), 7, ListFilter{
		IsRead: &isRead,
		Type:   &typ,
		Limit:  50,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TypeLeadAssignment, got[0].Type)
	require.NotNil(t, got[0].RelatedTo)
	assert.Equal(t, "lead", got[0].RelatedTo.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCountUnread(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND is_read = FALSE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.CountUnread(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT user_id FROM notifications WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(7)))
	mock.ExpectQuery(`UPDATE notifications SET is_read = TRUE, read_at = NOW\(\)`).
		WithArgs(int64(1)).
		WillReturnRows(notificationRows(1, 7, true))

	n, err := store.MarkRead(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	assert.NotNil(t, n.ReadAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkReadForeignNotification(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT user_id FROM notifications WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(8)))

	_, err = store.MarkRead(context.Background(), 1, 7)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkReadMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT user_id FROM notifications WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err = store.MarkRead(context.Background(), 42, 7)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkAllRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, store.MarkAllRead(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteOwnerOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT user_id FROM notifications WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(8)))

	err = store.Delete(context.Background(), 1, 7)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePruneRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE is_read = TRUE AND read_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	pruned, err := store.PruneRead(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), pruned)
	assert.NoError(t, mock.ExpectationsWereMet())
}
