package crm

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

var leadTestColumns = []string{
	"id", "first_name", "last_name", "email", "mobile", "company", "job_title",
	"status", "source_id", "value", "notes", "assigned_to",
	"converted_contact_id", "converted_account_id", "converted_deal_id", "converted_at",
	"created_at", "updated_at",
	"assignee_first_name", "assignee_last_name", "source_name",
}

func leadRows(id int64, first, last string, assignedTo interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(leadTestColumns).AddRow(
		id, first, last, "lead@example.com", "555-0100", "Acme", "CTO",
		"New", nil, 5000.0, "", assignedTo,
		nil, nil, nil, nil,
		now, now,
		nil, nil, nil,
	)
}

func TestLeadStoreGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM leads l (.+) WHERE l\.id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(leadRows(1, "Jane", "Smith", int64(7)))

	lead, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane", lead.FirstName)
	assert.Equal(t, LeadNew, lead.Status)
	require.NotNil(t, lead.AssignedTo)
	assert.Equal(t, int64(7), *lead.AssignedTo)
	assert.True(t, lead.ConvertedTo.Empty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(leadTestColumns))

	_, err = store.GetByID(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreListFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM leads l (.+) WHERE l\.status = \$1 AND l\.assigned_to = \$2 ORDER BY l\.created_at DESC LIMIT \$3`).
		WithArgs("Qualified", int64(7), 25).
		WillReturnRows(leadRows(1, "Jane", "Smith", int64(7)))

	status := LeadQualified
	assignee := int64(7)
	leads, err := store.List(context.Background(), LeadFilter{
		Status:     &status,
		AssignedTo: &assignee,
		Limit:      25,
	})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreListSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	mock.ExpectQuery(`WHERE \(l\.first_name ILIKE \$1 OR l\.last_name ILIKE \$1 OR l\.email ILIKE \$1 OR l\.company ILIKE \$1\)`).
		WithArgs("%smith%").
		WillReturnRows(sqlmock.NewRows(leadTestColumns))

	leads, err := store.List(context.Background(), LeadFilter{Search: "smith"})
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreCreateDefaultsStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs("Jane", "Smith", "lead@example.com", "555-0100", "Acme", "CTO",
			"New", nil, 5000.0, "", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(leadRows(1, "Jane", "Smith", int64(7)))

	assignee := int64(7)
	lead, err := store.Create(context.Background(), &Lead{
		FirstName:  "Jane",
		LastName:   "Smith",
		Email:      "lead@example.com",
		Mobile:     "555-0100",
		Company:    "Acme",
		JobTitle:   "CTO",
		Value:      5000,
		AssignedTo: &assignee,
	})
	require.NoError(t, err)
	assert.Equal(t, LeadNew, lead.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreUpdatePartial(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	// only the supplied fields may appear in the SET list
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE leads SET status = $1, notes = $2, updated_at = NOW() WHERE id = $3")).
		WithArgs("Contacted", "called twice", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(leadRows(1, "Jane", "Smith", int64(7)))

	status := LeadContacted
	notes := "called twice"
	_, err = store.Update(context.Background(), 1, LeadUpdate{Status: &status, Notes: &notes})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreUpdateEmptyFallsBackToGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(leadRows(1, "Jane", "Smith", int64(7)))

	_, err = store.Update(context.Background(), 1, LeadUpdate{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreUpdateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	mock.ExpectExec(`UPDATE leads SET`).
		WithArgs("Lost", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	status := LeadLost
	_, err = store.Update(context.Background(), 42, LeadUpdate{Status: &status})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreMarkConverted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	contactID, accountID, dealID := int64(10), int64(20), int64(30)
	now := time.Now()

	mock.ExpectExec(`UPDATE leads SET converted_contact_id = \$1`).
		WithArgs(contactID, accountID, dealID, "Qualified", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(leadTestColumns).AddRow(
			int64(1), "Jane", "Smith", "lead@example.com", "555-0100", "Acme", "CTO",
			"Qualified", nil, 5000.0, "", int64(7),
			contactID, accountID, dealID, now,
			now, now,
			nil, nil, nil,
		))

	lead, err := store.MarkConverted(context.Background(), 1, ConvertedTo{
		ContactID: &contactID,
		AccountID: &accountID,
		DealID:    &dealID,
	})
	require.NoError(t, err)
	assert.Equal(t, LeadQualified, lead.Status)
	assert.False(t, lead.ConvertedTo.Empty())
	require.NotNil(t, lead.ConvertedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadStoreDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewLeadStore(db)

	mock.ExpectExec(`DELETE FROM leads WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(context.Background(), 1))

	mock.ExpectExec(`DELETE FROM leads WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = store.Delete(context.Background(), 42)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
