package crm

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

var contactTestColumns = []string{
	"id", "first_name", "last_name", "email", "mobile", "job_title",
	"account_id", "notes", "assigned_to", "created_at", "updated_at",
	"assignee_first_name", "assignee_last_name", "account_name",
}

var accountTestColumns = []string{
	"id", "name", "email", "phone", "website", "industry", "type",
	"notes", "assigned_to", "created_at", "updated_at",
	"assignee_first_name", "assignee_last_name",
}

func newConverter(t *testing.T) (*Converter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewConverter(
		NewLeadStore(db),
		NewContactStore(db),
		NewAccountStore(db),
		NewDealStore(db),
	), mock
}

func unconvertedLeadRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(leadTestColumns).AddRow(
		int64(1), "John", "Smith", "john@acme.com", "555-0100", "Acme", "CTO",
		"New", int64(3), 5000.0, "met at expo", int64(7),
		nil, nil, nil, nil,
		now, now,
		nil, nil, nil,
	)
}

func TestConvertRejectsEmptyTargets(t *testing.T) {
	conv, mock := newConverter(t)

	_, err := conv.Convert(context.Background(), 1, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidOperation, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertRejectsUnknownTarget(t *testing.T) {
	conv, mock := newConverter(t)

	_, err := conv.Convert(context.Background(), 1, []string{"contact", "invoice"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidOperation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "invoice")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertRejectsAlreadyConverted(t *testing.T) {
	conv, mock := newConverter(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(leadTestColumns).AddRow(
			int64(1), "John", "Smith", "john@acme.com", "555-0100", "Acme", "CTO",
			"Qualified", nil, 5000.0, "", int64(7),
			int64(10), nil, nil, now,
			now, now,
			nil, nil, nil,
		))

	_, err := conv.Convert(context.Background(), 1, []string{"deal"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidOperation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "already converted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertFullCascade(t *testing.T) {
	conv, mock := newConverter(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(unconvertedLeadRows())

	// contact copies the lead's identity fields and assignee
	mock.ExpectQuery(`INSERT INTO contacts`).
		WithArgs("John", "Smith", "john@acme.com", "555-0100", "CTO", nil, "met at expo", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery(`SELECT (.+) FROM contacts c`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(contactTestColumns).AddRow(
			int64(10), "John", "Smith", "john@acme.com", "555-0100", "CTO",
			nil, "met at expo", int64(7), now, now,
			nil, nil, nil,
		))

	// account takes the company name and the lead's mobile as phone
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs("Acme", "john@acme.com", "555-0100", "", "", "Customer", "", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(20)))
	mock.ExpectQuery(`SELECT (.+) FROM accounts a`).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows(accountTestColumns).AddRow(
			int64(20), "Acme", "john@acme.com", "555-0100", "", "", "Customer",
			"", int64(7), now, now,
			nil, nil,
		))

	// the contact created above is linked to the new account
	mock.ExpectExec(`UPDATE contacts SET account_id = \$1`).
		WithArgs(int64(20), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM contacts c`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(contactTestColumns).AddRow(
			int64(10), "John", "Smith", "john@acme.com", "555-0100", "CTO",
			int64(20), "met at expo", int64(7), now, now,
			nil, nil, "Acme",
		))

	// deal wires up both artifacts and carries the lead's value and source
	mock.ExpectQuery(`INSERT INTO deals`).
		WithArgs("Deal - John Smith", int64(20), int64(10), "Prospecting", 5000.0, "USD",
			nil, 0, int64(3), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(30)))
	mock.ExpectQuery(`SELECT (.+) FROM deals d`).
		WithArgs(int64(30)).
		WillReturnRows(dealRows(30, "Deal - John Smith", DealProspecting, nil))

	mock.ExpectExec(`UPDATE leads SET converted_contact_id = \$1`).
		WithArgs(int64(10), int64(20), int64(30), "Qualified", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(leadTestColumns).AddRow(
			int64(1), "John", "Smith", "john@acme.com", "555-0100", "Acme", "CTO",
			"Qualified", int64(3), 5000.0, "met at expo", int64(7),
			int64(10), int64(20), int64(30), now,
			now, now,
			nil, nil, nil,
		))

	result, err := conv.Convert(context.Background(), 1, []string{"contact", "account", "deal"})
	require.NoError(t, err)

	require.NotNil(t, result.Converted.ContactID)
	require.NotNil(t, result.Converted.AccountID)
	require.NotNil(t, result.Converted.DealID)
	assert.Equal(t, int64(10), *result.Converted.ContactID)
	assert.Equal(t, int64(20), *result.Converted.AccountID)
	assert.Equal(t, int64(30), *result.Converted.DealID)
	assert.Equal(t, LeadQualified, result.Lead.Status)
	require.NotNil(t, result.Lead.ConvertedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertAccountNameFallsBackToLeadName(t *testing.T) {
	conv, mock := newConverter(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(leadTestColumns).AddRow(
			int64(1), "John", "Smith", "john@example.com", "555-0100", "", "",
			"New", nil, 0.0, "", int64(7),
			nil, nil, nil, nil,
			now, now,
			nil, nil, nil,
		))

	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs("John Smith", "john@example.com", "555-0100", "", "", "Customer", "", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(20)))
	mock.ExpectQuery(`SELECT (.+) FROM accounts a`).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows(accountTestColumns).AddRow(
			int64(20), "John Smith", "john@example.com", "555-0100", "", "", "Customer",
			"", int64(7), now, now,
			nil, nil,
		))

	mock.ExpectExec(`UPDATE leads SET converted_contact_id = \$1`).
		WithArgs(nil, int64(20), nil, "Qualified", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM leads l`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(leadTestColumns).AddRow(
			int64(1), "John", "Smith", "john@example.com", "555-0100", "", "",
			"Qualified", nil, 0.0, "", int64(7),
			nil, int64(20), nil, now,
			now, now,
			nil, nil, nil,
		))

	result, err := conv.Convert(context.Background(), 1, []string{"account"})
	require.NoError(t, err)
	assert.Nil(t, result.Converted.ContactID)
	require.NotNil(t, result.Converted.AccountID)
	assert.Equal(t, int64(20), *result.Converted.AccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
