package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/authz"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/notifications"
	"github.com/meridiancrm/meridian/pkg/observability"
)

// Pre-hashed bearer tokens seeded straight into the identity cache so
// handler tests never touch the sessions table
const (
	adminToken = "mcrm_YWRtaW4"
	execToken  = "mcrm_ZXhlYw"
)

func newTestServer(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := auth.NewIdentityCache(16, time.Minute, nil, nil)
	tg := auth.NewTokenGenerator()
	cache.Set(context.Background(), tg.HashToken(adminToken), &auth.User{
		ID: 1, FirstName: "Ada", LastName: "Admin",
		Role: auth.RoleSystemAdmin, IsActive: true,
	})
	cache.Set(context.Background(), tg.HashToken(execToken), &auth.User{
		ID: 7, FirstName: "Eve", LastName: "Exec",
		Role: auth.RoleSalesExecutive, IsActive: true,
	})

	service := auth.NewService(
		auth.NewUserStore(db),
		auth.NewSessionStore(db),
		cache,
		auth.ServiceConfig{AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour, BcryptCost: 10},
	)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	auditLog := logrus.New()
	auditLog.SetOutput(io.Discard)

	leads := crm.NewLeadStore(db)
	contacts := crm.NewContactStore(db)
	accounts := crm.NewAccountStore(db)
	deals := crm.NewDealStore(db)
	notificationStore := notifications.NewStore(db)
	auditStore := audit.NewStore(db)

	server := NewServer(Config{
		Logger:        logger,
		Metrics:       observability.NewMetrics(nil),
		Policy:        authz.DefaultPolicy(),
		Auth:          service,
		Leads:         leads,
		Contacts:      contacts,
		Accounts:      accounts,
		Deals:         deals,
		Tasks:         crm.NewTaskStore(db),
		Campaigns:     crm.NewCampaignStore(db),
		Comms:         crm.NewCommunicationStore(db),
		Converter:     crm.NewConverter(leads, contacts, accounts, deals),
		Reports:       crm.NewReportStore(db),
		Org:           crm.NewOrganizationStore(db),
		Notifications: notificationStore,
		Fanout:        notifications.NewFanout(notificationStore, nil),
		AuditStore:    auditStore,
		Recorder:      audit.NewRecorder(auditStore, auditLog, nil),
	})

	return server.Handler(), mock
}

func doRequest(handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.Envelope {
	t.Helper()
	var env httputil.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func apiLeadColumns() []string {
	return []string{
		"id", "first_name", "last_name", "email", "mobile", "company", "job_title",
		"status", "source_id", "value", "notes", "assigned_to",
		"converted_contact_id", "converted_account_id", "converted_deal_id", "converted_at",
		"created_at", "updated_at",
		"assignee_first_name", "assignee_last_name", "source_name",
	}
}

func apiLeadRow(id int64, assignedTo interface{}, contactID interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(apiLeadColumns()).AddRow(
		id, "John", "Smith", "john@acme.com", "555-0100", "Acme", "CTO",
		"New", nil, 5000.0, "", assignedTo,
		contactID, nil, nil, nil,
		now, now,
		nil, nil, nil,
	)
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/nope", adminToken, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "route not found", env.Message)
}

func TestMissingTokenIsUnauthenticated(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/leads", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
}

func TestListUsersForbiddenForSalesExecutive(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/users", execToken, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "access denied")
}

func TestListLeadsScopedToOwnRecords(t *testing.T) {
	handler, mock := newTestServer(t)

	// the caller-supplied assignee filter is overridden for scoped roles
	mock.ExpectQuery(`WHERE l\.assigned_to = \$1 ORDER BY l\.created_at DESC LIMIT \$2`).
		WithArgs(int64(7), 50).
		WillReturnRows(apiLeadRow(5, int64(7), nil))

	rec := doRequest(handler, http.MethodGet, "/api/leads?assigned_to=99", execToken, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeadForbiddenWhenNotAssigned(t *testing.T) {
	handler, mock := newTestServer(t)

	mock.ExpectQuery(`WHERE l\.id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(apiLeadRow(5, int64(9), nil))

	rec := doRequest(handler, http.MethodGet, "/api/leads/5", execToken, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLeadRunsFullPipeline(t *testing.T) {
	handler, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO leads")).
		WithArgs("John", "Smith", "", "", "", "", "New", nil, 0.0, "", 7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(`WHERE l\.id = \$1`).
		WithArgs(int64(10)).
		WillReturnRows(apiLeadRow(10, int64(7), nil))

	// explicit assignee differs from the actor, so fan-out fires
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs(int64(7), "Lead Assignment", "New Lead Assigned",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "High").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(int64(1), "CREATE", "Lead", int64(10),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	rec := doRequest(handler, http.MethodPost, "/api/leads", adminToken,
		`{"first_name":"John","last_name":"Smith","assigned_to":7}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Lead created successfully", env.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLeadRequiresName(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doRequest(handler, http.MethodPost, "/api/leads", adminToken, `{"first_name":"John"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "last_name is required")
}

func TestConvertLeadAlreadyConverted(t *testing.T) {
	handler, mock := newTestServer(t)

	// ownership check load, then the converter's own load
	mock.ExpectQuery(`WHERE l\.id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(apiLeadRow(5, int64(7), int64(20)))
	mock.ExpectQuery(`WHERE l\.id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(apiLeadRow(5, int64(7), int64(20)))

	rec := doRequest(handler, http.MethodPost, "/api/leads/5/convert", execToken,
		`{"convertTo":["contact"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "lead already converted", env.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNotificationsIncludesUnreadCount(t *testing.T) {
	handler, mock := newTestServer(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE user_id = $1")).
		WithArgs(int64(7), 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "type", "title", "message", "is_read", "read_at",
			"related_kind", "related_id", "priority", "created_at",
		}).AddRow(3, 7, "Lead Assignment", "New Lead Assigned", "hi", false, nil, "lead", 5, "High", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rec := doRequest(handler, http.MethodGet, "/api/notifications", execToken, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["unread_count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogsAdminOnly(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/audit-logs", execToken, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuditExportWritesCSV(t *testing.T) {
	handler, mock := newTestServer(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "action", "entity_type", "entity_id", "details",
			"ip_address", "user_agent", "created_at",
		}).AddRow(1, 1, "CREATE", "Lead", 10, []byte(`{}`), "10.0.0.1", "curl", now))
	// the EXPORT audit entry itself
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(int64(1), "EXPORT", "AuditLog", nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(2, now))

	rec := doRequest(handler, http.MethodGet, "/api/audit-logs/export?format=csv", adminToken, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,user_id,action,entity_type,entity_id,details,ip_address,user_agent,created_at", lines[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDealStageNotifiesAssignee(t *testing.T) {
	handler, mock := newTestServer(t)

	now := time.Now()
	dealColumns := []string{
		"id", "name", "account_id", "contact_id", "stage", "value", "currency",
		"expected_close_date", "closed_at", "probability", "source_id", "assigned_to",
		"created_at", "updated_at",
		"assignee_first_name", "assignee_last_name", "account_name",
		"contact_first_name", "contact_last_name", "source_name",
	}
	dealRow := func(stage string) *sqlmock.Rows {
		return sqlmock.NewRows(dealColumns).AddRow(
			4, "Big Deal", nil, nil, stage, 9000.0, "USD",
			nil, nil, 0, nil, int64(7),
			now, now,
			nil, nil, nil, nil, nil, nil,
		)
	}

	// admin actor; assignee 7 gets the stage-change notification
	mock.ExpectQuery(`WHERE d\.id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(dealRow("Prospecting"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE deals SET stage = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs("Proposal", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`WHERE d\.id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(dealRow("Proposal"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs(int64(7), "Deal Stage Change", "Deal Stage Updated",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "High").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(int64(1), "UPDATE", "Deal", int64(4),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, now))

	rec := doRequest(handler, http.MethodPut, "/api/deals/4", adminToken, `{"stage":"Proposal"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Deal updated successfully", env.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalesReportScopedToOwnDeals(t *testing.T) {
	handler, mock := newTestServer(t)

	// a Sales Executive's report covers only their own deals
	mock.ExpectQuery(`FROM deals d WHERE d\.assigned_to = \$1 GROUP BY d\.stage`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"stage", "count", "value"}).
			AddRow("Prospecting", 2, 1000.0).
			AddRow("Closed Won", 1, 500.0).
			AddRow("Closed Lost", 1, 100.0))

	rec := doRequest(handler, http.MethodGet, "/api/reports/sales", execToken, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	summary, ok := data["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), summary["total_deals"])
	assert.Equal(t, float64(1), summary["won_deals"])
	assert.Equal(t, float64(25), summary["win_rate"])
	assert.Equal(t, float64(1600), summary["total_value"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductivityReportForbiddenForSalesExecutive(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/reports/productivity", execToken, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCampaignReportForbiddenForSalesExecutive(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/reports/campaigns", execToken, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func apiOrganizationRow(name string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "company_name", "company_email", "company_phone", "address",
		"currency", "timezone", "working_hours", "holidays", "logo", "website",
		"created_at", "updated_at",
	}).AddRow(
		1, name, "admin@crm.com", "", []byte(`{}`),
		"USD", "UTC", []byte(`{"start":"09:00","end":"17:00","days":["Monday"]}`), []byte(`[]`),
		"", "", now, now,
	)
}

func TestUpdateOrganizationForbiddenForSalesExecutive(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doRequest(handler, http.MethodPut, "/api/organization", execToken,
		`{"company_name":"Meridian Inc"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateOrganizationRecordsAudit(t *testing.T) {
	handler, mock := newTestServer(t)

	mock.ExpectQuery(`FROM organization ORDER BY id LIMIT 1`).
		WillReturnRows(apiOrganizationRow("CRM Organization"))
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE organization SET company_name = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs("Meridian Inc", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM organization ORDER BY id LIMIT 1`).
		WillReturnRows(apiOrganizationRow("Meridian Inc"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(int64(1), "UPDATE", "Organization", int64(1),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	rec := doRequest(handler, http.MethodPut, "/api/organization", adminToken,
		`{"company_name":"Meridian Inc"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Organization updated successfully", env.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateEmailIsBadRequest(t *testing.T) {
	handler, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	rec := doRequest(handler, http.MethodPost, "/api/auth/register",
		"", `{"first_name":"John","last_name":"Smith","email":"john@acme.com","mobile":"555-0100","password":"hunter22"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}
