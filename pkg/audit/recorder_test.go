package audit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/observability"
)

func newTestRecorder(t *testing.T) (*Recorder, sqlmock.Sqlmock, *observability.Metrics) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewRecorder(NewStore(db), log, metrics), mock, metrics
}

func TestRecorderRecord(t *testing.T) {
	rec, mock, metrics := newTestRecorder(t)
	actor := &auth.User{ID: 7, Role: auth.RoleSalesManager}

	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WithArgs(int64(7), "CREATE", "Lead", int64(5), sqlmock.AnyArg(), "10.0.0.1", "curl/8").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	rec.Record(context.Background(), Event{
		Actor:      actor,
		Action:     ActionCreate,
		EntityType: EntityLead,
		EntityID:   5,
		Details:    NewCreateDetails(map[string]interface{}{"email": "lead@example.com"}),
		IPAddress:  "10.0.0.1",
		UserAgent:  "curl/8",
	})

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.AuditEventsTotal.WithLabelValues("CREATE", "Lead")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AuditFailuresTotal))
}

func TestRecorderSwallowsWriteFailure(t *testing.T) {
	rec, mock, metrics := newTestRecorder(t)
	actor := &auth.User{ID: 7, Role: auth.RoleSalesManager}

	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WillReturnError(assert.AnError)

	// must not panic or propagate; the mutation already committed
	rec.Record(context.Background(), Event{
		Actor:      actor,
		Action:     ActionDelete,
		EntityType: EntityContact,
		EntityID:   3,
		Details:    NewDeleteDetails("jane@example.com"),
	})

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditFailuresTotal))
	assert.Equal(t, 0.0,
		testutil.ToFloat64(metrics.AuditEventsTotal.WithLabelValues("DELETE", "Contact")))
}

func TestRecorderOmitsZeroEntityID(t *testing.T) {
	rec, mock, _ := newTestRecorder(t)
	actor := &auth.User{ID: 7, Role: auth.RoleSystemAdmin}

	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WithArgs(int64(7), "EXPORT", "User", nil, sqlmock.AnyArg(), nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	rec.Record(context.Background(), Event{
		Actor:      actor,
		Action:     ActionExport,
		EntityType: EntityUser,
		Details:    map[string]interface{}{"format": "csv"},
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
