package auth

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(
		NewUserStore(db),
		NewSessionStore(db),
		NewIdentityCache(16, time.Minute, nil, nil),
		ServiceConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 168 * time.Hour,
			BcryptCost:      bcrypt.MinCost,
		},
	)
	return svc, mock, db
}

func TestLoginWrongPassword(t *testing.T) {
	svc, mock, _ := newTestService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("real-password"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery("SELECT .* FROM users WHERE email").
		WithArgs("ava@example.com").
		WillReturnRows(userRows().AddRow(
			int64(1), "Ava", "Stone", "ava@example.com", "5550100",
			string(hash), RoleSalesExecutive, true, nil, now, now))

	_, _, err = svc.Login(context.Background(), "ava@example.com", "wrong-password")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestLoginUnknownUserMasksNotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT .* FROM users WHERE email").
		WithArgs("ghost@example.com").
		WillReturnRows(userRows())

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestLoginDisabledAccount(t *testing.T) {
	svc, mock, _ := newTestService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("real-password"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery("SELECT .* FROM users WHERE email").
		WithArgs("ava@example.com").
		WillReturnRows(userRows().AddRow(
			int64(1), "Ava", "Stone", "ava@example.com", "5550100",
			string(hash), RoleSalesExecutive, false, nil, now, now))

	_, _, err = svc.Login(context.Background(), "ava@example.com", "real-password")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestAuthenticateUsesCacheAndRejectsInactive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	token, hash, err := svc.tokens.GenerateToken()
	require.NoError(t, err)

	svc.cache.Set(ctx, hash, &User{ID: 9, Role: RoleSalesExecutive, IsActive: true})

	// No sqlmock expectations set: the lookup must be served from cache
	user, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)

	svc.cache.Set(ctx, hash, &User{ID: 9, Role: RoleSalesExecutive, IsActive: false})
	_, err = svc.Authenticate(ctx, token)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestAuthenticateMalformedToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "not-a-token")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	_, err = svc.Authenticate(context.Background(), "")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, mock, _ := newTestService(t)

	token, hash, err := svc.tokens.GenerateToken()
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM sessions WHERE token_hash").
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "token_hash", "kind", "expires_at", "revoked_at", "created_at",
		}).AddRow(int64(1), int64(9), hash, SessionAccess, now.Add(-time.Minute), nil, now.Add(-time.Hour)))

	_, err = svc.Authenticate(context.Background(), token)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestUpdateUserDropsPrivilegedFieldsForNonAdmin(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now()

	actor := &User{ID: 2, Role: RoleSalesManager}
	role := RoleSystemAdmin
	inactive := false
	first := "Renamed"

	// Only first_name may reach the store; role and is_active must be gone
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET first_name = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs("Renamed", int64(5)).
		WillReturnRows(userRows().AddRow(
			int64(5), "Renamed", "Stone", "ava@example.com", "5550100",
			"hash", RoleSalesExecutive, true, nil, now, now))

	user, err := svc.UpdateUser(context.Background(), actor, 5, UserUpdate{
		FirstName: &first,
		Role:      &role,
		IsActive:  &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, RoleSalesExecutive, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserAdminChangesRole(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now()

	actor := &User{ID: 1, Role: RoleSystemAdmin}
	role := RoleSalesManager

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(role, int64(5)).
		WillReturnRows(userRows().AddRow(
			int64(5), "Ava", "Stone", "ava@example.com", "5550100",
			"hash", role, true, nil, now, now))

	user, err := svc.UpdateUser(context.Background(), actor, 5, UserUpdate{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, RoleSalesManager, user.Role)
}

func TestDeleteUserSelf(t *testing.T) {
	svc, _, _ := newTestService(t)

	actor := &User{ID: 3, Role: RoleSystemAdmin}
	_, err := svc.DeleteUser(context.Background(), actor, 3)
	assert.Equal(t, apperr.KindInvalidOperation, apperr.KindOf(err))
}

func TestRegisterDefaultsRole(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Ava", "Stone", "ava@example.com", "5550100", sqlmock.AnyArg(), RoleSalesExecutive, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(1), now, now))

	user, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ava",
		LastName:  "Stone",
		Email:     "ava@example.com",
		Mobile:    "5550100",
		Password:  "long-enough-password",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleSalesExecutive, user.Role)
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ava",
		LastName:  "Stone",
		Email:     "ava@example.com",
		Mobile:    "5550100",
		Password:  "long-enough-password",
		Role:      "Emperor",
	})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}
