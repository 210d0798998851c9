package auth

import (
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// Role represents a user's fixed role
type Role string

const (
	RoleSystemAdmin        Role = "System Admin"
	RoleSalesManager       Role = "Sales Manager"
	RoleSalesExecutive     Role = "Sales Executive"
	RoleMarketingExecutive Role = "Marketing Executive"
	RoleSupportExecutive   Role = "Support Executive"
	RoleCustomer           Role = "Customer"
)

// Roles lists every valid role
func Roles() []Role {
	return []Role{
		RoleSystemAdmin,
		RoleSalesManager,
		RoleSalesExecutive,
		RoleMarketingExecutive,
		RoleSupportExecutive,
		RoleCustomer,
	}
}

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", apperr.InvalidInput("invalid role: %s", s)
}

// User represents an identity. The password hash is never serialized.
type User struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	Mobile       string     `json:"mobile"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FullName returns the user's display name
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// SessionKind distinguishes access from refresh sessions
type SessionKind string

const (
	SessionAccess  SessionKind = "access"
	SessionRefresh SessionKind = "refresh"
)

// Session is a stored token record. Only the SHA-256 hash of the opaque
// token is persisted.
type Session struct {
	ID        int64
	UserID    int64
	TokenHash string
	Kind      SessionKind
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Valid reports whether the session is usable at the given instant
func (s *Session) Valid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// TokenPair is returned from login and refresh. The plaintext tokens
// appear here exactly once and are never stored.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// UserFilter narrows user listing
type UserFilter struct {
	Role     *Role
	IsActive *bool
	Search   string
	Limit    int
	Offset   int
}

// UserUpdate carries partial-update fields; nil means unchanged
type UserUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Mobile    *string `json:"mobile"`
	Password  *string `json:"password"`
	Role      *Role   `json:"role"`
	IsActive  *bool   `json:"is_active"`
}
