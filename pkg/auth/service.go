package auth

import (
	"context"
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
)

// ServiceConfig holds token lifetimes and hashing cost
type ServiceConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// Service implements identity resolution, sessions, and the user
// management surface
type Service struct {
	users    *UserStore
	sessions *SessionStore
	tokens   *TokenGenerator
	cache    *IdentityCache
	config   ServiceConfig
}

// NewService creates the auth service
func NewService(users *UserStore, sessions *SessionStore, cache *IdentityCache, config ServiceConfig) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   NewTokenGenerator(),
		cache:    cache,
		config:   config,
	}
}

// RegisterRequest carries self-registration input
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Mobile    string `json:"mobile"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (r *RegisterRequest) validate() error {
	switch {
	case r.FirstName == "":
		return apperr.InvalidInput("first_name is required")
	case r.LastName == "":
		return apperr.InvalidInput("last_name is required")
	case r.Email == "":
		return apperr.InvalidInput("email is required")
	case r.Mobile == "":
		return apperr.InvalidInput("mobile is required")
	case r.Password == "":
		return apperr.InvalidInput("password is required")
	}
	return nil
}

// Register creates a new account. The role defaults to Sales Executive
// when omitted.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	role := RoleSalesExecutive
	if req.Role != "" {
		parsed, err := ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		role = parsed
	}

	hash, err := HashPassword(req.Password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Mobile:       req.Mobile,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates by email or mobile plus password and issues a
// token pair. Missing users and wrong passwords are indistinguishable
// to the caller.
func (s *Service) Login(ctx context.Context, identifier, password string) (*User, *TokenPair, error) {
	if identifier == "" || password == "" {
		return nil, nil, apperr.InvalidInput("identifier and password are required")
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil, apperr.Unauthenticated("invalid credentials")
		}
		return nil, nil, err
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, nil, apperr.Unauthenticated("invalid credentials")
	}
	if !user.IsActive {
		return nil, nil, apperr.Forbidden("account is disabled")
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, nil, err
	}
	now := time.Now()
	user.LastLogin = &now

	return user, pair, nil
}

func (s *Service) issuePair(ctx context.Context, userID int64) (*TokenPair, error) {
	accessToken, accessHash, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, err
	}
	refreshToken, refreshHash, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pair := &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(s.config.AccessTokenTTL),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.config.RefreshTokenTTL),
	}

	if err := s.sessions.Create(ctx, &Session{
		UserID:    userID,
		TokenHash: accessHash,
		Kind:      SessionAccess,
		ExpiresAt: pair.AccessExpiresAt,
	}); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, &Session{
		UserID:    userID,
		TokenHash: refreshHash,
		Kind:      SessionRefresh,
		ExpiresAt: pair.RefreshExpiresAt,
	}); err != nil {
		return nil, err
	}

	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := s.tokens.ValidateTokenFormat(refreshToken); err != nil {
		return nil, err
	}

	hash := s.tokens.HashToken(refreshToken)
	sess, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if sess.Kind != SessionRefresh || !sess.Valid(time.Now()) {
		return nil, apperr.Unauthenticated("invalid token")
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is disabled")
	}

	if err := s.sessions.Revoke(ctx, hash); err != nil {
		return nil, err
	}

	return s.issuePair(ctx, user.ID)
}

// Logout revokes the presented token pair
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		hash := s.tokens.HashToken(accessToken)
		if err := s.sessions.Revoke(ctx, hash); err != nil {
			return err
		}
		s.cache.Invalidate(ctx, hash)
	}
	if refreshToken != "" {
		if err := s.sessions.Revoke(ctx, s.tokens.HashToken(refreshToken)); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate resolves a bearer token to its user. Resolution order is
// in-process cache, Redis, then PostgreSQL.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("authentication required")
	}
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil, err
	}

	hash := s.tokens.HashToken(token)

	if user, ok := s.cache.Get(ctx, hash); ok {
		if !user.IsActive {
			return nil, apperr.Forbidden("account is disabled")
		}
		return user, nil
	}

	sess, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if sess.Kind != SessionAccess || !sess.Valid(time.Now()) {
		return nil, apperr.Unauthenticated("invalid token")
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is disabled")
	}

	s.cache.Set(ctx, hash, user)
	return user, nil
}

// ListUsers returns users matching the filter
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]*User, error) {
	return s.users.List(ctx, filter)
}

// GetUser fetches a single user
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUser creates a user through the admin surface
func (s *Service) CreateUser(ctx context.Context, req RegisterRequest) (*User, error) {
	return s.Register(ctx, req)
}

// UpdateUser applies a partial update. Role and active-status changes
// are silently dropped unless the actor is a System Admin; an updated
// password is hashed before storage.
func (s *Service) UpdateUser(ctx context.Context, actor *User, id int64, update UserUpdate) (*User, error) {
	if actor.Role != RoleSystemAdmin {
		update.Role = nil
		update.IsActive = nil
	}

	if update.Role != nil {
		if _, err := ParseRole(string(*update.Role)); err != nil {
			return nil, err
		}
	}

	if update.Password != nil {
		hash, err := HashPassword(*update.Password, s.config.BcryptCost)
		if err != nil {
			return nil, err
		}
		update.Password = &hash
	}

	user, err := s.users.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}

	// A changed role or active flag must not be served stale
	if update.Role != nil || update.IsActive != nil {
		s.cache.Purge()
	}

	return user, nil
}

// DeleteUser removes a user. Self-deletion is rejected.
func (s *Service) DeleteUser(ctx context.Context, actor *User, id int64) (*User, error) {
	if actor.ID == id {
		return nil, apperr.InvalidOperation("cannot delete your own account")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return nil, err
	}
	if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
		return nil, err
	}
	s.cache.Purge()

	return user, nil
}
