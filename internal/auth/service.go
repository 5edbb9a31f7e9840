package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/branchline/accounts/internal/identity"
	"github.com/branchline/accounts/internal/metrics"
	"github.com/branchline/accounts/internal/notification"
	"github.com/branchline/accounts/internal/validation"
)

// ServiceDeps are the collaborators of Service. Notifier and Metrics are
// optional.
type ServiceDeps struct {
	Users     identity.Repository
	Hasher    *PasswordHasher
	Tokens    *Tokens
	Sessions  SessionStore
	Notifier  notification.Notifier
	Validator *validation.Validator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Service implements registration, login, logout and token refresh.
type Service struct {
	ServiceDeps

	decoyHash []byte
}

// NewService wires an auth service.
func NewService(deps ServiceDeps) *Service {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Service{ServiceDeps: deps}
	if hash, err := deps.Hasher.Hash(uuid.NewString()); err == nil {
		s.decoyHash = hash
	} else {
		deps.Logger.Warn("decoy hash unavailable, unknown emails will hash instead", slog.Any("error", err))
	}
	return s
}

// RegistrationInput is the body of a registration request.
type RegistrationInput struct {
	FirstName string `json:"firstname" validate:"required"`
	LastName  string `json:"lastname" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the result of a successful login.
type Session struct {
	User          identity.User
	AccessToken   string
	RefreshToken  string
	RefreshClaims *Claims
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, in RegistrationInput) (identity.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = identity.NormalizeEmail(in.Email)
	if err := s.Validator.Struct(in); err != nil {
		s.Metrics.AuthEvent("register", "invalid")
		return identity.User{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if _, err := s.Users.FindByEmail(ctx, in.Email); err == nil {
		s.Metrics.AuthEvent("register", "duplicate")
		return identity.User{}, ErrDuplicate
	} else if !errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		s.Metrics.AuthEvent("register", "invalid")
		return identity.User{}, err
	}

	now := time.Now().UTC()
	user := identity.User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         identity.RoleCustomer,
		Status:       identity.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, identity.ErrDuplicateEmail) {
			s.Metrics.AuthEvent("register", "duplicate")
			return identity.User{}, ErrDuplicate
		}
		s.Metrics.AuthEvent("register", "error")
		s.Logger.ErrorContext(ctx, "create user failed", slog.String("email", user.Email), slog.Any("error", err))
		return identity.User{}, fmt.Errorf("%w: %w", ErrCreation, err)
	}
	s.Metrics.AuthEvent("register", "created")

	if s.Notifier != nil {
		msg := notification.Message{
			Kind:        notification.KindAccountRegistered,
			Destination: user.Email,
			Body:        fmt.Sprintf("Welcome %s, your account is ready.", user.FirstName),
		}
		if err := s.Notifier.Send(ctx, msg); err != nil {
			s.Logger.WarnContext(ctx, "registration notice failed", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}
	return user, nil
}

// Login checks credentials and issues an access and refresh token pair. An
// unknown email and a wrong password fail identically.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	in.Email = identity.NormalizeEmail(in.Email)
	if err := s.Validator.Struct(in); err != nil {
		s.Metrics.AuthEvent("login", "invalid")
		return Session{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	user, err := s.Users.FindByEmail(ctx, in.Email)
	if errors.Is(err, identity.ErrNotFound) {
		s.spendDecoy(in.Password)
		s.Metrics.AuthEvent("login", "invalid_credentials")
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup email: %w", err)
	}
	if !s.Hasher.Match(user, in.Password) {
		s.Metrics.AuthEvent("login", "invalid_credentials")
		return Session{}, ErrInvalidCredentials
	}
	if user.Status != identity.StatusActive {
		s.Metrics.AuthEvent("login", "inactive")
		return Session{}, ErrAccountInactive
	}

	access, _, err := s.Tokens.IssueAccess(user)
	if err != nil {
		return Session{}, err
	}
	refresh, refreshClaims, err := s.Tokens.IssueRefresh(user)
	if err != nil {
		return Session{}, err
	}
	if err := s.Sessions.Save(ctx, refreshClaims.ID, user.ID, s.Tokens.RefreshTTL()); err != nil {
		return Session{}, err
	}

	s.Metrics.AuthEvent("login", "success")
	s.Logger.InfoContext(ctx, "login succeeded", slog.String("user_id", user.ID))
	return Session{User: user, AccessToken: access, RefreshToken: refresh, RefreshClaims: refreshClaims}, nil
}

// Logout revokes the session behind refreshToken. ErrNoSession means there
// was nothing to log out. A token that no longer verifies is not an error;
// the caller still clears the cookie.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrNoSession
	}
	claims, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.Logger.DebugContext(ctx, "logout with unverifiable refresh token", slog.Any("error", err))
		s.Metrics.AuthEvent("logout", "stale")
		return nil
	}
	if _, err := s.Sessions.Revoke(ctx, claims.ID); err != nil {
		s.Logger.WarnContext(ctx, "revoke refresh session failed", slog.String("user_id", claims.Subject), slog.Any("error", err))
	}
	s.Metrics.AuthEvent("logout", "revoked")
	return nil
}

// Refresh exchanges a live refresh token for a new access token. The role is
// read from the store so role changes take effect on the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrUnauthenticated
	}
	claims, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.Logger.DebugContext(ctx, "refresh token rejected", slog.Any("error", err))
		s.Metrics.AuthEvent("refresh", "invalid")
		return "", ErrTokenInvalid
	}
	active, err := s.Sessions.Active(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if !active {
		s.Metrics.AuthEvent("refresh", "revoked")
		return "", ErrTokenInvalid
	}

	user, err := s.Users.FindByID(ctx, claims.Subject)
	if errors.Is(err, identity.ErrNotFound) || errors.Is(err, identity.ErrInvalidID) {
		s.Metrics.AuthEvent("refresh", "invalid")
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user.Status != identity.StatusActive {
		s.Metrics.AuthEvent("refresh", "inactive")
		return "", ErrTokenInvalid
	}

	access, _, err := s.Tokens.IssueAccess(user)
	if err != nil {
		return "", err
	}
	s.Metrics.AuthEvent("refresh", "success")
	return access, nil
}

// spendDecoy performs one bcrypt operation so an unknown email costs the
// same as a wrong password.
func (s *Service) spendDecoy(password string) {
	if len(s.decoyHash) > 0 {
		s.Hasher.Verify(password, s.decoyHash)
		return
	}
	_, _ = s.Hasher.Hash(password)
}
