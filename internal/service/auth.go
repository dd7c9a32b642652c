// Package service provides authentication, certificate and folder routing
// business logic, delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atinyakov/CertTrack/internal/apperr"
	"github.com/atinyakov/CertTrack/internal/models"
	"go.uber.org/zap"
)

// MinPasswordLength is enforced by ChangePassword.
const MinPasswordLength = 4

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// FindUser returns the user or models.ErrRecordNotFound.
	FindUser(ctx context.Context, username string) (*models.User, error)
	// FindUsers returns the existing users among usernames.
	FindUsers(ctx context.Context, usernames []string) ([]models.User, error)
	// ListUsers returns every user.
	ListUsers(ctx context.Context) ([]models.User, error)
	// SetPassword stores a new credential digest, or returns
	// models.ErrRecordNotFound.
	SetPassword(ctx context.Context, username, digest string, at time.Time) error
}

// Hasher is the opaque one-way credential primitive.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// AuthService implements login and password management.
type AuthService struct {
	repo   UserRepository
	hasher Hasher
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs a new AuthService using the provided repository
// and hasher.
func NewAuthService(repo UserRepository, hasher Hasher, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{repo: repo, hasher: hasher, log: log, now: time.Now}
}

// Login checks username and password. An unknown username and a wrong
// password are reported as different errors.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Claims, error) {
	if username == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}

	user, err := s.repo.FindUser(ctx, username)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, apperr.NotFound("user does not exist")
	}
	if err != nil {
		return nil, apperr.Internal("could not load user", err)
	}

	if !verifyCredential(s.hasher, user.Password, password) {
		return nil, apperr.Auth("wrong password")
	}

	return &models.Claims{Username: user.Username, Role: user.Role, CompanyID: user.CompanyID}, nil
}

// ListUsers returns every user; the credential field is never serialized.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Internal("could not list users", err)
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

// ChangePassword stores a freshly hashed password for username. The new
// password must have at least MinPasswordLength characters.
func (s *AuthService) ChangePassword(ctx context.Context, username, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("new password must be at least %d characters", MinPasswordLength))
	}
	return s.setPassword(ctx, username, newPassword)
}

// ResetPassword is the older variant of ChangePassword that only requires a
// non-empty password.
func (s *AuthService) ResetPassword(ctx context.Context, username, newPassword string) error {
	if username == "" || newPassword == "" {
		return apperr.Validation("username and newPassword are required")
	}
	return s.setPassword(ctx, username, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, username, newPassword string) error {
	if _, err := s.repo.FindUser(ctx, username); err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return apperr.NotFound("user does not exist")
		}
		return apperr.Internal("could not load user", err)
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal("could not hash password", err)
	}

	err = s.repo.SetPassword(ctx, username, digest, s.now().UTC())
	if errors.Is(err, models.ErrRecordNotFound) {
		return apperr.NotFound("user does not exist")
	}
	if err != nil {
		return apperr.Internal("could not update password", err)
	}

	s.log.Info("password changed", zap.String("username", username))
	return nil
}

// verifyCredential compares a login attempt with the stored credential.
// Accounts created before passwords were hashed still hold plain text; they
// are compared directly until an admin resets them.
// TODO: drop the plain-text branch once every user record holds a bcrypt digest.
func verifyCredential(h Hasher, stored, given string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") {
		return h.Verify(given, stored)
	}
	return stored != "" && stored == given
}
