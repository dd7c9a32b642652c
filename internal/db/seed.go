package db

import (
	"context"
	"fmt"
	"time"

	"github.com/atinyakov/CertTrack/internal/models"
	"go.uber.org/zap"
)

// Seeder is implemented by every record store.
type Seeder interface {
	CountUsers(ctx context.Context) (int64, error)
	UpsertUsers(ctx context.Context, users []models.User) error
	UpsertCertificate(ctx context.Context, cert models.Certificate) error
}

// Hasher turns the seed passwords into stored digests.
type Hasher interface {
	Hash(secret string) (string, error)
}

type seedUser struct {
	username, password, companyID string
	role                          models.Role
}

var defaultUsers = []seedUser{
	{"admin", "admin123", "FARES", models.RoleAdmin},
	{"surgas", "1234", "SURGAS", models.RoleUser},
	{"surgas.compras", "1234", "SURGAS", models.RoleUser},
	{"surgas.logistica", "1234", "SURGAS", models.RoleUser},
	{"chilco", "1234", "CHILCO", models.RoleUser},
}

// DefaultUsers returns the initial accounts with hashed passwords.
func DefaultUsers(h Hasher) ([]models.User, error) {
	users := make([]models.User, 0, len(defaultUsers))
	for _, u := range defaultUsers {
		digest, err := h.Hash(u.password)
		if err != nil {
			return nil, fmt.Errorf("hash password of %s: %w", u.username, err)
		}
		users = append(users, models.User{
			Username:  u.username,
			Password:  digest,
			Role:      u.role,
			CompanyID: u.companyID,
		})
	}
	return users, nil
}

// SampleCertificates returns demo certificates dated relative to now.
func SampleCertificates(now time.Time) []models.Certificate {
	day := 24 * time.Hour
	return []models.Certificate{
		{
			NumCert: 1001, Serial: "A1B2C3", UploadDate: now, Result: models.ResultCompliant,
			CompanyID: "SURGAS", AssignedUsernames: []string{"surgas", "surgas.compras"},
			Links: models.DefaultLinks(),
		},
		{
			NumCert: 1002, Serial: "Z9Y8X7", UploadDate: now.Add(-2 * day), Result: models.ResultNonCompliant,
			CompanyID: "SURGAS", AssignedUsernames: []string{"surgas.logistica"},
			Links: models.DefaultLinks(),
		},
		{
			NumCert: 1003, Serial: "QW12ER", UploadDate: now.Add(-4 * day), Result: models.ResultCompliant,
			CompanyID: "CHILCO", AssignedUsernames: []string{"chilco"},
			Links: models.DefaultLinks(),
		},
	}
}

// SeedUsersIfEmpty inserts the default users when the store has none.
func SeedUsersIfEmpty(ctx context.Context, s Seeder, h Hasher, log *zap.Logger) error {
	n, err := s.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	users, err := DefaultUsers(h)
	if err != nil {
		return err
	}
	if err := s.UpsertUsers(ctx, users); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	log.Info("seeded default users", zap.Int("count", len(users)))
	return nil
}

// Seed upserts the default users and, when withCertificates is set, the
// sample certificates. It is idempotent.
func Seed(ctx context.Context, s Seeder, h Hasher, withCertificates bool, now time.Time) error {
	users, err := DefaultUsers(h)
	if err != nil {
		return err
	}
	if err := s.UpsertUsers(ctx, users); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if !withCertificates {
		return nil
	}
	for _, c := range SampleCertificates(now.UTC().Truncate(time.Millisecond)) {
		if err := s.UpsertCertificate(ctx, c); err != nil {
			return fmt.Errorf("seed certificate %d: %w", c.NumCert, err)
		}
	}
	return nil
}
