package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/atinyakov/CertTrack/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps users, certificates and the folder routing in process
// memory. It enforces the same (companyId, numCert) uniqueness as the
// persistent stores.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.User
	certs   map[string]models.Certificate
	routing *models.StoredFolderRouting
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]models.User),
		certs: make(map[string]models.Certificate),
	}
}

// FindUser returns the user or models.ErrRecordNotFound.
func (m *MemoryStore) FindUser(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[username]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &u, nil
}

// FindUsers returns the existing users among usernames.
func (m *MemoryStore) FindUsers(_ context.Context, usernames []string) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.User
	seen := make(map[string]bool, len(usernames))
	for _, name := range usernames {
		if seen[name] {
			continue
		}
		seen[name] = true
		if u, ok := m.users[name]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// ListUsers returns every user ordered by username.
func (m *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// SetPassword replaces the stored credential.
func (m *MemoryStore) SetPassword(_ context.Context, username, digest string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[username]
	if !ok {
		return models.ErrRecordNotFound
	}
	u.Password = digest
	u.UpdatedAt = &at
	m.users[username] = u
	return nil
}

// CountUsers returns the number of users.
func (m *MemoryStore) CountUsers(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// UpsertUsers inserts or replaces users by username.
func (m *MemoryStore) UpsertUsers(_ context.Context, users []models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range users {
		m.users[u.Username] = u
	}
	return nil
}

// ListCertificates returns every certificate ordered by numCert.
func (m *MemoryStore) ListCertificates(_ context.Context) ([]models.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Certificate, 0, len(m.certs))
	for _, c := range m.certs {
		out = append(out, cloneCertificate(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NumCert != out[j].NumCert {
			return out[i].NumCert < out[j].NumCert
		}
		return out[i].CompanyID < out[j].CompanyID
	})
	return out, nil
}

// GetCertificate returns the certificate with the given id.
func (m *MemoryStore) GetCertificate(_ context.Context, id string) (*models.Certificate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.certs[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	c = cloneCertificate(c)
	return &c, nil
}

// InsertCertificate stores cert under a new id.
func (m *MemoryStore) InsertCertificate(_ context.Context, cert models.Certificate) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflictLocked("", cert.CompanyID, cert.NumCert) {
		return "", ErrDuplicateCertificate
	}
	cert.ID = uuid.NewString()
	m.certs[cert.ID] = cloneCertificate(cert)
	return cert.ID, nil
}

// UpsertCertificate inserts cert or replaces the one with the same
// (companyId, numCert).
func (m *MemoryStore) UpsertCertificate(_ context.Context, cert models.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range m.certs {
		if c.CompanyID == cert.CompanyID && c.NumCert == cert.NumCert {
			cert.ID = id
			m.certs[id] = cloneCertificate(cert)
			return nil
		}
	}
	cert.ID = uuid.NewString()
	m.certs[cert.ID] = cloneCertificate(cert)
	return nil
}

// UpdateCertificate applies patch to the certificate with the given id.
func (m *MemoryStore) UpdateCertificate(_ context.Context, id string, patch models.CertificatePatch) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.certs[id]
	if !ok {
		return models.ErrRecordNotFound
	}
	updated := patch.Apply(c)
	if m.conflictLocked(id, updated.CompanyID, updated.NumCert) {
		return ErrDuplicateCertificate
	}
	m.certs[id] = cloneCertificate(updated)
	return nil
}

// DeleteCertificates removes every certificate matching one of keys.
func (m *MemoryStore) DeleteCertificates(_ context.Context, keys []models.CertificateKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, c := range m.certs {
		key := models.CertificateKey{CompanyID: c.CompanyID, NumCert: c.NumCert, Serial: c.Serial}
		if slices.Contains(keys, key) {
			delete(m.certs, id)
			n++
		}
	}
	return n, nil
}

// GetFolderRouting returns the stored routing.
func (m *MemoryStore) GetFolderRouting(_ context.Context) (*models.StoredFolderRouting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.routing == nil {
		return nil, models.ErrRecordNotFound
	}
	r := *m.routing
	return &r, nil
}

// SaveFolderRouting replaces the stored routing.
func (m *MemoryStore) SaveFolderRouting(_ context.Context, routing models.FolderRouting, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.routing = &models.StoredFolderRouting{Value: routing, UpdatedAt: at}
	return nil
}

func (m *MemoryStore) conflictLocked(selfID, companyID string, numCert int) bool {
	for id, c := range m.certs {
		if id != selfID && c.CompanyID == companyID && c.NumCert == numCert {
			return true
		}
	}
	return false
}

func cloneCertificate(c models.Certificate) models.Certificate {
	c.AssignedUsernames = slices.Clone(c.AssignedUsernames)
	return c
}
