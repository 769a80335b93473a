package testutil

import (
	"sync"

	"github.com/nhle/campus-client/internal/credential"
	"github.com/nhle/campus-client/internal/model"
)

// MemCredentials is an in-memory credential persistence fake. It
// records every state the persisted record passes through so tests
// can assert the record is never partial.
type MemCredentials struct {
	mu       sync.Mutex
	cred     *model.Credential
	observed []model.Credential
}

// NewMemCredentials creates an empty in-memory credential store.
func NewMemCredentials() *MemCredentials {
	return &MemCredentials{}
}

// Seed sets the stored credential without recording an observation,
// simulating a record left by a previous process.
func (m *MemCredentials) Seed(cred model.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = &cred
}

// Save stores the credential as a unit.
func (m *MemCredentials) Save(cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = &cred
	m.observed = append(m.observed, cred)
	return nil
}

// Load returns the stored credential or credential.ErrNotFound.
func (m *MemCredentials) Load() (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return model.Credential{}, credential.ErrNotFound
	}
	return *m.cred, nil
}

// Clear removes the stored credential.
func (m *MemCredentials) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

// Stored returns the current record, or false when none is stored.
func (m *MemCredentials) Stored() (model.Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return model.Credential{}, false
	}
	return *m.cred, true
}

// Observed returns every record ever written, in order.
func (m *MemCredentials) Observed() []model.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Credential, len(m.observed))
	copy(out, m.observed)
	return out
}
