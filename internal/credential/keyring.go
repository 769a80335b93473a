package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/campus-client/internal/model"
)

const serviceName = "campus"

// itemKey is the single keyring entry holding the credential record.
// Token and identity live in one JSON blob so they are written and
// removed together; a partial credential cannot be persisted.
const itemKey = "campus-credential"

// ErrNotFound is returned by Load when no credential is persisted.
var ErrNotFound = errors.New("no stored credential")

// Store persists the current credential in the system keyring, falling
// back to an encrypted file backend when no OS keyring is available.
type Store struct {
	fileDir  string
	backends []keyring.BackendType
}

// NewStore creates a credential store. fileDir is the directory used by
// the file backend fallback; empty selects the default config location.
func NewStore(fileDir string) *Store {
	if fileDir == "" {
		fileDir = "~/.config/campus/credentials"
	}
	return &Store{
		fileDir: fileDir,
		backends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
	}
}

// openKeyring returns a configured keyring instance.
func (s *Store) openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          s.backends,
		FileDir:                  s.fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("campus-file-key"),
		KeychainTrustApplication: true,
	})

	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Save stores the credential, replacing any previous record.
func (s *Store) Save(cred model.Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("refusing to persist partial credential")
	}

	ring, err := s.openKeyring()
	if err != nil {
		return err
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	err = ring.Set(keyring.Item{
		Key:  itemKey,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}

	return nil
}

// Load retrieves the persisted credential. Returns ErrNotFound when no
// record exists, and clears a corrupt or partial record rather than
// returning it.
func (s *Store) Load() (model.Credential, error) {
	ring, err := s.openKeyring()
	if err != nil {
		return model.Credential{}, err
	}

	item, err := ring.Get(itemKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return model.Credential{}, ErrNotFound
		}
		return model.Credential{}, fmt.Errorf("loading credential: %w", err)
	}

	var cred model.Credential
	if err := json.Unmarshal(item.Data, &cred); err != nil || !cred.Valid() {
		_ = ring.Remove(itemKey)
		return model.Credential{}, ErrNotFound
	}

	return cred, nil
}

// Clear removes the persisted credential. Idempotent.
func (s *Store) Clear() error {
	ring, err := s.openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(itemKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("clearing credential: %w", err)
	}

	return nil
}
