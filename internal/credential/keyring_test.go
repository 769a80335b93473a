package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/campus-client/internal/model"
)

// newTestStore pins the encrypted file backend so tests do not depend
// on a desktop keyring being present.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := NewStore(t.TempDir())
	s.backends = []keyring.BackendType{keyring.FileBackend}
	return s
}

func testCredential() model.Credential {
	return model.Credential{
		Token: "token-abc",
		Subject: model.Subject{
			ID:   7,
			Name: "Ana",
			Role: model.RoleStudent,
		},
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	s := newTestStore(t)

	want := testCredential()
	if err := s.Save(want); err != nil {
		t.Fatalf("saving credential: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("loading credential: %v", err)
	}
	if got != want {
		t.Errorf("loaded credential = %+v, want %+v", got, want)
	}
}

func TestSaveReplacesPrevious(t *testing.T) {
	s := newTestStore(t)

	first := testCredential()
	if err := s.Save(first); err != nil {
		t.Fatalf("saving first credential: %v", err)
	}

	second := first
	second.Token = "token-def"
	second.Subject.Name = "Ben"
	if err := s.Save(second); err != nil {
		t.Fatalf("saving second credential: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("loading credential: %v", err)
	}
	if got != second {
		t.Errorf("loaded credential = %+v, want the replacement %+v", got, second)
	}
}

func TestSaveRejectsPartialCredential(t *testing.T) {
	s := newTestStore(t)

	cases := []struct {
		name string
		cred model.Credential
	}{
		{"missing token", model.Credential{Subject: model.Subject{ID: 7, Name: "Ana", Role: model.RoleStudent}}},
		{"missing identity", model.Credential{Token: "token-abc"}},
		{"empty", model.Credential{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Save(tc.cred); err == nil {
				t.Error("Save accepted a partial credential")
			}
		})
	}

	if _, err := s.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after rejected saves = %v, want ErrNotFound", err)
	}
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load on empty store = %v, want ErrNotFound", err)
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	s := newTestStore(t)

	ring, err := s.openKeyring()
	if err != nil {
		t.Fatalf("opening keyring: %v", err)
	}
	err = ring.Set(keyring.Item{Key: itemKey, Data: []byte("not json")})
	if err != nil {
		t.Fatalf("writing corrupt record: %v", err)
	}

	if _, err := s.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load of corrupt record = %v, want ErrNotFound", err)
	}

	// The corrupt record was removed, not left behind.
	if _, err := ring.Get(itemKey); !errors.Is(err, keyring.ErrKeyNotFound) {
		t.Errorf("corrupt record still present: %v", err)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(testCredential()); err != nil {
		t.Fatalf("saving credential: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clearing credential: %v", err)
	}
	if _, err := s.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after clear = %v, want ErrNotFound", err)
	}

	// Clearing again is a no-op.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear = %v, want nil", err)
	}
}
