package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nhle/campus-client/internal/api"
	"github.com/nhle/campus-client/internal/model"
	"github.com/nhle/campus-client/tests/testutil"
)

// loginHandler is a scripted auth backend serving /api/v1/auth/login
// and /api/v1/auth/me.
func loginHandler(meStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var body struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if body.Email != "a@x.com" || body.Password != "ok" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Incorrect email or password"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"t1","token_type":"bearer","role":"student","id":7,"name":"Ana"}`))

		case "/api/v1/auth/me":
			w.WriteHeader(meStatus)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestStore(t *testing.T, handler http.Handler) (*Store, *testutil.MemCredentials) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	persist := testutil.NewMemCredentials()
	return New(srv.URL, persist), persist
}

func TestLoginSuccess(t *testing.T) {
	s, persist := newTestStore(t, loginHandler(http.StatusOK))

	cred, err := s.Login(context.Background(), "a@x.com", "ok")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	want := model.Credential{
		Token:   "t1",
		Subject: model.Subject{ID: 7, Name: "Ana", Role: model.RoleStudent},
	}
	if cred != want {
		t.Errorf("credential = %+v, want %+v", cred, want)
	}

	current, ok := s.Current()
	if !ok || current != want {
		t.Errorf("Current() = %+v, %v; want stored credential", current, ok)
	}
	if s.State() != Authenticated {
		t.Errorf("state = %v, want authenticated", s.State())
	}

	stored, ok := persist.Stored()
	if !ok || stored != want {
		t.Errorf("persisted = %+v, %v; want full record before Login returns", stored, ok)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	s, persist := newTestStore(t, loginHandler(http.StatusOK))

	_, err := s.Login(context.Background(), "a@x.com", "wrong")
	if err == nil {
		t.Fatal("expected login to fail")
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error type = %T, want *AuthError", err)
	}
	if authErr.Kind != AuthInvalidCredentials {
		t.Errorf("kind = %q, want invalid_credentials", authErr.Kind)
	}
	if authErr.Message != "Incorrect email or password" {
		t.Errorf("message = %q, want the server-supplied detail", authErr.Message)
	}
	if !IsInvalidCredentials(err) {
		t.Error("IsInvalidCredentials = false, want true")
	}

	if _, ok := s.Current(); ok {
		t.Error("credential set after failed login")
	}
	if s.State() != Anonymous {
		t.Errorf("state = %v, want anonymous", s.State())
	}
	if _, ok := persist.Stored(); ok {
		t.Error("credential persisted after failed login")
	}
}

func TestLoginNetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	s := New(srv.URL, testutil.NewMemCredentials())

	_, err := s.Login(context.Background(), "a@x.com", "ok")
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Kind != AuthNetworkUnreachable {
		t.Fatalf("error = %v, want network_unreachable AuthError", err)
	}
}

func TestLoginTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	s := New(srv.URL, testutil.NewMemCredentials(),
		WithClientOptions(api.WithTimeout(50*time.Millisecond)))

	_, err := s.Login(context.Background(), "a@x.com", "ok")
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Kind != AuthTimeout {
		t.Fatalf("error = %v, want timeout AuthError", err)
	}
}

func TestVerifyFailClosed(t *testing.T) {
	s, persist := newTestStore(t, loginHandler(http.StatusUnauthorized))

	if _, err := s.Login(context.Background(), "a@x.com", "ok"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if s.Verify(context.Background()) {
		t.Fatal("Verify = true against a 401 probe")
	}

	if _, ok := s.Current(); ok {
		t.Error("credential still set after failed verification")
	}
	if s.State() != Anonymous {
		t.Errorf("state = %v, want anonymous", s.State())
	}
	if _, ok := persist.Stored(); ok {
		t.Error("persisted credential not cleared after failed verification")
	}
}

func TestVerifyNetworkFailureForcesLogout(t *testing.T) {
	// Fail-closed: an unreachable probe endpoint is treated the same
	// as a rejected token.
	srv := httptest.NewServer(loginHandler(http.StatusOK))
	persist := testutil.NewMemCredentials()
	s := New(srv.URL, persist)

	if _, err := s.Login(context.Background(), "a@x.com", "ok"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	srv.Close()

	if s.Verify(context.Background()) {
		t.Fatal("Verify = true with the server unreachable")
	}
	if _, ok := s.Current(); ok {
		t.Error("credential still set after failed verification")
	}
}

func TestRestoreOptimistic(t *testing.T) {
	s, persist := newTestStore(t, loginHandler(http.StatusOK))

	seeded := model.Credential{
		Token:   "t-old",
		Subject: model.Subject{ID: 3, Name: "Ben", Role: model.RoleTeacher},
	}
	persist.Seed(seeded)

	cred, ok := s.Restore(context.Background())
	if !ok || cred != seeded {
		t.Fatalf("Restore = %+v, %v; want the cached credential immediately", cred, ok)
	}
	if s.State() != Authenticated {
		t.Errorf("state = %v, want authenticated before verification completes", s.State())
	}
}

func TestRestoreInvalidTokenLogsOut(t *testing.T) {
	s, persist := newTestStore(t, loginHandler(http.StatusUnauthorized))

	persist.Seed(model.Credential{
		Token:   "t-stale",
		Subject: model.Subject{ID: 3, Name: "Ben", Role: model.RoleTeacher},
	})

	if _, ok := s.Restore(context.Background()); !ok {
		t.Fatal("Restore returned nothing despite a seeded credential")
	}

	// The background probe rejects the token and forces logout.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.Current(); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("credential still set after background verification failed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := persist.Stored(); ok {
		t.Error("persisted credential not cleared")
	}
}

func TestRestoreEmpty(t *testing.T) {
	s, _ := newTestStore(t, loginHandler(http.StatusOK))

	if _, ok := s.Restore(context.Background()); ok {
		t.Error("Restore reported a credential from empty storage")
	}
	if s.State() != Anonymous {
		t.Errorf("state = %v, want anonymous", s.State())
	}
}

// TestCredentialAtomicity checks that across login/logout sequences the
// persisted record is only ever observed fully populated or absent.
func TestCredentialAtomicity(t *testing.T) {
	s, persist := newTestStore(t, loginHandler(http.StatusOK))

	for i := 0; i < 3; i++ {
		if _, err := s.Login(context.Background(), "a@x.com", "ok"); err != nil {
			t.Fatalf("login %d failed: %v", i, err)
		}
		s.Logout()
	}

	for i, cred := range persist.Observed() {
		if !cred.Valid() {
			t.Errorf("observed write %d is a partial record: %+v", i, cred)
		}
	}
	if _, ok := persist.Stored(); ok {
		t.Error("record still present after final logout")
	}
}

func TestLogoutIdempotent(t *testing.T) {
	s, _ := newTestStore(t, loginHandler(http.StatusOK))

	if _, err := s.Login(context.Background(), "a@x.com", "ok"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	s.Logout()
	s.Logout()

	if s.State() != Anonymous {
		t.Errorf("state = %v, want anonymous", s.State())
	}
}

func TestChangesFeed(t *testing.T) {
	s, _ := newTestStore(t, loginHandler(http.StatusOK))

	if _, err := s.Login(context.Background(), "a@x.com", "ok"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	s.Logout()

	want := []State{Authenticating, Authenticated, Anonymous}
	for _, expected := range want {
		select {
		case got := <-s.Changes():
			if got != expected {
				t.Errorf("transition = %v, want %v", got, expected)
			}
		case <-time.After(time.Second):
			t.Fatalf("no transition received, want %v", expected)
		}
	}
}
