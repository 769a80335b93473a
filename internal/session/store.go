package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/campus-client/internal/api"
	"github.com/nhle/campus-client/internal/credential"
	"github.com/nhle/campus-client/internal/model"
)

const (
	loginPath = "/api/v1/auth/login"
	mePath    = "/api/v1/auth/me"
)

// State is the session lifecycle phase.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// AuthErrorKind classifies login failures for form-level display.
type AuthErrorKind string

const (
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthNetworkUnreachable AuthErrorKind = "network_unreachable"
	AuthTimeout            AuthErrorKind = "timeout"
)

// AuthError is a classified login failure. Message carries the
// server-supplied detail when one exists.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsInvalidCredentials reports whether err is a rejected-credentials
// login failure.
func IsInvalidCredentials(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == AuthInvalidCredentials
}

// Persistence stores the credential across process restarts. The
// record is written and removed as a unit; implementations must never
// expose a token without its identity or the reverse.
type Persistence interface {
	Save(model.Credential) error
	Load() (model.Credential, error)
	Clear() error
}

// loginResponse is the backend's login payload.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	ID          int64  `json:"id"`
	Name        string `json:"name"`
}

// Store is the single source of truth for the current credential. All
// other components read it through snapshot copies; replacement is an
// atomic swap under the store's lock.
type Store struct {
	mu      sync.RWMutex
	cred    model.Credential
	hasCred bool
	state   State

	client     *api.Client
	clientOpts []api.Option
	persist    Persistence
	logger     *zap.Logger

	// changes carries state transitions to the owning UI so it can
	// tear down dependents (the push channel) on forced logout.
	changes chan State
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClientOptions forwards options to the store's API client.
func WithClientOptions(opts ...api.Option) Option {
	return func(s *Store) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// New creates a session store talking to the backend at baseURL and
// persisting through persist. The store's API client reads the
// credential back from the store itself, so every request carries
// whatever credential is current at dispatch time.
func New(baseURL string, persist Persistence, opts ...Option) *Store {
	s := &Store{
		state:   Anonymous,
		persist: persist,
		logger:  zap.NewNop(),
		changes: make(chan State, 16),
	}
	for _, opt := range opts {
		opt(s)
	}

	clientOpts := append([]api.Option{api.WithLogger(s.logger)}, s.clientOpts...)
	s.client = api.NewClient(baseURL, api.CredentialFunc(s.Current), clientOpts...)
	return s
}

// Client returns the request executor bound to this session. Callers
// use it for all request/response interactions with the backend.
func (s *Store) Client() *api.Client {
	return s.client
}

// Current returns a snapshot of the credential, or false when the
// session is anonymous. Synchronous, no I/O.
func (s *Store) Current() (model.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.hasCred
}

// State returns the current lifecycle phase.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Changes returns the state transition feed. The channel is buffered;
// transitions are dropped rather than blocking the store.
func (s *Store) Changes() <-chan State {
	return s.changes
}

// Login exchanges credentials for a token. The credential is persisted
// before Login returns, overwriting any previous record. Concurrent
// logins are last-write-wins.
func (s *Store) Login(ctx context.Context, email, password string) (model.Credential, error) {
	s.setState(Authenticating)

	outcome := s.client.Post(ctx, loginPath, map[string]string{
		"email":    email,
		"password": password,
	})

	if f := outcome.Failure; f != nil {
		s.setState(Anonymous)
		return model.Credential{}, loginError(f)
	}

	var resp loginResponse
	if err := outcome.Decode(&resp); err != nil {
		s.setState(Anonymous)
		return model.Credential{}, &AuthError{
			Kind:    AuthNetworkUnreachable,
			Message: fmt.Sprintf("malformed login response: %v", err),
		}
	}

	cred := model.Credential{
		Token: resp.AccessToken,
		Subject: model.Subject{
			ID:   resp.ID,
			Name: resp.Name,
			Role: model.Role(resp.Role),
		},
	}
	if !cred.Valid() {
		s.setState(Anonymous)
		return model.Credential{}, &AuthError{
			Kind:    AuthInvalidCredentials,
			Message: "login response missing token or identity",
		}
	}

	if err := s.persist.Save(cred); err != nil {
		// The session is still usable in memory; the credential just
		// won't survive a restart.
		s.logger.Warn("persisting credential failed", zap.Error(err))
	}

	s.mu.Lock()
	s.cred = cred
	s.hasCred = true
	s.state = Authenticated
	s.mu.Unlock()
	s.notify(Authenticated)

	return cred, nil
}

// loginError maps a request failure to the login error taxonomy.
func loginError(f *api.Failure) *AuthError {
	switch f.Kind {
	case api.FailureTimeout:
		return &AuthError{Kind: AuthTimeout, Message: "login timed out"}
	case api.FailureHTTP:
		if f.Status >= 400 && f.Status < 500 {
			return &AuthError{Kind: AuthInvalidCredentials, Message: f.Message}
		}
		return &AuthError{Kind: AuthNetworkUnreachable, Message: f.Message}
	default:
		return &AuthError{Kind: AuthNetworkUnreachable, Message: f.Message}
	}
}

// Restore loads the persisted credential, if any, and returns it
// immediately so the UI is usable before verification completes. A
// background probe then validates the token; an invalid one forces
// logout (see Verify).
func (s *Store) Restore(ctx context.Context) (model.Credential, bool) {
	cred, err := s.persist.Load()
	if err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			s.logger.Warn("loading persisted credential failed", zap.Error(err))
		}
		return model.Credential{}, false
	}

	s.mu.Lock()
	s.cred = cred
	s.hasCred = true
	s.state = Authenticated
	s.mu.Unlock()
	s.notify(Authenticated)

	go s.Verify(ctx)

	return cred, true
}

// Verify probes the identity endpoint with the current credential.
// Any outcome other than a 2xx response, including network failure,
// is treated as invalid (fail-closed) and forces logout. The raw
// error is logged, never surfaced.
func (s *Store) Verify(ctx context.Context) bool {
	if _, ok := s.Current(); !ok {
		return false
	}

	outcome := s.client.Get(ctx, mePath)
	if outcome.OK() {
		return true
	}

	s.logger.Info("credential verification failed, logging out",
		zap.String("reason", outcome.Failure.Message))
	s.Logout()
	return false
}

// Logout clears the in-memory credential and the persisted record.
// Idempotent. Dependents observe the transition on Changes; the next
// request through the executor is unauthenticated.
func (s *Store) Logout() {
	s.mu.Lock()
	wasAnonymous := !s.hasCred && s.state == Anonymous
	s.cred = model.Credential{}
	s.hasCred = false
	s.state = Anonymous
	s.mu.Unlock()

	if err := s.persist.Clear(); err != nil {
		s.logger.Warn("clearing persisted credential failed", zap.Error(err))
	}

	if !wasAnonymous {
		s.notify(Anonymous)
	}
}

func (s *Store) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.notify(state)
}

// notify sends a state transition without blocking the store.
func (s *Store) notify(state State) {
	select {
	case s.changes <- state:
	default:
	}
}
