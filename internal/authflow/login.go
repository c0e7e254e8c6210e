package authflow

import (
	"context"
	"strings"
	"sync"

	"pkt.systems/hipposync/apiclient"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// LoginAPI exchanges credentials for a token.
type LoginAPI interface {
	Login(ctx context.Context, creds schema.Credentials) (schema.Token, error)
}

// Login submits the credentials and hands back the bearer token. Storing the
// token is left to the caller.
func Login(ctx context.Context, api LoginAPI, creds schema.Credentials) (schema.Token, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return schema.Token{}, schema.ErrValidation
	}
	token, err := api.Login(ctx, creds)
	if err != nil {
		pslog.Ctx(ctx).Warn("login failed", "err", err)
		return schema.Token{}, err
	}
	return token, nil
}

// SessionStore is the durable storage of the bearer token.
type SessionStore interface {
	Token() string
	SetToken(token string, user schema.UserID) error
	ClearToken() error
	Reset() error
}

// Session owns the authenticated client.
type Session struct {
	base   *apiclient.Client
	store  SessionStore
	logger pslog.Logger

	mu     sync.Mutex
	client *apiclient.Client
	user   *schema.User
}

// NewSession binds the unauthenticated client to durable token storage.
func NewSession(base *apiclient.Client, store SessionStore) *Session {
	return NewSessionWithLogger(base, store, nil)
}

// NewSessionWithLogger is NewSession with a logger for storage failures.
func NewSessionWithLogger(base *apiclient.Client, store SessionStore, logger pslog.Logger) *Session {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Session{base: base, store: store, logger: logger}
}

// Login logs in and establishes the session.
func (s *Session) Login(ctx context.Context, creds schema.Credentials) (schema.User, error) {
	token, err := Login(ctx, s.base, creds)
	if err != nil {
		return schema.User{}, err
	}
	return s.Establish(ctx, token.AccessToken)
}

// Establish fetches the current user for token and stores the token only if
// that succeeds.
func (s *Session) Establish(ctx context.Context, token string) (schema.User, error) {
	client := s.base.WithToken(token)
	user, err := client.Me(ctx)
	if err != nil {
		return schema.User{}, err
	}
	if err := s.store.SetToken(client.Token(), schema.UserID(user.Email)); err != nil {
		return schema.User{}, err
	}
	s.mu.Lock()
	s.client = client
	s.user = &user
	s.mu.Unlock()
	pslog.Ctx(ctx).Info("session established", "user", user.Email)
	return user, nil
}

// Restore probes the stored token. Any failure silently clears it and
// reports logged out.
func (s *Session) Restore(ctx context.Context) (schema.User, bool) {
	token := s.store.Token()
	if token == "" {
		return schema.User{}, false
	}
	client := s.base.WithToken(token)
	user, err := client.Me(ctx)
	if err != nil {
		pslog.Ctx(ctx).Debug("stored session rejected", "err", err)
		s.Invalidate()
		return schema.User{}, false
	}
	s.mu.Lock()
	s.client = client
	s.user = &user
	s.mu.Unlock()
	return user, true
}

// Client returns the authenticated client using the stored token without
// probing it.
func (s *Session) Client() (*apiclient.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	token := s.store.Token()
	if token == "" {
		return nil, schema.ErrNotLoggedIn
	}
	s.client = s.base.WithToken(token)
	return s.client, nil
}

// User returns the user fetched by Establish or Restore.
func (s *Session) User() (schema.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return schema.User{}, false
	}
	return *s.user, true
}

// ClearToken drops the authenticated client and user from memory and the
// token from durable storage.
func (s *Session) ClearToken() error {
	s.mu.Lock()
	s.client = nil
	s.user = nil
	s.mu.Unlock()
	return s.store.ClearToken()
}

// Invalidate is ClearToken for callers with nowhere to report the error.
func (s *Session) Invalidate() {
	if err := s.ClearToken(); err != nil {
		s.logger.Warn("session clear token failed", "err", err)
	}
}

// Logout clears the token and the last-thread pointer.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.client = nil
	s.user = nil
	s.mu.Unlock()
	return s.store.Reset()
}
