// Package session holds the signed-in user's identity and token for the
// lifetime of a chat session.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
)

// Session is the identity of the signed-in user.
type Session struct {
	UserID    string
	AuthToken string
}

// Authenticator is the part of the backend the login flows need.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	SendOTP(ctx context.Context, reg api.Registration) error
	Register(ctx context.Context, reg api.Registration) error
}

// Store owns the current session. It is the only writer of the token;
// every other component only reads it.
type Store struct {
	mu        sync.RWMutex
	current   *Session
	listeners []func()
	log       zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{log: logger.With().Str("component", "session").Logger()}
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.AuthToken
}

// UserID returns the signed-in user id, or "".
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.UserID
}

// Current returns a copy of the session and whether one exists.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Require returns the session or an auth error when signed out.
func (s *Store) Require(op string) (Session, error) {
	sess, ok := s.Current()
	if !ok || sess.AuthToken == "" {
		return Session{}, &api.Error{Kind: api.KindAuth, Op: op, Message: "no session token"}
	}
	return sess, nil
}

// OnInvalidate registers fn to run whenever the session changes hands
// (login replaces it, logout clears it). Caches hook in here.
func (s *Store) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Set installs a session directly, e.g. a pre-issued token.
func (s *Store) Set(sess Session) {
	s.mu.Lock()
	s.current = &sess
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Logout destroys the session and invalidates all caches.
func (s *Store) Logout() {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	if had {
		s.log.Info().Msg("signed out")
	}
	for _, fn := range listeners {
		fn()
	}
}

// Login signs in and installs the new session.
func (s *Store) Login(ctx context.Context, auth Authenticator, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, api.Validation("login", "email and password are required")
	}

	resp, err := auth.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "server did not return a token"
		}
		return Session{}, &api.Error{Kind: api.KindAuth, Op: "login", Message: msg}
	}

	sess := Session{UserID: resp.User(), AuthToken: resp.Token}
	if sess.UserID == "" {
		// Accepted with a token only; joining rooms will fail until an id is known.
		s.log.Warn().Msg("login returned a token without a user id")
	}
	s.Set(sess)
	s.log.Info().Str("user", sess.UserID).Msg("signed in")
	return sess, nil
}

// SendOTP starts registration by mailing a code.
func (s *Store) SendOTP(ctx context.Context, auth Authenticator, reg api.Registration) error {
	if err := validateRegistration(reg, false); err != nil {
		return err
	}
	return auth.SendOTP(ctx, reg)
}

// Register finishes registration with the mailed code.
func (s *Store) Register(ctx context.Context, auth Authenticator, reg api.Registration) error {
	if err := validateRegistration(reg, true); err != nil {
		return err
	}
	return auth.Register(ctx, reg)
}

func validateRegistration(reg api.Registration, needOTP bool) error {
	if strings.TrimSpace(reg.Email) == "" || strings.TrimSpace(reg.DisplayName) == "" ||
		reg.Password == "" || strings.TrimSpace(reg.DateOfBirth) == "" {
		return api.Validation("register", "email, display name, password and date of birth are required")
	}
	if needOTP && strings.TrimSpace(reg.OTP) == "" {
		return api.Validation("register", "verification code is required")
	}
	return nil
}
