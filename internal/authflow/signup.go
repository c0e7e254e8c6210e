// Package authflow drives the signup, login, verification and session flows.
package authflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/hipposync/internal/geo"
	"pkt.systems/hipposync/internal/validate"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// Screen names where a flow sends the user next.
type Screen string

const (
	ScreenSignup     Screen = "signup"
	ScreenCheckEmail Screen = "check-email"
	ScreenLogin      Screen = "login"
	ScreenChat       Screen = "chat"
)

// SignupState is the state of the signup form.
type SignupState string

const (
	SignupIdle       SignupState = "idle"
	SignupValidating SignupState = "validating"
	SignupInvalid    SignupState = "invalid"
	SignupSubmitting SignupState = "submitting"
	SignupSuccess    SignupState = "success"
	SignupFailure    SignupState = "failure"
)

// SignupAPI registers accounts.
type SignupAPI interface {
	Signup(ctx context.Context, profile schema.SignupProfile) (schema.User, error)
}

// PendingStore is the storage touched by a successful signup. ClearToken
// must drop any in-memory session as well as the durable token.
type PendingStore interface {
	ClearToken() error
	SetPendingEmail(email string) error
}

// ValidationError carries both field results when submission is blocked.
type ValidationError struct {
	Email    schema.ValidationResult
	Password schema.PasswordResult
	TooLong  bool
}

func (e *ValidationError) Error() string {
	msgs := append([]string{}, e.Email.Errors...)
	msgs = append(msgs, e.Password.Errors...)
	if e.TooLong {
		msgs = append(msgs, fmt.Sprintf("Password must be at most %d characters", schema.MaxPasswordLength))
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return schema.ErrValidation
}

// SignupOutcome is the result of a successful signup.
type SignupOutcome struct {
	Next     Screen
	Email    string
	User     schema.User
	Location *schema.LocationInfo
}

// Signup is the signup form state machine.
type Signup struct {
	api     SignupAPI
	store   PendingStore
	tracker *geo.Tracker

	mu    sync.Mutex
	state SignupState
	err   error
}

// NewSignup constructs the flow. tracker may be nil to skip location enrichment.
func NewSignup(api SignupAPI, store PendingStore, tracker *geo.Tracker) *Signup {
	return &Signup{api: api, store: store, tracker: tracker, state: SignupIdle}
}

// Tracker returns the location tracker, or nil when enrichment is off.
func (s *Signup) Tracker() *geo.Tracker { return s.tracker }

// State returns the current form state.
func (s *Signup) State() SignupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the last submission failure.
func (s *Signup) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Signup) setState(state SignupState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.err = err
}

// Validate checks the credentials without submitting. It returns nil when
// both fields pass.
func (s *Signup) Validate(creds schema.Credentials) *ValidationError {
	s.setState(SignupValidating, nil)
	verr := checkCredentials(creds)
	if verr != nil {
		s.setState(SignupInvalid, verr)
		return verr
	}
	s.setState(SignupIdle, nil)
	return nil
}

func checkCredentials(creds schema.Credentials) *ValidationError {
	email := validate.ValidateEmail(strings.TrimSpace(creds.Email))
	password := validate.ValidatePassword(creds.Password)
	tooLong := len(creds.Password) > schema.MaxPasswordLength
	if email.Valid && password.Valid && !tooLong {
		return nil
	}
	return &ValidationError{Email: email, Password: password, TooLong: tooLong}
}

// Submit validates again and, only if both fields pass, sends exactly one
// signup request. On success the stale session token is cleared and the
// email is remembered for resending.
func (s *Signup) Submit(ctx context.Context, profile schema.SignupProfile) (SignupOutcome, error) {
	if verr := s.Validate(profile.Credentials); verr != nil {
		return SignupOutcome{}, verr
	}
	log := pslog.Ctx(ctx)
	profile.Email = strings.TrimSpace(profile.Email)
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Occupation = strings.TrimSpace(profile.Occupation)
	if profile.Location == nil && s.tracker != nil {
		profile.Location = s.tracker.Resolve(ctx)
	}

	s.setState(SignupSubmitting, nil)
	user, err := s.api.Signup(ctx, profile)
	if err != nil {
		log.Warn("signup failed", "err", err)
		s.setState(SignupFailure, err)
		return SignupOutcome{}, err
	}
	if s.store != nil {
		if err := s.store.ClearToken(); err != nil {
			log.Warn("signup clear session failed", "err", err)
		}
		if err := s.store.SetPendingEmail(profile.Email); err != nil {
			log.Warn("signup remember email failed", "err", err)
		}
	}
	s.setState(SignupSuccess, nil)
	log.Info("signup ok", "located", profile.Location != nil)
	return SignupOutcome{Next: ScreenCheckEmail, Email: profile.Email, User: user, Location: profile.Location}, nil
}
