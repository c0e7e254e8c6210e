package authflow

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pkt.systems/hipposync/apiclient"
	"pkt.systems/hipposync/httpapi"
	"pkt.systems/hipposync/internal/auth"
	"pkt.systems/hipposync/internal/geo"
	"pkt.systems/hipposync/internal/persist"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

type fakeSignupAPI struct {
	calls   atomic.Int32
	err     error
	profile schema.SignupProfile
}

func (f *fakeSignupAPI) Signup(_ context.Context, profile schema.SignupProfile) (schema.User, error) {
	f.calls.Add(1)
	f.profile = profile
	if f.err != nil {
		return schema.User{}, f.err
	}
	return schema.User{ID: 1, Email: profile.Email}, nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) Reverse(context.Context, geo.Position) (geo.Address, error) {
	return geo.Address{City: "Stockholm", Country: "Sweden"}, nil
}

func validProfile() schema.SignupProfile {
	return schema.SignupProfile{Credentials: schema.Credentials{Email: "ada@hipposync.com", Password: "Passw0rd!"}}
}

func TestSignupInvalidEmailNeverCallsBackend(t *testing.T) {
	api := &fakeSignupAPI{}
	flow := NewSignup(api, persist.NewState(nil, "test", nil), nil)
	profile := validProfile()
	profile.Email = "ada@mailinator.com"
	_, err := flow.Submit(context.Background(), profile)
	if !errors.Is(err, schema.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Email.Valid || !verr.Password.Valid {
		t.Fatalf("expected email-only failure, got %+v", verr)
	}
	if api.calls.Load() != 0 {
		t.Fatalf("expected no signup call, got %d", api.calls.Load())
	}
	if flow.State() != SignupInvalid {
		t.Fatalf("expected invalid state, got %q", flow.State())
	}
}

func TestSignupOverlongPasswordBlocked(t *testing.T) {
	api := &fakeSignupAPI{}
	flow := NewSignup(api, nil, nil)
	profile := validProfile()
	long := make([]byte, schema.MaxPasswordLength)
	for i := range long {
		long[i] = "Aa1!"[i%4]
	}
	profile.Password = string(long) + "x"
	if _, err := flow.Submit(context.Background(), profile); !errors.Is(err, schema.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if api.calls.Load() != 0 {
		t.Fatalf("expected no call")
	}
}

func TestSignupValidIssuesExactlyOneCall(t *testing.T) {
	api := &fakeSignupAPI{}
	state := persist.NewState(nil, "test", nil)
	if err := state.SetToken("stale", "old@hipposync.com"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	tracker := &geo.Tracker{
		Locator:  geo.StaticLocator{Position: &geo.Position{Latitude: 59.33, Longitude: 18.06}},
		Geocoder: fakeGeocoder{},
		Timezone: "Europe/Stockholm",
	}
	flow := NewSignup(api, state, tracker)
	profile := validProfile()
	profile.Name = "  Ada "
	outcome, err := flow.Submit(context.Background(), profile)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if api.calls.Load() != 1 {
		t.Fatalf("expected exactly one call, got %d", api.calls.Load())
	}
	if outcome.Next != ScreenCheckEmail || outcome.Email != "ada@hipposync.com" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if api.profile.Name != "Ada" || api.profile.Location == nil || api.profile.Location.Formatted != "Stockholm, Sweden" {
		t.Fatalf("unexpected submitted profile %+v", api.profile)
	}
	if state.Token() != "" {
		t.Fatalf("expected stale token cleared")
	}
	if state.PendingEmail() != "ada@hipposync.com" {
		t.Fatalf("expected pending email stored, got %q", state.PendingEmail())
	}
	if flow.State() != SignupSuccess {
		t.Fatalf("expected success state, got %q", flow.State())
	}
}

func TestSignupLocationFailureDoesNotBlock(t *testing.T) {
	api := &fakeSignupAPI{}
	tracker := &geo.Tracker{Locator: geo.StaticLocator{}}
	flow := NewSignup(api, nil, tracker)
	if _, err := flow.Submit(context.Background(), validProfile()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if api.profile.Location != nil {
		t.Fatalf("expected no location")
	}
	if tracker.Error() == "" {
		t.Fatalf("expected location error recorded")
	}
}

func TestSignupServerFailureStays(t *testing.T) {
	api := &fakeSignupAPI{err: &apiclient.APIError{Status: 400, Detail: "Email already registered"}}
	flow := NewSignup(api, nil, nil)
	_, err := flow.Submit(context.Background(), validProfile())
	if apiclient.UserMessage(err) != "Email already registered" {
		t.Fatalf("unexpected error %v", err)
	}
	if flow.State() != SignupFailure || flow.Err() == nil {
		t.Fatalf("expected failure state, got %q", flow.State())
	}
}

type fakeVerifyAPI struct {
	calls   atomic.Int32
	release chan struct{}
	resp    schema.VerifyResponse
	err     error
}

func (f *fakeVerifyAPI) VerifyEmail(context.Context, string) (schema.VerifyResponse, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.resp, f.err
}

func TestVerifierIssuesOneCall(t *testing.T) {
	api := &fakeVerifyAPI{release: make(chan struct{}), resp: schema.VerifyResponse{Status: schema.VerifyStatusSuccess, Email: "ada@hipposync.com"}}
	verifier := NewVerifier(api, VerifierOptions{})
	var wg sync.WaitGroup
	results := make([]VerifyResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = verifier.Verify(context.Background(), "tok")
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(api.release)
	wg.Wait()
	if api.calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", api.calls.Load())
	}
	for _, res := range results {
		if res.Outcome != VerifyVerified || res.Next != ScreenLogin {
			t.Fatalf("unexpected result %+v", res)
		}
	}
}

func TestVerifierMissingToken(t *testing.T) {
	api := &fakeVerifyAPI{}
	res, err := NewVerifier(api, VerifierOptions{}).Verify(context.Background(), "  ")
	if !errors.Is(err, schema.ErrMissingToken) || res.Outcome != VerifyFailed {
		t.Fatalf("expected missing token failure, got %+v %v", res, err)
	}
	if api.calls.Load() != 0 {
		t.Fatalf("expected no call")
	}
}

func TestVerifierOutcomes(t *testing.T) {
	cases := []struct {
		name string
		api  *fakeVerifyAPI
		want VerifyOutcome
	}{
		{"already", &fakeVerifyAPI{resp: schema.VerifyResponse{Status: schema.VerifyStatusAlreadyVerified}}, VerifyAlreadyVerified},
		{"other", &fakeVerifyAPI{resp: schema.VerifyResponse{Status: "pending"}}, VerifyFailed},
		{"error", &fakeVerifyAPI{err: &apiclient.APIError{Status: 400, Detail: "Verification token expired."}}, VerifyFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := NewVerifier(tc.api, VerifierOptions{}).Verify(context.Background(), "tok")
			if res.Outcome != tc.want || res.Message == "" {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
}

func TestCountdownCompletesAndCancels(t *testing.T) {
	verifier := NewVerifier(&fakeVerifyAPI{}, VerifierOptions{Countdown: 30 * time.Millisecond, Tick: 10 * time.Millisecond})
	var ticks []time.Duration
	if err := verifier.Countdown(context.Background(), func(d time.Duration) { ticks = append(ticks, d) }); err != nil {
		t.Fatalf("countdown: %v", err)
	}
	if len(ticks) != 4 || ticks[0] != 30*time.Millisecond || ticks[3] != 0 {
		t.Fatalf("unexpected ticks %v", ticks)
	}

	slow := NewVerifier(&fakeVerifyAPI{}, VerifierOptions{Countdown: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := slow.Countdown(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestTokenFromInput(t *testing.T) {
	cases := map[string]string{
		"abc": "abc",
		"http://localhost:5173/verify-email?token=x1": "x1",
		"?token=y2":  "y2",
		"token=z3&a": "z3",
	}
	for in, want := range cases {
		if got := TokenFromInput(in); got != want {
			t.Fatalf("TokenFromInput(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeResendAPI struct {
	calls atomic.Int32
}

func (f *fakeResendAPI) ResendVerification(context.Context, string) (schema.VerifyResponse, error) {
	f.calls.Add(1)
	return schema.VerifyResponse{Status: schema.VerifyStatusSent}, nil
}

func TestResendRequiresEmail(t *testing.T) {
	api := &fakeResendAPI{}
	if _, err := Resend(context.Background(), api, " "); !errors.Is(err, schema.ErrEmailUnknown) {
		t.Fatalf("expected ErrEmailUnknown, got %v", err)
	}
	if api.calls.Load() != 0 {
		t.Fatalf("expected no call")
	}
	if resp, err := Resend(context.Background(), api, "ada@hipposync.com"); err != nil || resp.Status != schema.VerifyStatusSent {
		t.Fatalf("unexpected resend %+v %v", resp, err)
	}
}

func newEmulatorClient(t *testing.T) (*apiclient.Client, *httpapi.Server) {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	server := httpapi.NewServer(httpapi.Config{AutoVerify: true}, auth.NewStore(auth.StoreConfig{BcryptCost: bcrypt.MinCost}), tokens)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	client, err := apiclient.New(apiclient.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return client, server
}

func TestSessionLoginRestoreLogout(t *testing.T) {
	client, _ := newEmulatorClient(t)
	ctx := context.Background()
	if _, err := client.Signup(ctx, validProfile()); err != nil {
		t.Fatalf("signup: %v", err)
	}
	store, err := persist.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	state := persist.NewState(store, "test", nil)
	session := NewSession(client, state)
	user, err := session.Login(ctx, validProfile().Credentials)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "ada@hipposync.com" || state.Token() == "" {
		t.Fatalf("expected stored session, got %+v %q", user, state.Token())
	}

	fresh := NewSession(client, persist.NewState(store, "test", nil))
	if restored, ok := fresh.Restore(ctx); !ok || restored.Email != user.Email {
		t.Fatalf("expected restore, got %+v %v", restored, ok)
	}
	if authed, err := fresh.Client(); err != nil || !authed.Authenticated() {
		t.Fatalf("expected authenticated client, got %v", err)
	}

	if err := fresh.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := fresh.Client(); !errors.Is(err, schema.ErrNotLoggedIn) {
		t.Fatalf("expected logged out, got %v", err)
	}
}

func TestSessionRestoreClearsRejectedToken(t *testing.T) {
	client, _ := newEmulatorClient(t)
	state := persist.NewState(nil, "test", nil)
	if err := state.SetToken("bogus", "ada@hipposync.com"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	session := NewSession(client, state)
	if _, ok := session.Restore(context.Background()); ok {
		t.Fatalf("expected restore to fail")
	}
	if state.Token() != "" {
		t.Fatalf("expected rejected token cleared")
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	client, _ := newEmulatorClient(t)
	if _, err := Login(context.Background(), client, schema.Credentials{Email: " "}); !errors.Is(err, schema.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type failingSessionStore struct {
	token string
}

func (f *failingSessionStore) Token() string { return f.token }

func (f *failingSessionStore) SetToken(token string, _ schema.UserID) error {
	f.token = token
	return nil
}

func (f *failingSessionStore) ClearToken() error { return errors.New("disk full") }

func (f *failingSessionStore) Reset() error { return errors.New("disk full") }

func TestSessionInvalidateLogsClearFailure(t *testing.T) {
	client, _ := newEmulatorClient(t)
	var buf bytes.Buffer
	logger := pslog.NewWithOptions(&buf, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.DebugLevel,
	})
	session := NewSessionWithLogger(client, &failingSessionStore{token: "bogus"}, logger)
	if _, err := session.Client(); err != nil {
		t.Fatalf("client: %v", err)
	}
	session.Invalidate()
	if _, ok := session.User(); ok {
		t.Fatalf("user must be dropped")
	}
	if !strings.Contains(buf.String(), "session clear token failed") || !strings.Contains(buf.String(), "disk full") {
		t.Fatalf("expected clear failure logged, got %q", buf.String())
	}
	if err := session.ClearToken(); err == nil {
		t.Fatalf("expected ClearToken to report the storage error")
	}
}
