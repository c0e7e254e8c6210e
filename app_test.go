package hipposync

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pkt.systems/hipposync/httpapi"
	"pkt.systems/hipposync/internal/appconfig"
	"pkt.systems/hipposync/internal/auth"
	"pkt.systems/hipposync/internal/authflow"
	"pkt.systems/hipposync/schema"
)

func newTestClient(t *testing.T) (*Client, *httpapi.Server) {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("app-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	api := httpapi.NewServer(httpapi.Config{}, auth.NewStore(auth.StoreConfig{BcryptCost: bcrypt.MinCost}), tokens)
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)

	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.StateDir = t.TempDir()
	cfg.Backend.BaseURL = ts.URL
	cfg.Chat.Model = "gpt-4o"
	client, err := NewClient(cfg, ClientDeps{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, api
}

type recordingSink struct {
	events []schema.ThreadEvent
}

func (r *recordingSink) Publish(event schema.ThreadEvent) {
	r.events = append(r.events, event)
}

func TestClientSignupVerifyLoginChat(t *testing.T) {
	client, api := newTestClient(t)
	ctx := context.Background()

	signup, err := client.Signup()
	if err != nil {
		t.Fatalf("signup flow: %v", err)
	}
	profile := schema.SignupProfile{Credentials: schema.Credentials{Email: "flow@hipposync.com", Password: "Passw0rd!"}}
	if _, err := signup.Submit(ctx, profile); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := client.State().PendingEmail(); got != profile.Email {
		t.Fatalf("pending email %q", got)
	}
	if _, err := client.Session().Login(ctx, profile.Credentials); err == nil {
		t.Fatalf("login must fail before verification")
	}

	token, ok := api.VerificationToken(profile.Email)
	if !ok {
		t.Fatalf("no verification token")
	}
	result, err := client.Verifier(time.Millisecond).Verify(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Next != authflow.ScreenLogin {
		t.Fatalf("unexpected next screen %q", result.Next)
	}
	if _, err := client.Session().Login(ctx, profile.Credentials); err != nil {
		t.Fatalf("login: %v", err)
	}

	chat, err := client.OpenChat(ctx, true)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	if chat.User.Email != profile.Email {
		t.Fatalf("unexpected user %+v", chat.User)
	}
	if got := chat.Service.Settings(ctx); got.Model != "gpt-4o" {
		t.Fatalf("config chat settings not seeded: %+v", got)
	}
	resp, err := chat.Service.SendMessage(ctx, schema.SendMessageRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Reply == nil || resp.Reply.ThreadID != resp.Thread.ID {
		t.Fatalf("unexpected reply %+v", resp)
	}
}

func TestOpenChatRequiresSession(t *testing.T) {
	client, _ := newTestClient(t)
	if _, err := client.OpenChat(context.Background(), false); !errors.Is(err, schema.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if err := client.State().SetToken("bogus", "x@hipposync.com"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if _, err := client.OpenChat(context.Background(), true); !errors.Is(err, schema.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn for rejected token, got %v", err)
	}
	if client.State().Token() != "" {
		t.Fatalf("rejected token must be cleared")
	}
}

func TestResendUsesPendingEmail(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	if _, err := client.Resend(ctx, ""); !errors.Is(err, schema.ErrEmailUnknown) {
		t.Fatalf("expected ErrEmailUnknown, got %v", err)
	}
	if err := client.State().SetPendingEmail("nobody@hipposync.com"); err != nil {
		t.Fatalf("pending: %v", err)
	}
	resp, err := client.Resend(ctx, "")
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if resp.Status != schema.VerifyStatusSent {
		t.Fatalf("unexpected status %q", resp.Status)
	}
}

func TestExpireClearsSessionOnUnauthorized(t *testing.T) {
	client, _ := newTestClient(t)
	if err := client.State().SetToken("tok", "a@hipposync.com"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	other := errors.New("boom")
	if got := client.Expire(other); got != other {
		t.Fatalf("unrelated errors pass through, got %v", got)
	}
	if got := client.Expire(schema.ErrUnauthorized); !errors.Is(got, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", got)
	}
	if client.State().Token() != "" {
		t.Fatalf("token should be cleared")
	}
}

func TestEventSinkFanout(t *testing.T) {
	tokens, _ := auth.NewTokenIssuer("app-secret", time.Hour)
	api := httpapi.NewServer(httpapi.Config{AutoVerify: true}, auth.NewStore(auth.StoreConfig{BcryptCost: bcrypt.MinCost}), tokens)
	ts := httptest.NewServer(api.Handler())
	defer ts.Close()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.StateDir = t.TempDir()
	cfg.Backend.BaseURL = ts.URL
	sink := &recordingSink{}
	client, err := NewClient(cfg, ClientDeps{EventSink: sink})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx := context.Background()
	creds := schema.Credentials{Email: "fan@hipposync.com", Password: "Passw0rd!"}
	if _, err := client.API().Signup(ctx, schema.SignupProfile{Credentials: creds}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := client.Session().Login(ctx, creds); err != nil {
		t.Fatalf("login: %v", err)
	}
	events, cancel := client.Events().Subscribe(schema.UserID(creds.Email))
	defer cancel()
	chat, err := client.OpenChat(ctx, false)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	if _, err := chat.Service.NewThread(ctx, schema.NewThreadRequest{Title: "fan"}); err != nil {
		t.Fatalf("new thread: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != schema.ThreadCreated {
		t.Fatalf("extra sink missed event: %+v", sink.events)
	}
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatalf("bus missed event")
	}
}

func TestSignupDropsPreviousSession(t *testing.T) {
	client, api := newTestClient(t)
	ctx := context.Background()

	first := schema.Credentials{Email: "first@hipposync.com", Password: "Passw0rd!"}
	if _, err := client.API().Signup(ctx, schema.SignupProfile{Credentials: first}); err != nil {
		t.Fatalf("signup first: %v", err)
	}
	token, ok := api.VerificationToken(first.Email)
	if !ok {
		t.Fatalf("no verification token")
	}
	if _, err := client.API().VerifyEmail(ctx, token); err != nil {
		t.Fatalf("verify first: %v", err)
	}
	if _, err := client.Session().Login(ctx, first); err != nil {
		t.Fatalf("login first: %v", err)
	}
	if _, err := client.Session().Client(); err != nil {
		t.Fatalf("session client before signup: %v", err)
	}

	signup, err := client.Signup()
	if err != nil {
		t.Fatalf("signup flow: %v", err)
	}
	second := schema.SignupProfile{Credentials: schema.Credentials{Email: "second@hipposync.com", Password: "Passw0rd!"}}
	if _, err := signup.Submit(ctx, second); err != nil {
		t.Fatalf("submit second: %v", err)
	}
	if client.State().Token() != "" {
		t.Fatalf("durable token survived signup")
	}
	if _, err := client.Session().Client(); !errors.Is(err, schema.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn after signup, got %v", err)
	}
	if user, ok := client.Session().User(); ok {
		t.Fatalf("previous user survived signup: %+v", user)
	}
}
