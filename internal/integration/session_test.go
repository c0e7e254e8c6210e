package integration_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pkt.systems/hipposync"
	"pkt.systems/hipposync/apiclient"
	"pkt.systems/hipposync/internal/appconfig"
	"pkt.systems/hipposync/schema"
)

func TestSeparateInvocationsShareSessionAndThread(t *testing.T) {
	requireLong(t)
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.signupAndLogin(t, "ada@hipposync.com")

	chatA, err := first.OpenChat(ctx, true)
	if err != nil {
		t.Fatalf("open chat a: %v", err)
	}
	sent, err := chatA.Service.SendMessage(ctx, schema.SendMessageRequest{Text: "first"})
	if err != nil {
		t.Fatalf("send a: %v", err)
	}

	second := env.client(t)
	chatB, err := second.OpenChat(ctx, true)
	if err != nil {
		t.Fatalf("second invocation should reuse the stored session: %v", err)
	}
	again, err := chatB.Service.SendMessage(ctx, schema.SendMessageRequest{Text: "second"})
	if err != nil {
		t.Fatalf("send b: %v", err)
	}
	if again.ThreadCreated || again.Thread.ID != sent.Thread.ID {
		t.Fatalf("expected thread %d to be resumed, got %+v", sent.Thread.ID, again.Thread)
	}

	if err := first.Session().Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.client(t).OpenChat(ctx, true); !errors.Is(err, schema.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn after logout, got %v", err)
	}
	if _, ok := second.State().LastThread(); ok {
		t.Fatalf("logout must clear the last thread for every invocation")
	}
}

func TestRejectedTokenForcesLogout(t *testing.T) {
	requireLong(t)
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.signupAndLogin(t, "bob@hipposync.com")
	if err := client.State().SetToken("not-a-jwt", "bob@hipposync.com"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	fresh := env.client(t)
	chat, err := fresh.OpenChat(ctx, false)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	_, err = chat.Service.NewThread(ctx, schema.NewThreadRequest{})
	if !errors.Is(err, schema.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := fresh.Expire(err); !errors.Is(got, hipposync.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", got)
	}
	if fresh.State().Token() != "" {
		t.Fatalf("token should be cleared")
	}
}

func TestUnreachableBackendMessage(t *testing.T) {
	requireLong(t)
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.StateDir = t.TempDir()
	cfg.Backend.BaseURL = "http://" + freeAddr(t)
	client, err := hipposync.NewClient(cfg, hipposync.ClientDeps{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	_, err = client.API().Login(context.Background(), schema.Credentials{Email: "ada@hipposync.com", Password: testPassword})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if msg := apiclient.UserMessage(err); !strings.Contains(msg, "Could not reach the server") {
		t.Fatalf("unexpected message %q", msg)
	}
}
