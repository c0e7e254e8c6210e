package integration_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"pkt.systems/hipposync"
	"pkt.systems/hipposync/internal/appconfig"
	"pkt.systems/hipposync/schema"
)

const testPassword = "Passw0rd!"

type testEnv struct {
	baseURL  string
	stateDir string
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// newTestEnv starts the emulator on a real listener with auto-verify on.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	addr := freeAddr(t)
	srv, err := hipposync.NewServer(hipposync.ServerConfig{
		Emulator: appconfig.EmulatorConfig{
			Addr:            addr,
			JWTSecret:       "integration-secret",
			TokenTTLMinutes: 60,
			AutoVerify:      true,
			BcryptCost:      4,
		},
	}, hipposync.ServerDeps{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	baseURL := "http://" + addr
	waitForServer(t, baseURL, 5*time.Second)
	return &testEnv{baseURL: baseURL, stateDir: t.TempDir()}
}

func waitForServer(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/auth/me")
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("emulator at %s never came up", baseURL)
}

// client builds a fresh compositor, as a separate CLI invocation would.
func (e *testEnv) client(t *testing.T) *hipposync.Client {
	t.Helper()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.StateDir = e.stateDir
	cfg.Backend.BaseURL = e.baseURL
	cfg.Geo.Enabled = false
	client, err := hipposync.NewClient(cfg, hipposync.ClientDeps{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func (e *testEnv) signupAndLogin(t *testing.T, email string) *hipposync.Client {
	t.Helper()
	client := e.client(t)
	ctx := context.Background()
	signup, err := client.Signup()
	if err != nil {
		t.Fatalf("signup flow: %v", err)
	}
	creds := schema.Credentials{Email: email, Password: testPassword}
	if _, err := signup.Submit(ctx, schema.SignupProfile{Credentials: creds}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := client.Session().Login(ctx, creds); err != nil {
		t.Fatalf("login: %v", err)
	}
	return client
}
