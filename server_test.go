package hipposync

import (
	"context"
	"testing"
	"time"

	"pkt.systems/hipposync/internal/appconfig"
)

func TestNewServerRequiresSecret(t *testing.T) {
	_, err := NewServer(ServerConfig{Emulator: appconfig.EmulatorConfig{Addr: "127.0.0.1:0"}}, ServerDeps{})
	if err == nil {
		t.Fatalf("expected error without jwt secret")
	}
	if _, err := NewServer(ServerConfig{Emulator: appconfig.EmulatorConfig{JWTSecret: "x"}}, ServerDeps{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}

func TestServerStartStop(t *testing.T) {
	srv, err := NewServer(ServerConfig{Emulator: appconfig.EmulatorConfig{Addr: "127.0.0.1:0", JWTSecret: "x"}}, ServerDeps{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Wait(); err == nil {
		t.Fatalf("wait before start must fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("second start must fail")
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("wait after stop: %v", err)
	}
}
