package hipposync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pkt.systems/hipposync/httpapi"
	"pkt.systems/hipposync/internal/appconfig"
	"pkt.systems/hipposync/internal/auth"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// Server runs the local backend emulator.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// Addr is the configured listen address.
	Addr() string
}

// ServerConfig configures the emulator compositor.
type ServerConfig struct {
	Emulator appconfig.EmulatorConfig
	// RedirectURL is used as the verification link base when the emulator
	// has none of its own.
	RedirectURL string
	Models      []schema.ModelID
}

// ServerDeps carries optional overrides.
type ServerDeps struct {
	Logger pslog.Logger
	Now    func() time.Time
}

// NewServer builds the emulator from configuration.
func NewServer(cfg ServerConfig, deps ServerDeps) (Server, error) {
	emu := cfg.Emulator
	if strings.TrimSpace(emu.Addr) == "" {
		return nil, errors.New("emulator addr is required")
	}
	ttl := time.Duration(emu.TokenTTLMinutes) * time.Minute
	tokens, err := auth.NewTokenIssuer(emu.JWTSecret, ttl)
	if err != nil {
		return nil, err
	}
	accounts := auth.NewStore(auth.StoreConfig{BcryptCost: emu.BcryptCost, Now: deps.Now, Logger: deps.Logger})
	linkBase := emu.VerifyLinkBase
	if linkBase == "" {
		linkBase = cfg.RedirectURL
	}
	api := httpapi.NewServer(httpapi.Config{
		VerifyLinkBase: linkBase,
		AutoVerify:     emu.AutoVerify,
		Models:         cfg.Models,
		Now:            deps.Now,
	}, accounts, tokens)
	return &emulatorServer{cfg: cfg, api: api}, nil
}

type emulatorServer struct {
	cfg ServerConfig
	api *httpapi.Server

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	done    chan struct{}
	started bool
	logger  pslog.Logger
}

func (s *emulatorServer) Addr() string { return s.cfg.Emulator.Addr }

func (s *emulatorServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("emulator start rejected", "reason", "already started")
		return errors.New("emulator already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.done = make(chan struct{})
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info("emulator start", "addr", s.cfg.Emulator.Addr, "auto_verify", s.cfg.Emulator.AutoVerify)
	go func() {
		defer close(s.done)
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.Emulator.Addr, s.api.Handler()); err != nil {
			log.Error("emulator failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *emulatorServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("emulator not started")
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		pslog.Ctx(ctx).Error("emulator stopped", "err", err)
		_ = s.Stop(context.Background())
		return err
	}
}

func (s *emulatorServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("emulator stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("emulator stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("emulator stopped")
		return nil
	}
}
