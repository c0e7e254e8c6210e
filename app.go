// Package hipposync composes the chat client: configuration, the REST
// client, durable state, authentication flows and the chat shell.
package hipposync

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pkt.systems/hipposync/apiclient"
	"pkt.systems/hipposync/core"
	"pkt.systems/hipposync/internal/appconfig"
	"pkt.systems/hipposync/internal/authflow"
	"pkt.systems/hipposync/internal/eventbus"
	"pkt.systems/hipposync/internal/geo"
	"pkt.systems/hipposync/internal/persist"
	"pkt.systems/hipposync/internal/version"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// ClientDeps carries optional overrides for the client compositor.
type ClientDeps struct {
	HTTPClient *http.Client
	Logger     pslog.Logger
	// EventSink also receives thread list changes, next to the internal bus.
	EventSink core.EventSink
	// Locator replaces the configured signup position source.
	Locator geo.Locator
	// Geocoder replaces the configured reverse geocoder.
	Geocoder geo.ReverseGeocoder
}

// Client wires one backend profile: an unauthenticated REST client, the
// durable state for that backend and the session derived from it.
type Client struct {
	cfg     appconfig.Config
	api     *apiclient.Client
	state   *persist.State
	bus     *eventbus.Bus
	session *authflow.Session
	sink    core.EventSink
	deps    ClientDeps
	logger  pslog.Logger
}

// NewClient builds the client compositor from configuration.
func NewClient(cfg appconfig.Config, deps ClientDeps) (*Client, error) {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	userAgent := cfg.Backend.UserAgent
	if userAgent == "" || userAgent == "hipposync-cli" {
		userAgent = version.UserAgent("hipposync-cli")
	}
	timeout := time.Duration(cfg.Backend.RequestTimeoutSeconds) * time.Second
	if cfg.Backend.RequestTimeoutSeconds == 0 {
		timeout = -1
	}
	api, err := apiclient.New(apiclient.Config{
		BaseURL:    cfg.Backend.BaseURL,
		HTTPClient: deps.HTTPClient,
		UserAgent:  userAgent,
		Timeout:    timeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	store, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
	if err != nil {
		return nil, err
	}
	profile := persist.ProfileForBaseURL(api.BaseURL())
	state := persist.NewState(store, profile, logger)
	bus := eventbus.New(logger)

	var sink core.EventSink = bus
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{bus, deps.EventSink}}
	}
	logger.Debug("client configured", "base_url", api.BaseURL(), "profile", profile)
	return &Client{
		cfg:     cfg,
		api:     api,
		state:   state,
		bus:     bus,
		session: authflow.NewSessionWithLogger(api, state, logger),
		sink:    sink,
		deps:    deps,
		logger:  logger,
	}, nil
}

// Config returns the loaded configuration.
func (c *Client) Config() appconfig.Config { return c.cfg }

// API returns the unauthenticated REST client.
func (c *Client) API() *apiclient.Client { return c.api }

// State returns the durable state accessor for this backend.
func (c *Client) State() *persist.State { return c.state }

// Session returns the login session.
func (c *Client) Session() *authflow.Session { return c.session }

// Events returns the thread change bus.
func (c *Client) Events() *eventbus.Bus { return c.bus }

// Tracker builds the signup location tracker from the geo config.
func (c *Client) Tracker() (*geo.Tracker, error) {
	geoCfg := c.cfg.Geo
	tracker := &geo.Tracker{Timezone: geoCfg.Timezone}
	if !geoCfg.Enabled {
		tracker.Decline()
		return tracker, nil
	}
	tracker.Locator = c.deps.Locator
	if tracker.Locator == nil {
		pos, err := geo.ParsePosition(geoCfg.Latitude, geoCfg.Longitude)
		if err != nil {
			return nil, err
		}
		tracker.Locator = geo.StaticLocator{Position: pos}
	}
	tracker.Geocoder = c.deps.Geocoder
	if tracker.Geocoder == nil && geoCfg.GeocoderURL != "" {
		tracker.Geocoder = geo.NominatimGeocoder{
			BaseURL:    geoCfg.GeocoderURL,
			UserAgent:  version.UserAgent("hipposync-cli"),
			HTTPClient: c.deps.HTTPClient,
		}
	}
	return tracker, nil
}

// Signup returns the signup flow.
func (c *Client) Signup() (*authflow.Signup, error) {
	tracker, err := c.Tracker()
	if err != nil {
		return nil, err
	}
	return authflow.NewSignup(c.api, signupStore{session: c.session, state: c.state}, tracker), nil
}

// signupStore clears the live session together with the durable token so a
// previous account's client does not outlive a signup.
type signupStore struct {
	session *authflow.Session
	state   *persist.State
}

func (s signupStore) ClearToken() error { return s.session.ClearToken() }

func (s signupStore) SetPendingEmail(email string) error { return s.state.SetPendingEmail(email) }

// Verifier returns the email verification flow.
func (c *Client) Verifier(tick time.Duration) *authflow.Verifier {
	countdown := time.Duration(c.cfg.Verify.CountdownSeconds) * time.Second
	return authflow.NewVerifier(c.api, authflow.VerifierOptions{Countdown: countdown, Tick: tick})
}

// Resend requests another verification email, defaulting to the address
// remembered from the last signup.
func (c *Client) Resend(ctx context.Context, email string) (schema.VerifyResponse, error) {
	if email == "" {
		email = c.state.PendingEmail()
	}
	return authflow.Resend(ctx, c.api, email)
}

// Chat is an authenticated chat shell.
type Chat struct {
	Service core.Service
	Sidebar *core.Sidebar
	API     *apiclient.Client
	User    schema.User
}

// OpenChat returns the chat shell for the stored session. probe checks the
// token with the backend first and clears it when rejected.
func (c *Client) OpenChat(ctx context.Context, probe bool) (*Chat, error) {
	var user schema.User
	if probe {
		restored, ok := c.session.Restore(ctx)
		if !ok {
			return nil, schema.ErrNotLoggedIn
		}
		user = restored
	}
	api, err := c.session.Client()
	if err != nil {
		return nil, err
	}
	userID := c.state.User()
	if user.Email != "" {
		userID = schema.UserID(user.Email)
	}
	if c.state.Snapshot().Settings == nil {
		if err := c.state.SetSettings(c.cfg.ChatSettings()); err != nil {
			c.logger.Warn("client seed settings failed", "err", err)
		}
	}
	service, err := core.NewService(core.ServiceConfig{UserID: userID}, core.ServiceDeps{
		Backend:   api,
		Store:     c.state,
		EventSink: c.sink,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, err
	}
	return &Chat{
		Service: service,
		Sidebar: core.NewSidebar(api, c.bus, userID, c.logger),
		API:     api,
		User:    user,
	}, nil
}

// ErrSessionExpired is returned by callers that map 401 responses to a
// forced logout.
var ErrSessionExpired = errors.New("session expired; log in again")

// Expire clears the session after the backend rejected the token.
func (c *Client) Expire(err error) error {
	if !errors.Is(err, schema.ErrUnauthorized) {
		return err
	}
	c.session.Invalidate()
	return ErrSessionExpired
}
