package authflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"pkt.systems/hipposync/apiclient"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// VerifyAPI submits verification tokens.
type VerifyAPI interface {
	VerifyEmail(ctx context.Context, token string) (schema.VerifyResponse, error)
}

// VerifyOutcome is one of the three verification branches.
type VerifyOutcome string

const (
	VerifyVerified        VerifyOutcome = "verified"
	VerifyAlreadyVerified VerifyOutcome = "already-verified"
	VerifyFailed          VerifyOutcome = "failed"
)

// VerifyResult is what the landing screen renders.
type VerifyResult struct {
	Outcome VerifyOutcome
	Message string
	Email   string
	Next    Screen
}

// Verifier handles one verification link. It issues at most one call no
// matter how often Verify runs.
type Verifier struct {
	api       VerifyAPI
	countdown time.Duration
	tick      time.Duration

	once   sync.Once
	result VerifyResult
	err    error
}

// VerifierOptions tunes the post-success countdown.
type VerifierOptions struct {
	Countdown time.Duration
	Tick      time.Duration
}

// NewVerifier constructs a verifier.
func NewVerifier(api VerifyAPI, opts VerifierOptions) *Verifier {
	if opts.Countdown <= 0 {
		opts.Countdown = schema.DefaultVerifyCountdown
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	return &Verifier{api: api, countdown: opts.Countdown, tick: opts.Tick}
}

// Verify submits the token once and maps the answer to an outcome. A missing
// token fails locally without a call.
func (v *Verifier) Verify(ctx context.Context, token string) (VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return VerifyResult{
			Outcome: VerifyFailed,
			Message: "Invalid verification link. The token is missing.",
			Next:    ScreenSignup,
		}, schema.ErrMissingToken
	}
	v.once.Do(func() {
		v.result, v.err = v.verify(ctx, token)
	})
	return v.result, v.err
}

func (v *Verifier) verify(ctx context.Context, token string) (VerifyResult, error) {
	resp, err := v.api.VerifyEmail(ctx, token)
	if err != nil {
		pslog.Ctx(ctx).Warn("email verification failed", "err", err)
		return VerifyResult{Outcome: VerifyFailed, Message: apiclient.UserMessage(err), Next: ScreenCheckEmail}, err
	}
	switch resp.Status {
	case schema.VerifyStatusSuccess:
		return VerifyResult{
			Outcome: VerifyVerified,
			Message: orDefault(resp.Message, "Email verified successfully!"),
			Email:   resp.Email,
			Next:    ScreenLogin,
		}, nil
	case schema.VerifyStatusAlreadyVerified:
		return VerifyResult{
			Outcome: VerifyAlreadyVerified,
			Message: orDefault(resp.Message, "Email already verified. You can login now!"),
			Email:   resp.Email,
			Next:    ScreenLogin,
		}, nil
	default:
		return VerifyResult{
			Outcome: VerifyFailed,
			Message: orDefault(resp.Message, "Verification failed. Please request a new verification email."),
			Next:    ScreenCheckEmail,
		}, fmt.Errorf("unexpected verification status %q", resp.Status)
	}
}

// Countdown ticks down to the automatic redirect after a successful
// verification. It returns ctx.Err() if cancelled first.
func (v *Verifier) Countdown(ctx context.Context, onTick func(remaining time.Duration)) error {
	remaining := v.countdown
	if onTick != nil {
		onTick(remaining)
	}
	ticker := time.NewTicker(v.tick)
	defer ticker.Stop()
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			remaining -= v.tick
			if remaining < 0 {
				remaining = 0
			}
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
	return nil
}

// TokenFromInput accepts a bare token or a full verification link.
func TokenFromInput(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "token=") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil {
		if token := u.Query().Get("token"); token != "" {
			return token
		}
	}
	if values, err := url.ParseQuery(strings.TrimPrefix(raw, "?")); err == nil {
		return values.Get("token")
	}
	return ""
}

// ResendAPI requests fresh verification mail.
type ResendAPI interface {
	ResendVerification(ctx context.Context, email string) (schema.VerifyResponse, error)
}

// Resend requests another verification mail. The email must be known; an
// empty one is refused without a call.
func Resend(ctx context.Context, api ResendAPI, email string) (schema.VerifyResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return schema.VerifyResponse{}, schema.ErrEmailUnknown
	}
	resp, err := api.ResendVerification(ctx, email)
	if err != nil {
		pslog.Ctx(ctx).Warn("resend verification failed", "err", err)
		return schema.VerifyResponse{}, err
	}
	return resp, nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
