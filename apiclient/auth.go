package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"pkt.systems/hipposync/schema"
)

type signupPayload struct {
	Email             string  `json:"email"`
	Password          string  `json:"password"`
	Name              *string `json:"name,omitempty"`
	Occupation        *string `json:"occupation,omitempty"`
	LocationCity      *string `json:"location_city,omitempty"`
	LocationState     *string `json:"location_state,omitempty"`
	LocationCountry   *string `json:"location_country,omitempty"`
	LocationLatitude  *string `json:"location_latitude,omitempty"`
	LocationLongitude *string `json:"location_longitude,omitempty"`
	LocationTimezone  *string `json:"location_timezone,omitempty"`
	LocationFormatted *string `json:"location_formatted,omitempty"`
}

func newSignupPayload(profile schema.SignupProfile) signupPayload {
	payload := signupPayload{
		Email:      strings.TrimSpace(profile.Email),
		Password:   profile.Password,
		Name:       schema.NormalizeOptional(profile.Name),
		Occupation: schema.NormalizeOptional(profile.Occupation),
	}
	if loc := profile.Location; loc != nil {
		payload.LocationCity = schema.NormalizeOptional(loc.City)
		payload.LocationState = schema.NormalizeOptional(loc.State)
		payload.LocationCountry = schema.NormalizeOptional(loc.Country)
		payload.LocationLatitude = schema.NormalizeOptional(loc.Latitude)
		payload.LocationLongitude = schema.NormalizeOptional(loc.Longitude)
		payload.LocationTimezone = schema.NormalizeOptional(loc.Timezone)
		payload.LocationFormatted = schema.NormalizeOptional(loc.Formatted)
	}
	return payload
}

// Signup registers a new account. The account stays unverified until the
// emailed link is followed.
func (c *Client) Signup(ctx context.Context, profile schema.SignupProfile) (schema.User, error) {
	req, err := c.jsonRequest(http.MethodPost, "/auth/signup", newSignupPayload(profile))
	if err != nil {
		return schema.User{}, err
	}
	req.auth = false
	var user schema.User
	if err := c.do(ctx, req, &user); err != nil {
		return schema.User{}, err
	}
	return user, nil
}

// Login exchanges credentials for a bearer token using a form-encoded body.
func (c *Client) Login(ctx context.Context, creds schema.Credentials) (schema.Token, error) {
	form := url.Values{}
	form.Set("username", strings.TrimSpace(creds.Email))
	form.Set("password", creds.Password)
	req := request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}
	var token schema.Token
	if err := c.do(ctx, req, &token); err != nil {
		return schema.Token{}, err
	}
	return token, nil
}

// Me fetches the current user for the attached token.
func (c *Client) Me(ctx context.Context) (schema.User, error) {
	var user schema.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", auth: true}, &user); err != nil {
		return schema.User{}, err
	}
	return user, nil
}

// VerifyEmail submits a verification token from an emailed link.
func (c *Client) VerifyEmail(ctx context.Context, token string) (schema.VerifyResponse, error) {
	query := url.Values{}
	query.Set("token", token)
	var resp schema.VerifyResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/verify-email", query: query}, &resp); err != nil {
		return schema.VerifyResponse{}, err
	}
	return resp, nil
}

// ResendVerification asks the backend to mail a fresh verification link.
// The email is sent both as a JSON body and as a query parameter since
// backends differ in where they read it.
func (c *Client) ResendVerification(ctx context.Context, email string) (schema.VerifyResponse, error) {
	email = strings.TrimSpace(email)
	req, err := c.jsonRequest(http.MethodPost, "/auth/resend-verification", map[string]string{"email": email})
	if err != nil {
		return schema.VerifyResponse{}, err
	}
	req.auth = false
	req.query = url.Values{"email": []string{email}}
	var resp schema.VerifyResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return schema.VerifyResponse{}, err
	}
	return resp, nil
}
