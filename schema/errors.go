package schema

import "errors"

var (
	// ErrValidation indicates local form validation failed and nothing was sent.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates the backend rejected the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotLoggedIn indicates no session token is stored.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrMissingToken indicates a verification link without a token.
	ErrMissingToken = errors.New("verification token is missing")
	// ErrEmailUnknown indicates a resend was requested without a known email.
	ErrEmailUnknown = errors.New("email address is unknown; sign up again or pass --email")
	// ErrVerifyInProgress indicates the verification call was already issued.
	ErrVerifyInProgress = errors.New("verification already requested")
	// ErrNoThreadSelected indicates an action needs a selected thread.
	ErrNoThreadSelected = errors.New("no chat selected")
	// ErrEmptyMessage indicates neither text nor file was provided.
	ErrEmptyMessage = errors.New("message or file is required")
	// ErrInvalidRole indicates an unsupported project role.
	ErrInvalidRole = errors.New("role must be one of owner, admin, member, viewer")
	// ErrInvalidTitle indicates an empty thread or project title.
	ErrInvalidTitle = errors.New("title is required")
	// ErrLocationDenied indicates the user or platform refused location access.
	ErrLocationDenied = errors.New("location permission denied")
	// ErrInvalidProvider indicates an unknown API key provider.
	ErrInvalidProvider = errors.New("provider must be one of openai, anthropic, google, tavily")
	// ErrNoAPIKeys indicates a key update carried no key.
	ErrNoAPIKeys = errors.New("no API keys provided")
	// ErrLocationUnsupported indicates no position source is available.
	ErrLocationUnsupported = errors.New("geolocation is not supported")
)
