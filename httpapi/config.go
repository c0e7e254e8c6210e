package httpapi

import (
	"time"

	"pkt.systems/hipposync/schema"
)

// Config configures the backend emulator.
type Config struct {
	// VerifyLinkBase is the page the emailed verification link points at.
	VerifyLinkBase string
	// AutoVerify marks new accounts verified at signup.
	AutoVerify bool
	// Models is the list served by /models.
	Models []schema.ModelID
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// DefaultModels is served when no model list is configured.
var DefaultModels = []schema.ModelID{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"}
