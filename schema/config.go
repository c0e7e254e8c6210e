package schema

import (
	"strings"
	"time"
)

const (
	// DefaultModel is used when no model preference is stored.
	DefaultModel ModelID = "gpt-4o-mini"
	// DefaultTemperature is used when no temperature preference is stored.
	DefaultTemperature = 1.0
	// DefaultThreadTitle is the title given to lazily created threads.
	DefaultThreadTitle = "New chat"
	// DefaultVerifyCountdown is the delay before a verified user is sent to login.
	DefaultVerifyCountdown = 3 * time.Second
	// MaxPasswordLength is the longest password the backend accepts.
	MaxPasswordLength = 128
)

// DefaultSettings returns chat settings with defaults applied.
func DefaultSettings() Settings {
	return Settings{Model: DefaultModel, Temperature: DefaultTemperature}
}

// NormalizeSettings fills unset fields with defaults and clamps temperature to [0, 2].
func NormalizeSettings(s Settings) Settings {
	s.Model = ModelID(strings.TrimSpace(string(s.Model)))
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.Temperature < 0 {
		s.Temperature = 0
	}
	if s.Temperature > 2 {
		s.Temperature = 2
	}
	return s
}

// NormalizeProjectRole validates a role name, defaulting to member.
func NormalizeProjectRole(value string) (ProjectRole, error) {
	switch role := ProjectRole(strings.ToLower(strings.TrimSpace(value))); role {
	case "":
		return ProjectRoleMember, nil
	case ProjectRoleOwner, ProjectRoleAdmin, ProjectRoleMember, ProjectRoleViewer:
		return role, nil
	default:
		return "", ErrInvalidRole
	}
}
