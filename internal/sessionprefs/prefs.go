package sessionprefs

import (
	"context"

	"pkt.systems/hipposync/schema"
)

// Prefs captures per-invocation chat overrides that are not persisted.
type Prefs struct {
	Model        *schema.ModelID
	Temperature  *float64
	SystemPrompt *string
}

type prefsKey struct{}

// New returns a new Prefs instance with no overrides.
func New() *Prefs {
	return &Prefs{}
}

// Apply overlays the overrides on persisted settings.
func (p *Prefs) Apply(settings schema.Settings) schema.Settings {
	if p == nil {
		return settings
	}
	if p.Model != nil && *p.Model != "" {
		settings.Model = *p.Model
	}
	if p.Temperature != nil {
		settings.Temperature = *p.Temperature
	}
	if p.SystemPrompt != nil {
		settings.SystemPrompt = *p.SystemPrompt
	}
	return schema.NormalizeSettings(settings)
}

// WithContext stores prefs in the context.
func WithContext(ctx context.Context, prefs *Prefs) context.Context {
	if ctx == nil || prefs == nil {
		return ctx
	}
	return context.WithValue(ctx, prefsKey{}, prefs)
}

// FromContext returns the prefs stored in the context, if any.
func FromContext(ctx context.Context) *Prefs {
	if ctx == nil {
		return nil
	}
	if value := ctx.Value(prefsKey{}); value != nil {
		if prefs, ok := value.(*Prefs); ok {
			return prefs
		}
	}
	return nil
}
