package schema

import "strings"

// Provider names a third-party service the backend calls with the user's key.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderTavily    Provider = "tavily"
)

// Providers lists the providers in display order.
var Providers = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderTavily}

// ParseProvider accepts a provider name in any case.
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", ErrInvalidProvider
}

// Label is the provider's display name.
func (p Provider) Label() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderGoogle:
		return "Google"
	case ProviderTavily:
		return "Tavily"
	}
	return string(p)
}

// APIKeys is the body of a key update. Empty fields are left unchanged.
type APIKeys struct {
	OpenAI    string `json:"openai_api_key,omitempty"`
	Anthropic string `json:"anthropic_api_key,omitempty"`
	Google    string `json:"google_api_key,omitempty"`
	Tavily    string `json:"tavily_api_key,omitempty"`
}

// Get returns the key for a provider.
func (k APIKeys) Get(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return k.OpenAI
	case ProviderAnthropic:
		return k.Anthropic
	case ProviderGoogle:
		return k.Google
	case ProviderTavily:
		return k.Tavily
	}
	return ""
}

// Set stores the key for a provider.
func (k *APIKeys) Set(p Provider, key string) {
	switch p {
	case ProviderOpenAI:
		k.OpenAI = key
	case ProviderAnthropic:
		k.Anthropic = key
	case ProviderGoogle:
		k.Google = key
	case ProviderTavily:
		k.Tavily = key
	}
}

// Empty reports whether no key is set.
func (k APIKeys) Empty() bool {
	return k == APIKeys{}
}

// HasKey reports whether the backend holds a key for the provider.
func (u User) HasKey(p Provider) bool {
	switch p {
	case ProviderOpenAI:
		return u.HasOpenAIKey
	case ProviderAnthropic:
		return u.HasAnthropicKey
	case ProviderGoogle:
		return u.HasGoogleKey
	case ProviderTavily:
		return u.HasTavilyKey
	}
	return false
}

// KeyRemoved is the response of a key deletion.
type KeyRemoved struct {
	Status string `json:"status"`
}

// HistoryItem is one remembered item from the memory service.
type HistoryItem struct {
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// History is the user's remembered items across personal threads.
type History struct {
	Items         []HistoryItem `json:"history"`
	Total         int           `json:"total"`
	SemanticCount int           `json:"semantic_count"`
	EpisodicCount int           `json:"episodic_count"`
	Error         string        `json:"error,omitempty"`
}
