package validate

import (
	"fmt"
	"strings"

	"pkt.systems/hipposync/schema"
)

var keyPrefixes = map[schema.Provider]string{
	schema.ProviderOpenAI:    "sk-",
	schema.ProviderAnthropic: "sk-ant-",
	schema.ProviderGoogle:    "AIza",
	schema.ProviderTavily:    "tvly-",
}

// KeyPrefix returns the prefix every key of the provider starts with.
func KeyPrefix(p schema.Provider) string {
	return keyPrefixes[p]
}

// ValidateAPIKey checks the key format for a provider. The message matches the
// one the backend returns for the same mistake.
func ValidateAPIKey(p schema.Provider, key string) error {
	prefix, ok := keyPrefixes[p]
	if !ok {
		return schema.ErrInvalidProvider
	}
	key = strings.TrimSpace(key)
	if len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("%w: Invalid %s API key format. Key should start with '%s'", schema.ErrValidation, p.Label(), prefix)
	}
	return nil
}

// ValidateAPIKeys checks every non-empty key in order and returns the first
// failure. An update with no keys at all is rejected.
func ValidateAPIKeys(keys schema.APIKeys) error {
	if keys.Empty() {
		return schema.ErrNoAPIKeys
	}
	for _, p := range schema.Providers {
		if key := keys.Get(p); key != "" {
			if err := ValidateAPIKey(p, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// KeyMessage strips the validation prefix so the message can be shown as is.
func KeyMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, schema.ErrValidation.Error()+": "); ok {
		return rest
	}
	return msg
}
