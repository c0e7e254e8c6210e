package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"pkt.systems/hipposync/internal/validate"
	"pkt.systems/hipposync/schema"
)

// UpdateAPIKeys stores provider keys on the backend. Key formats are checked
// locally first and a bad key is never sent.
func (c *Client) UpdateAPIKeys(ctx context.Context, keys schema.APIKeys) (schema.User, error) {
	for _, p := range schema.Providers {
		keys.Set(p, strings.TrimSpace(keys.Get(p)))
	}
	if err := validate.ValidateAPIKeys(keys); err != nil {
		return schema.User{}, err
	}
	req, err := c.jsonRequest(http.MethodPut, "/auth/api-keys", keys)
	if err != nil {
		return schema.User{}, err
	}
	var user schema.User
	if err := c.do(ctx, req, &user); err != nil {
		return schema.User{}, err
	}
	return user, nil
}

// SetOpenAIKey uses the single-key route older backends expose.
func (c *Client) SetOpenAIKey(ctx context.Context, key string) (schema.User, error) {
	key = strings.TrimSpace(key)
	if err := validate.ValidateAPIKey(schema.ProviderOpenAI, key); err != nil {
		return schema.User{}, err
	}
	req := request{
		method: http.MethodPut,
		path:   "/auth/api-key",
		query:  url.Values{"openai_api_key": []string{key}},
		auth:   true,
	}
	var user schema.User
	if err := c.do(ctx, req, &user); err != nil {
		return schema.User{}, err
	}
	return user, nil
}

// DeleteAPIKey removes the stored key for one provider.
func (c *Client) DeleteAPIKey(ctx context.Context, provider schema.Provider) (schema.KeyRemoved, error) {
	provider, err := schema.ParseProvider(string(provider))
	if err != nil {
		return schema.KeyRemoved{}, err
	}
	var resp schema.KeyRemoved
	path := "/auth/api-key/" + url.PathEscape(string(provider))
	if err := c.do(ctx, request{method: http.MethodDelete, path: path, auth: true}, &resp); err != nil {
		return schema.KeyRemoved{}, err
	}
	return resp, nil
}

// History fetches the items the memory service remembers for the user.
func (c *Client) History(ctx context.Context) (schema.History, error) {
	var history schema.History
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/history", auth: true}, &history); err != nil {
		return schema.History{}, err
	}
	return history, nil
}
