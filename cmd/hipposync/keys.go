package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"pkt.systems/hipposync/apiclient"
	"pkt.systems/hipposync/schema"
)

func newKeysCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage AI provider API keys",
		Long:  "Providers: openai, anthropic, google, tavily.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			user, err := chat.API.Me(cmd.Context())
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), newRenderer(cmd).Keys(user))
			return nil
		},
	}
	cmd.AddCommand(newKeysSetCmd(cfgPath))
	cmd.AddCommand(newKeysRemoveCmd(cfgPath))
	return cmd
}

func newKeysSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider>",
		Short: "Store a provider key (read from the terminal or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := schema.ParseProvider(args[0])
			if err != nil {
				return err
			}
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			key, err := readSecret(cmd, provider.Label()+" API key: ")
			if err != nil {
				return err
			}
			var keys schema.APIKeys
			keys.Set(provider, key)
			user, err := chat.API.UpdateAPIKeys(cmd.Context(), keys)
			if provider == schema.ProviderOpenAI && legacyKeyRoute(err) {
				user, err = chat.API.SetOpenAIKey(cmd.Context(), key)
			}
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s API key saved.\n", provider.Label())
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), newRenderer(cmd).Keys(user))
			return nil
		},
	}
}

// legacyKeyRoute reports whether the backend lacks the multi-key route.
func legacyKeyRoute(err error) bool {
	status := apiclient.StatusCode(err)
	return status == http.StatusNotFound || status == http.StatusMethodNotAllowed
}

func newKeysRemoveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <provider>",
		Aliases: []string{"rm"},
		Short:   "Remove a stored provider key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := schema.ParseProvider(args[0])
			if err != nil {
				return err
			}
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			resp, err := chat.API.DeleteAPIKey(cmd.Context(), provider)
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.Status+".")
			return nil
		},
	}
}

func newHistoryCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show what the assistant remembers across personal chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			history, err := chat.API.History(cmd.Context())
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), newRenderer(cmd).History(history))
			return nil
		},
	}
}
