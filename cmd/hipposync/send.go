package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/hipposync/internal/sessionprefs"
	"pkt.systems/hipposync/schema"
)

// prefsFlags are per-invocation chat overrides that are never persisted.
type prefsFlags struct {
	model       string
	temperature float64
	system      string
}

func (p *prefsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.model, "model", "", "model for this invocation")
	cmd.Flags().Float64Var(&p.temperature, "temperature", 0, "temperature for this invocation (0-2)")
	cmd.Flags().StringVar(&p.system, "system", "", "system prompt for this invocation")
}

func (p *prefsFlags) apply(cmd *cobra.Command) context.Context {
	prefs := sessionprefs.New()
	if cmd.Flags().Changed("model") {
		model := schema.ModelID(p.model)
		prefs.Model = &model
	}
	if cmd.Flags().Changed("temperature") {
		temp := p.temperature
		prefs.Temperature = &temp
	}
	if cmd.Flags().Changed("system") {
		system := p.system
		prefs.SystemPrompt = &system
	}
	return sessionprefs.WithContext(cmd.Context(), prefs)
}

func readUpload(path string) (*schema.FileUpload, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &schema.FileUpload{Name: filepath.Base(path), Data: data}, nil
}

func newSendCmd(cfgPath *string) *cobra.Command {
	var file string
	var prefs prefsFlags
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send one message to the selected thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" || (text == "" && file == "" && !isTerminal(cmd.InOrStdin())) {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(data))
			}
			upload, err := readUpload(file)
			if err != nil {
				return err
			}
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			resp, err := chat.Service.SendMessage(prefs.apply(cmd), schema.SendMessageRequest{Text: text, File: upload})
			if err != nil {
				return client.Expire(err)
			}
			r := newRenderer(cmd)
			out := cmd.OutOrStdout()
			if resp.ThreadCreated {
				_, _ = fmt.Fprintln(out, r.Notice(fmt.Sprintf("# new thread %d %s", resp.Thread.ID, resp.Thread.Title)))
			}
			for _, msg := range resp.Appended {
				if msg.Role == schema.RoleAssistant {
					_, _ = fmt.Fprintln(out, r.Message(msg))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "attach a file")
	prefs.register(cmd)
	return cmd
}

func newModelsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			models, err := chat.API.Models(cmd.Context())
			if err != nil {
				return client.Expire(err)
			}
			current := chat.Service.Settings(cmd.Context()).Model
			for _, model := range models {
				marker := "  "
				if model == current {
					marker = "* "
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), marker+string(model))
			}
			return nil
		},
	}
}

func newSettingsCmd(cfgPath *string) *cobra.Command {
	var model, system string
	var temperature float64
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored chat settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			settings := chat.Service.Settings(ctx)
			flags := cmd.Flags()
			if flags.Changed("model") || flags.Changed("temperature") || flags.Changed("system") {
				if flags.Changed("model") {
					normalized, err := schema.NormalizeModelID(model)
					if err != nil {
						return err
					}
					settings.Model = normalized
				}
				if flags.Changed("temperature") {
					settings.Temperature = temperature
				}
				if flags.Changed("system") {
					settings.SystemPrompt = system
				}
				if settings, err = chat.Service.UpdateSettings(ctx, settings); err != nil {
					return err
				}
			}
			printSettings(cmd.OutOrStdout(), settings)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "default model")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "default temperature (0-2)")
	cmd.Flags().StringVar(&system, "system", "", "default system prompt")
	return cmd
}

func printSettings(w io.Writer, settings schema.Settings) {
	_, _ = fmt.Fprintf(w, "model:       %s\n", settings.Model)
	_, _ = fmt.Fprintf(w, "temperature: %s\n", strconv.FormatFloat(settings.Temperature, 'f', -1, 64))
	if settings.SystemPrompt != "" {
		_, _ = fmt.Fprintf(w, "system:      %s\n", settings.SystemPrompt)
	}
}
