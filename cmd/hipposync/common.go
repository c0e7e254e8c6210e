package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/hipposync"
	"pkt.systems/hipposync/apiclient"
	"pkt.systems/hipposync/internal/appconfig"
	"pkt.systems/hipposync/internal/authflow"
	"pkt.systems/hipposync/internal/render"
	"pkt.systems/hipposync/internal/validate"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

func loadClient(cmd *cobra.Command, cfgPath string) (*hipposync.Client, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return hipposync.NewClient(cfg, hipposync.ClientDeps{Logger: pslog.Ctx(cmd.Context())})
}

// openChat opens the chat shell for the stored session without probing it.
// A 401 later on clears the session.
func openChat(cmd *cobra.Command, cfgPath string) (*hipposync.Client, *hipposync.Chat, error) {
	client, err := loadClient(cmd, cfgPath)
	if err != nil {
		return nil, nil, err
	}
	chat, err := client.OpenChat(cmd.Context(), false)
	if err != nil {
		return nil, nil, err
	}
	return client, chat, nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newRenderer(cmd *cobra.Command) *render.Renderer {
	out := cmd.OutOrStdout()
	width := 80
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w - 4
		}
	}
	return render.New(render.Options{Color: isTerminal(out), Width: width})
}

// readSecret reads a password without echo from a terminal, or one line from
// a pipe.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), prompt)
		data, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(data), nil
	}
	return readLine(in)
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describeError turns an error into the line shown to the user.
func describeError(err error) string {
	var verr *authflow.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, schema.ErrNotLoggedIn), errors.Is(err, hipposync.ErrSessionExpired):
		return err.Error() + " (run: hipposync login)"
	case errors.Is(err, schema.ErrValidation):
		return validate.KeyMessage(err)
	default:
		return apiclient.UserMessage(err)
	}
}

func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "error: %s\n", describeError(err))
}

func parseThreadID(raw string) (schema.ThreadID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid thread id %q", raw)
	}
	return schema.ThreadID(id), nil
}

func parseProjectID(raw string) (schema.ProjectID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", raw)
	}
	return schema.ProjectID(id), nil
}
