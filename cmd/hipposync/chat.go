package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"pkt.systems/hipposync"
	"pkt.systems/hipposync/core"
	"pkt.systems/hipposync/internal/render"
	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

const chatHelp = `Commands:
  /new [title]        start a new thread
  /threads            list threads
  /select <id>        switch to a thread
  /rename <title>     rename the current thread
  /delete             delete the current thread
  /model [name]       show or set the model
  /temp <0-2>         set the temperature
  /system [prompt]    set or clear the system prompt
  /file <path>        attach a file to the next message
  /help               show this help
  /quit               leave`

func newChatCmd(cfgPath *string) *cobra.Command {
	var prefs prefsFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient(cmd, *cfgPath)
			if err != nil {
				return err
			}
			chat, err := client.OpenChat(cmd.Context(), true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(prefs.apply(cmd))
			defer cancel()

			repl := &chatREPL{
				client: client,
				chat:   chat,
				r:      newRenderer(cmd),
				out:    cmd.OutOrStdout(),
			}
			go func() {
				_ = chat.Sidebar.Watch(ctx, func(_ core.Tree, err error) {
					if err != nil {
						pslog.Ctx(ctx).Debug("chat sidebar refresh failed", "err", err)
					}
				})
			}()
			return repl.run(ctx, filepath.Join(client.Config().StateDir, "chat_history"))
		},
	}
	prefs.register(cmd)
	return cmd
}

type chatREPL struct {
	client  *hipposync.Client
	chat    *hipposync.Chat
	r       *render.Renderer
	out     io.Writer
	pending *schema.FileUpload
}

func (c *chatREPL) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *chatREPL) run(ctx context.Context, historyPath string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	c.printf("Logged in as %s. Type /help for commands.\n", c.chat.User.Email)
	if current, ok := c.chat.Service.CurrentThread(ctx); ok {
		c.selectThread(ctx, current)
	}
	if _, err := c.chat.Sidebar.Refresh(ctx); err != nil {
		pslog.Ctx(ctx).Debug("chat sidebar refresh failed", "err", err)
	}

	for {
		input, err := line.Prompt(c.prompt(ctx))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				c.printf("\n")
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		quit, err := c.handle(ctx, input)
		if err != nil {
			if errors.Is(c.client.Expire(err), hipposync.ErrSessionExpired) {
				return hipposync.ErrSessionExpired
			}
			c.printf("%s\n", c.r.Errors([]string{describeError(err)}))
		}
		if quit {
			return nil
		}
	}
}

func (c *chatREPL) prompt(ctx context.Context) string {
	label := "new"
	if current, ok := c.chat.Service.CurrentThread(ctx); ok {
		label = strconv.FormatInt(int64(current.ID), 10)
	}
	if c.pending != nil {
		label += " +" + c.pending.Name
	}
	return fmt.Sprintf("[%s] > ", label)
}

func (c *chatREPL) handle(ctx context.Context, input string) (bool, error) {
	if !strings.HasPrefix(input, "/") {
		return false, c.send(ctx, input)
	}
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	svc := c.chat.Service
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		c.printf("%s\n", chatHelp)
	case "/new":
		resp, err := svc.NewThread(ctx, schema.NewThreadRequest{Title: arg})
		if err != nil {
			return false, err
		}
		c.printf("%s\n", c.r.Notice(fmt.Sprintf("# %d %s", resp.Thread.ID, resp.Thread.Title)))
	case "/threads":
		tree, err := c.chat.Sidebar.Refresh(ctx)
		if err != nil {
			return false, err
		}
		current, _ := svc.CurrentThread(ctx)
		c.printf("%s\n", c.r.Tree(tree, current.ID))
	case "/select":
		id, err := parseThreadID(arg)
		if err != nil {
			return false, err
		}
		thread, ok := c.chat.Sidebar.Tree().Find(id)
		if !ok {
			tree, err := c.chat.Sidebar.Refresh(ctx)
			if err != nil {
				return false, err
			}
			if thread, ok = tree.Find(id); !ok {
				return false, fmt.Errorf("thread %d not found", id)
			}
		}
		c.selectThread(ctx, thread)
	case "/rename":
		resp, err := svc.RenameThread(ctx, schema.RenameThreadRequest{Title: arg})
		if err != nil {
			return false, err
		}
		c.printf("%s\n", c.r.Notice("renamed to "+resp.Thread.Title))
	case "/delete":
		resp, err := svc.DeleteThread(ctx, schema.DeleteThreadRequest{})
		if err != nil {
			return false, err
		}
		c.printf("%s\n", c.r.Notice(fmt.Sprintf("deleted thread %d", resp.Thread.ID)))
	case "/model", "/temp", "/system":
		return false, c.updateSettings(ctx, name, arg)
	case "/file":
		if arg == "" {
			c.pending = nil
			return false, nil
		}
		upload, err := readUpload(arg)
		if err != nil {
			return false, err
		}
		c.pending = upload
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func (c *chatREPL) selectThread(ctx context.Context, thread schema.Thread) {
	resp, err := c.chat.Service.SelectThread(ctx, schema.SelectThreadRequest{Thread: thread})
	if err != nil {
		c.printf("%s\n", c.r.Errors([]string{describeError(err)}))
		return
	}
	c.printf("%s\n", c.r.Notice(fmt.Sprintf("# %d %s", resp.Thread.ID, resp.Thread.Title)))
	if len(resp.Messages) > 0 {
		c.printf("%s\n", c.r.Messages(resp.Messages))
	}
}

func (c *chatREPL) send(ctx context.Context, text string) error {
	upload := c.pending
	c.pending = nil
	resp, err := c.chat.Service.SendMessage(ctx, schema.SendMessageRequest{Text: text, File: upload})
	for _, msg := range resp.Appended {
		if msg.Role == schema.RoleAssistant {
			c.printf("%s\n", c.r.Message(msg))
		}
	}
	if err != nil && len(resp.Appended) > 0 && !errors.Is(err, schema.ErrUnauthorized) {
		// Already shown inline.
		return nil
	}
	return err
}

func (c *chatREPL) updateSettings(ctx context.Context, name, arg string) error {
	svc := c.chat.Service
	// Session overrides stay out of the stored settings.
	settings := c.client.State().Settings()
	switch name {
	case "/model":
		if arg == "" {
			c.printf("%s\n", svc.Settings(ctx).Model)
			return nil
		}
		model, err := schema.NormalizeModelID(arg)
		if err != nil {
			return err
		}
		settings.Model = model
	case "/temp":
		temp, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", arg)
		}
		settings.Temperature = temp
	case "/system":
		settings.SystemPrompt = arg
	}
	updated, err := svc.UpdateSettings(ctx, settings)
	if err != nil {
		return err
	}
	printSettings(c.out, updated)
	return nil
}
