package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/hipposync"
	"pkt.systems/hipposync/schema"
)

func newThreadsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "threads",
		Aliases: []string{"thread"},
		Short:   "Manage chat threads",
	}
	cmd.AddCommand(newThreadsListCmd(cfgPath))
	cmd.AddCommand(newThreadsNewCmd(cfgPath))
	cmd.AddCommand(newThreadsSelectCmd(cfgPath))
	cmd.AddCommand(newThreadsShowCmd(cfgPath))
	cmd.AddCommand(newThreadsRenameCmd(cfgPath))
	cmd.AddCommand(newThreadsDeleteCmd(cfgPath))
	return cmd
}

func newThreadsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List personal and project threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			tree, err := chat.Sidebar.Refresh(cmd.Context())
			if err != nil {
				return client.Expire(err)
			}
			current, _ := chat.Service.CurrentThread(cmd.Context())
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), newRenderer(cmd).Tree(tree, current.ID))
			return nil
		},
	}
}

func newThreadsNewCmd(cfgPath *string) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a thread and select it",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := schema.NewThreadRequest{Title: strings.Join(args, " ")}
			if project != "" {
				id, err := parseProjectID(project)
				if err != nil {
					return err
				}
				req.ProjectID = &id
			}
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			resp, err := chat.Service.NewThread(cmd.Context(), req)
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created thread %d: %s\n", resp.Thread.ID, resp.Thread.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "create the thread inside this project")
	return cmd
}

// selectByID finds the thread in the sidebar tree and selects it.
func selectByID(cmd *cobra.Command, client *hipposync.Client, chat *hipposync.Chat, raw string) (schema.SelectThreadResponse, error) {
	id, err := parseThreadID(raw)
	if err != nil {
		return schema.SelectThreadResponse{}, err
	}
	tree, err := chat.Sidebar.Refresh(cmd.Context())
	if err != nil {
		return schema.SelectThreadResponse{}, client.Expire(err)
	}
	thread, ok := tree.Find(id)
	if !ok {
		return schema.SelectThreadResponse{}, fmt.Errorf("thread %d not found", id)
	}
	resp, err := chat.Service.SelectThread(cmd.Context(), schema.SelectThreadRequest{Thread: thread})
	if err != nil {
		return resp, client.Expire(err)
	}
	return resp, nil
}

func newThreadsSelectCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Select a thread and show its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			resp, err := selectByID(cmd, client, chat, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			r := newRenderer(cmd)
			_, _ = fmt.Fprintln(out, r.Notice(fmt.Sprintf("# %d %s", resp.Thread.ID, resp.Thread.Title)))
			_, _ = fmt.Fprintln(out, r.Messages(resp.Messages))
			return nil
		},
	}
}

func newThreadsShowCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the selected thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			current, ok := chat.Service.CurrentThread(cmd.Context())
			if !ok {
				return schema.ErrNoThreadSelected
			}
			resp, err := chat.Service.SelectThread(cmd.Context(), schema.SelectThreadRequest{Thread: current})
			if err != nil {
				return client.Expire(err)
			}
			out := cmd.OutOrStdout()
			r := newRenderer(cmd)
			_, _ = fmt.Fprintln(out, r.Notice(fmt.Sprintf("# %d %s", resp.Thread.ID, resp.Thread.Title)))
			_, _ = fmt.Fprintln(out, r.Messages(resp.Messages))
			return nil
		},
	}
}

func newThreadsRenameCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <title>",
		Short: "Rename the selected thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			resp, err := chat.Service.RenameThread(cmd.Context(), schema.RenameThreadRequest{Title: strings.Join(args, " ")})
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Renamed thread %d to %s\n", resp.Thread.ID, resp.Thread.Title)
			return nil
		},
	}
}

func newThreadsDeleteCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete the selected thread, or the given one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if _, err := selectByID(cmd, client, chat, args[0]); err != nil {
					return err
				}
			}
			resp, err := chat.Service.DeleteThread(cmd.Context(), schema.DeleteThreadRequest{})
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted thread %d\n", resp.Thread.ID)
			return nil
		},
	}
}
