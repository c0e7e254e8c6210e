package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/hipposync/schema"
)

func newProjectsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage shared projects",
	}
	cmd.AddCommand(newProjectsListCmd(cfgPath))
	cmd.AddCommand(newProjectsCreateCmd(cfgPath))
	cmd.AddCommand(newProjectsRenameCmd(cfgPath))
	cmd.AddCommand(newProjectsDeleteCmd(cfgPath))
	cmd.AddCommand(newProjectsInviteCmd(cfgPath))
	return cmd
}

func newProjectsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			projects, err := chat.API.ListProjects(cmd.Context())
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), newRenderer(cmd).Projects(projects))
			return nil
		},
	}
}

func newProjectsCreateCmd(cfgPath *string) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			project, err := chat.API.CreateProject(cmd.Context(), strings.Join(args, " "), description)
			if err != nil {
				return client.Expire(err)
			}
			client.Events().Publish(schema.ThreadEvent{UserID: client.State().User(), Type: schema.ProjectsChanged})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created project %d: %s\n", project.ID, project.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "project description")
	return cmd
}

func newProjectsRenameCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			project, err := chat.API.RenameProject(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return client.Expire(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Renamed project %d to %s\n", project.ID, project.Name)
			return nil
		},
	}
}

func newProjectsDeleteCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and its threads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			if err := chat.API.DeleteProject(cmd.Context(), id); err != nil {
				return client.Expire(err)
			}
			if current, ok := chat.Service.CurrentThread(cmd.Context()); ok && current.InProject(id) {
				if err := client.State().SetLastThread(nil); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %d\n", id)
			return nil
		},
	}
}

func newProjectsInviteCmd(cfgPath *string) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "invite <id> <email>",
		Short: "Add a member to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			projectRole, err := schema.NormalizeProjectRole(role)
			if err != nil {
				return err
			}
			client, chat, err := openChat(cmd, *cfgPath)
			if err != nil {
				return err
			}
			status, err := chat.API.InviteMember(cmd.Context(), id, args[1], projectRole)
			if err != nil {
				return client.Expire(err)
			}
			switch status {
			case schema.InviteAlreadyMember:
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is already a member\n", args[1])
			default:
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s\n", args[1], projectRole)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "member", "owner, admin, member or viewer")
	return cmd
}
