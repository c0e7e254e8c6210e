package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/hipposync/internal/validate"
	"pkt.systems/hipposync/schema"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate signup fields locally",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "email <address>",
		Short: "Check an email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := validate.ValidateEmail(args[0])
			if result.Valid {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), newRenderer(cmd).Errors(result.Errors))
			return schema.ErrValidation
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "password",
		Short: "Check a password read from the terminal or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			result := validate.ValidatePassword(password)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), newRenderer(cmd).PasswordChecklist(result))
			if len([]rune(password)) > schema.MaxPasswordLength {
				return fmt.Errorf("password must be at most %d characters", schema.MaxPasswordLength)
			}
			if !result.Valid {
				return errors.New(strings.Join(result.Errors, "; "))
			}
			return nil
		},
	})
	return cmd
}
