package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/hipposync/internal/auth"
	"pkt.systems/hipposync/internal/authflow"
	"pkt.systems/hipposync/schema"
)

func newSignupCmd(cfgPath *string) *cobra.Command {
	var email, name, occupation string
	var noLocation bool
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient(cmd, *cfgPath)
			if err != nil {
				return err
			}
			flow, err := client.Signup()
			if err != nil {
				return err
			}
			tracker := flow.Tracker()
			if noLocation {
				tracker.Decline()
			}
			out := cmd.OutOrStdout()
			r := newRenderer(cmd)

			password, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			creds := schema.Credentials{Email: email, Password: password}
			if verr := flow.Validate(creds); verr != nil {
				_, _ = fmt.Fprintln(out, r.Errors(verr.Email.Errors))
				_, _ = fmt.Fprintln(out, r.PasswordChecklist(verr.Password))
				return verr
			}
			outcome, err := flow.Submit(cmd.Context(), schema.SignupProfile{
				Credentials: creds,
				Name:        name,
				Occupation:  occupation,
			})
			if err != nil {
				return err
			}
			if outcome.Location != nil {
				_, _ = fmt.Fprintln(out, r.Notice("Location: "+outcome.Location.Formatted))
			} else if msg := tracker.Error(); msg != "" {
				_, _ = fmt.Fprintln(out, r.Notice("Location: "+msg))
			}
			_, _ = fmt.Fprintf(out, "Check your email. We sent a verification link to %s.\n", outcome.Email)
			_, _ = fmt.Fprintln(out, "Then run: hipposync verify <link-or-token>")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&occupation, "occupation", "", "occupation")
	cmd.Flags().BoolVar(&noLocation, "no-location", false, "do not send a location")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newVerifyCmd(cfgPath *string) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "verify <link-or-token>",
		Short: "Verify an email address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient(cmd, *cfgPath)
			if err != nil {
				return err
			}
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			}
			out := cmd.OutOrStdout()
			verifier := client.Verifier(time.Second)
			result, err := verifier.Verify(cmd.Context(), authflow.TokenFromInput(raw))
			if err != nil {
				if result.Outcome == authflow.VerifyFailed {
					_, _ = fmt.Fprintln(out, "Run 'hipposync resend' for a new link or 'hipposync signup' to start over.")
				}
				return err
			}
			_, _ = fmt.Fprintln(out, result.Message)
			if result.Outcome == authflow.VerifyVerified && !noWait {
				err := verifier.Countdown(cmd.Context(), func(remaining time.Duration) {
					_, _ = fmt.Fprintf(out, "Continuing to login in %d...\n", int(remaining.Round(time.Second)/time.Second))
				})
				if err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintln(out, "Run: hipposync login --email <email>")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "skip the countdown")
	return cmd
}

func newResendCmd(cfgPath *string) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Resend the verification email",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient(cmd, *cfgPath)
			if err != nil {
				return err
			}
			resp, err := client.Resend(cmd.Context(), email)
			if err != nil {
				return err
			}
			msg := resp.Message
			if msg == "" {
				msg = "Verification email sent."
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (defaults to the last signup)")
	return cmd
}

func newLoginCmd(cfgPath *string) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient(cmd, *cfgPath)
			if err != nil {
				return err
			}
			if email == "" {
				email = client.State().PendingEmail()
			}
			if email == "" {
				return errors.New("--email is required")
			}
			password, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			user, err := client.Session().Login(cmd.Context(), schema.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newLogoutCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient(cmd, *cfgPath)
			if err != nil {
				return err
			}
			if err := client.Session().Logout(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient(cmd, *cfgPath)
			if err != nil {
				return err
			}
			token := client.State().Token()
			user, ok := client.Session().Restore(cmd.Context())
			if !ok {
				return schema.ErrNotLoggedIn
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "email:    %s\n", user.Email)
			_, _ = fmt.Fprintf(out, "verified: %t\n", user.EmailVerified)
			if exp, ok := auth.TokenExpiry(token); ok {
				_, _ = fmt.Fprintf(out, "expires:  %s\n", exp.Local().Format(time.RFC1123))
			}
			_, _ = fmt.Fprintf(out, "backend:  %s\n", strings.TrimSpace(client.API().BaseURL()))
			_, _ = fmt.Fprintf(out, "keys:     %s\n", keySummary(user))
			return nil
		},
	}
}

func keySummary(user schema.User) string {
	var set []string
	for _, p := range schema.Providers {
		if user.HasKey(p) {
			set = append(set, string(p))
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ", ")
}
