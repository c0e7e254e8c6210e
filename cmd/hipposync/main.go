package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	ctx = withLogger(ctx, pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.WarnLevel})

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root.ErrOrStderr(), err)
		pslog.Ctx(ctx).With("err", err).Debug("hipposync command failed")
		return 1
	}
	return 0
}

// withLogger attaches an env-configurable console logger to ctx and routes
// the standard log package through it.
func withLogger(ctx context.Context, opts pslog.Options) context.Context {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(opts),
	)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)
	return pslog.ContextWithLogger(ctx, logger)
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "hipposync",
		Short:         "HippoSync chat client",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	root.AddCommand(newConfigCmd(&cfgPath))
	root.AddCommand(newSignupCmd(&cfgPath))
	root.AddCommand(newVerifyCmd(&cfgPath))
	root.AddCommand(newResendCmd(&cfgPath))
	root.AddCommand(newLoginCmd(&cfgPath))
	root.AddCommand(newLogoutCmd(&cfgPath))
	root.AddCommand(newWhoamiCmd(&cfgPath))
	root.AddCommand(newThreadsCmd(&cfgPath))
	root.AddCommand(newProjectsCmd(&cfgPath))
	root.AddCommand(newSendCmd(&cfgPath))
	root.AddCommand(newChatCmd(&cfgPath))
	root.AddCommand(newModelsCmd(&cfgPath))
	root.AddCommand(newSettingsCmd(&cfgPath))
	root.AddCommand(newKeysCmd(&cfgPath))
	root.AddCommand(newHistoryCmd(&cfgPath))
	root.AddCommand(newCheckCmd())
	root.AddCommand(newEmulateCmd(&cfgPath))
	root.AddCommand(newVersionCmd())

	return root
}
