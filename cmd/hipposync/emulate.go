package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/hipposync"
	"pkt.systems/hipposync/internal/appconfig"
	"pkt.systems/pslog"
)

func newEmulateCmd(cfgPath *string) *cobra.Command {
	var addr string
	var autoVerify bool
	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Run a local in-memory backend for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Emulator.Addr = addr
			}
			if cmd.Flags().Changed("auto-verify") {
				cfg.Emulator.AutoVerify = autoVerify
			}
			ctx := withLogger(cmd.Context(), pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel})
			srv, err := hipposync.NewServer(hipposync.ServerConfig{
				Emulator:    cfg.Emulator,
				RedirectURL: cfg.Verify.RedirectURL,
			}, hipposync.ServerDeps{Logger: pslog.Ctx(ctx)})
			if err != nil {
				return err
			}
			if err := srv.Start(ctx); err != nil {
				return err
			}
			err = srv.Wait()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(stopCtx)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().BoolVar(&autoVerify, "auto-verify", false, "mark new accounts verified at signup")
	return cmd
}
