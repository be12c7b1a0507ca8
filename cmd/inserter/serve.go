package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/inserter/pkg/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var keepCache bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local prompt API for editor integrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			srv := server.New(a.cfg.Listen, a.session, a.client, a.log.With().Str("component", "server").Logger())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.log.Info().Str("config", flags.configPath).Msg("starting inserter")
			serveErr := srv.ListenAndServe(ctx)

			if !keepCache {
				if err := a.session.Close(); err != nil {
					a.log.Warn().Err(err).Msg("clearing cache on shutdown failed")
				}
			}
			if serveErr != nil {
				return fmt.Errorf("serve: %w", serveErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepCache, "keep-cache", false, "do not clear the prompt cache on shutdown")
	return cmd
}
