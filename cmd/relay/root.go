package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iago/line-relay/internal/config"
	"github.com/iago/line-relay/internal/logging"
)

type app struct {
	cfg    config.Config
	logger zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	envFiles := []string{".env.local", ".env"}

	root := &cobra.Command{
		Use:           "relay",
		Short:         "LINE chat relay with AI replies and keyword fallback",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loadErr := config.LoadDotEnv(envFiles...)
			a.cfg = config.Load()
			a.logger = logging.New(os.Stdout, a.cfg.LogLevel, a.cfg.LogFormat)
			if loadErr != nil {
				a.logger.Warn().Err(loadErr).Msg("failed loading .env files")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", envFiles, "dotenv files to load; earlier files win")

	root.AddCommand(
		newServeCommand(a),
		newAskCommand(a),
		newBenchCommand(a),
	)
	return root
}
