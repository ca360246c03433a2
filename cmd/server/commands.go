package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/uhhharsh/VidShare/internal/server"
	"github.com/uhhharsh/VidShare/internal/server/config"
)

const flagsUsage = `Config flags (also settable via JSON file, .env and environment):
  -c, -config path       JSON config file
  -env-file path         dotenv file (default ./.env when present)
  -a addr                HTTP bind address
  -g addr                gRPC bind address
  -d dsn                 postgres://, mongodb:// or memory:// DSN
  -env name              local, dev or prod
  -log-backend name      slog or zerolog
  -access-secret value   access token secret
  -refresh-secret value  refresh token secret
  -t duration            access token lifetime
  -r duration            refresh token lifetime
  -b bucket              S3 bucket
  -e url                 S3 base endpoint
  -redis addr            redis address for rate limiting
  -secure-cookies=false  send auth cookies without Secure (plain HTTP)
`

// Config flags are parsed by the config package, so cobra leaves them alone.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:                "vidshare-server",
		Short:              "VidShare accounts API (HTTP and gRPC)",
		SilenceUsage:       true,
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		RunE:               runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:                "serve",
			Short:              "Run the HTTP and gRPC servers (default)",
			SilenceUsage:       true,
			DisableFlagParsing: true,
			RunE:               runServe,
		},
		&cobra.Command{
			Use:                "migrate",
			Short:              "Apply database migrations and exit",
			SilenceUsage:       true,
			DisableFlagParsing: true,
			RunE:               runMigrate,
		},
		&cobra.Command{
			Use:   "env",
			Short: "List supported environment variables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				help, err := config.EnvHelp()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), help)
				return err
			},
		},
	)

	return root
}

func wantsHelp(args []string) bool {
	return slices.ContainsFunc(args, func(a string) bool {
		return a == "-h" || a == "--help" || a == "-help"
	})
}

func load(cmd *cobra.Command, args []string) (*config.Config, bool, error) {
	if wantsHelp(args) {
		_ = cmd.Help()
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "\n"+flagsUsage)
		return nil, false, nil
	}

	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, ok, err := load(cmd, args)
	if !ok {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := server.NewLogger(cfg, os.Stdout)
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		return err
	}

	return app.Run(ctx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, ok, err := load(cmd, args)
	if !ok {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return server.Migrate(ctx, cfg, server.NewLogger(cfg, os.Stdout))
}
