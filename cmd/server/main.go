package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/docsync/internal/buildinfo"
	"github.com/dmitrijs2005/docsync/internal/server"
	"github.com/dmitrijs2005/docsync/internal/server/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// Flags are left to the config layer, which reads os.Args itself.
func newRootCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:                "serve",
		Short:              "Run the REST API and health endpoint",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	migrate := &cobra.Command{
		Use:                "migrate",
		Short:              "Apply database migrations and exit",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.NewApp(cmd.Context(), config.LoadConfig(), os.Stdout)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Migrate(cmd.Context())
		},
	}

	root := &cobra.Command{
		Use:                "docsync-server",
		Short:              "docsync document sync backend",
		SilenceUsage:       true,
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(serve, migrate)
	return root
}

func runServe(ctx context.Context) error {
	buildinfo.PrintBuildData(os.Stdout)

	app, err := server.NewApp(ctx, config.LoadConfig(), os.Stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx)
}
