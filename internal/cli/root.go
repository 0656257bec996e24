// Package cli defines the cobra command tree for dcv, the visitor log admin tool.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"dcvisitor/internal/app"
	"dcvisitor/internal/config"
	"dcvisitor/internal/logging"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dcv",
		Short:         "Administer the data center visitor log",
		Long:          "Inspect, export and prune data center visitor records, and mint tokens for kiosks and operators.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "database URL (default: $DATABASE_URL)")

	root.AddCommand(
		newMigrateCmd(),
		newStatsCmd(),
		newListCmd(),
		newCheckoutCmd(),
		newRemoveCmd(),
		newExportCmd(),
		newPurgeCmd(),
		newTokenCmd(),
	)

	return root
}

func isJSON() bool {
	return flagFormat == "json"
}

func loadConfig() config.App {
	cfg := config.Load()
	if flagDB != "" {
		cfg.DatabaseURL = flagDB
	}
	return cfg
}

// openDeps connects using the environment config and the --db override.
func openDeps(cmd *cobra.Command) (*app.Deps, error) {
	cfg := loadConfig()
	log := logging.NewWithOutput(cmd.ErrOrStderr(), "dcv", cfg.Env)
	return app.Open(cmd.Context(), cfg, log, 5*time.Second)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()
			if isJSON() {
				return printJSON(cmd, map[string]interface{}{"migrated": true})
			}
			printf(cmd, "Schema up to date.\n")
			return nil
		},
	}
}

// Execute runs the root command with a background context.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}
