// Package cli implements the importer command line.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the importer command tree.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "importer",
		Short: "Bulk import venues and products from CSV files",
		Long: `Importer loads venue and product catalogs from CSV exports.

Rows are parsed, normalized, validated and checked for duplicates against the
store before anything is written. Column headers may be English or Korean.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.store, "store", "sqlite", "Store backend (memory, sqlite or postgres)")
	cmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "SQLite path or PostgreSQL URL (defaults to SQLITE_PATH or DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format (text or json)")

	cmd.AddCommand(newImportCmd(&flags))
	cmd.AddCommand(newValidateCmd(&flags))
	cmd.AddCommand(newTemplateCmd())

	return cmd
}

type globalFlags struct {
	store     string
	dsn       string
	logLevel  string
	logFormat string
}
