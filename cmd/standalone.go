package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mealmcp/internal/app"
	"mealmcp/internal/config"
)

// standaloneCmd is the single-user shortcut: stdio transport, local
// mode, SQLite storage, no authentication. This is what desktop MCP
// clients launch.
var standaloneCmd = &cobra.Command{
	Use:   "standalone",
	Short: "Start a single-user stdio server",
	Long: `Standalone mode serves a single user over stdio with a local SQLite
database, regardless of MCP_TRANSPORT and MCP_MODE. Storage settings
(PANTRY_DB_PATH) still apply.`,
	Args: cobra.NoArgs,
	RunE: runStandalone,
}

func runStandalone(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Transport = config.TransportStdio
	cfg.Mode = config.ModeLocal
	cfg.Database.Backend = config.BackendSQLite

	application, err := app.NewApplication(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(cmd.Context())
}

func init() {
	rootCmd.AddCommand(standaloneCmd)
}
