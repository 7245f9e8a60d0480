package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mealmcp/internal/app"
	"mealmcp/internal/config"
)

var (
	serveTransport string
	serveMode      string
	serveHost      string
	servePort      int
	serveDebug     bool
)

// serveCmd starts the server with the configured transport and mode.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Starts the meal planning MCP server.

The transport and authentication mode come from the environment
(MCP_TRANSPORT, MCP_MODE) and can be overridden with flags. Remote
transports require token or oauth mode unless explicitly run in local
mode behind a trusted proxy.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigWithFlags(cmd)
	if err != nil {
		return err
	}

	application, err := app.NewApplication(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(cmd.Context())
}

// loadConfigWithFlags loads the environment configuration and applies
// any flags the user set explicitly.
func loadConfigWithFlags(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("transport") {
		cfg.Transport = serveTransport
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = serveMode
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = serveDebug
	}
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveTransport, "transport", config.TransportStdio,
		"transport: stdio, streamable-http, sse, or rest")
	serveCmd.Flags().StringVar(&serveMode, "mode", config.ModeLocal,
		"authentication mode: local, token, or oauth")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "bind host for HTTP transports")
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "bind port for HTTP transports")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
}
