package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"mealmcp/internal/dispatcher"
)

// Exit codes for CLI commands, for scripting and automation.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication was required but
	// not available or not accepted.
	ExitCodeAuthRequired = 2
)

// rootCmd is the entry point when the application is called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "mealmcp",
	Short: "Meal planning and pantry tracking over MCP",
	Long: `mealmcp serves a meal planning, recipe, and pantry tracking tool set
over the Model Context Protocol. It runs over stdio for local AI
assistants, or over HTTP (streamable-http, SSE, or plain REST) with
pre-shared-token or OAuth 2.1 authentication for remote ones.

Configuration comes from environment variables (MCP_TRANSPORT, MCP_MODE,
PANTRY_BACKEND, ...); command flags override them.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main
// so the build can inject it with -ldflags.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a semantic code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mealmcp version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

func getExitCode(err error) int {
	if errors.Is(err, dispatcher.ErrAuthenticationRequired) {
		return ExitCodeAuthRequired
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
