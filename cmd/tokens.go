package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mealmcp/internal/app"
	"mealmcp/internal/auth"
	"mealmcp/internal/config"
	"mealmcp/internal/oauth"
)

// tokensCmd groups offline token store maintenance.
var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage the OAuth token store",
}

var tokensPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired authorization codes and tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openTokenStore()
		if err != nil {
			return err
		}
		purged, err := store.PurgeExpired(cmd.Context())
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired entries\n", purged)
		return nil
	},
}

var tokensRevokeUsername string

var tokensRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke all tokens of a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, users, err := openTokenStore()
		if err != nil {
			return err
		}
		user, err := users.ByUsername(cmd.Context(), tokensRevokeUsername)
		if err != nil {
			return fmt.Errorf("unknown user %q: %w", tokensRevokeUsername, err)
		}
		if err := store.RevokeAllForUser(cmd.Context(), user.ID); err != nil {
			return fmt.Errorf("revoke failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked all tokens for %s\n", user.Username)
		return nil
	},
}

func openTokenStore() (*oauth.Store, *auth.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := app.OpenAuthDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open auth database: %w", err)
	}
	store, err := oauth.NewStore(db)
	if err != nil {
		return nil, nil, err
	}
	users, err := auth.NewStore(db)
	if err != nil {
		return nil, nil, err
	}
	return store, users, nil
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensPurgeCmd)

	tokensRevokeCmd.Flags().StringVar(&tokensRevokeUsername, "user", "", "username whose tokens to revoke")
	_ = tokensRevokeCmd.MarkFlagRequired("user")
	tokensCmd.AddCommand(tokensRevokeCmd)
}
