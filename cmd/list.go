package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mealmcp/internal/config"
	"mealmcp/internal/formatting"
	"mealmcp/internal/pantry"
)

// listCmd renders local pantry data as tables, for quick inspection
// without an MCP client.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show local pantry data as tables",
}

var listRecipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List all recipes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalPantry(cmd, func(m pantry.Manager) error {
			recipes, err := m.AllRecipes(cmd.Context())
			if err != nil {
				return err
			}
			formatting.RenderRecipes(cmd.OutOrStdout(), recipes)
			return nil
		})
	},
}

var listPantryCmd = &cobra.Command{
	Use:   "pantry",
	Short: "List current pantry stock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalPantry(cmd, func(m pantry.Manager) error {
			contents, err := m.Contents(cmd.Context())
			if err != nil {
				return err
			}
			formatting.RenderStock(cmd.OutOrStdout(), contents)
			return nil
		})
	},
}

var listPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "List the coming week's meal plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalPantry(cmd, func(m pantry.Manager) error {
			plan, err := m.WeekPlan(cmd.Context())
			if err != nil {
				return err
			}
			formatting.RenderPlan(cmd.OutOrStdout(), plan)
			return nil
		})
	},
}

var listGroceriesCmd = &cobra.Command{
	Use:   "groceries",
	Short: "List the grocery shortfall for the coming week",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalPantry(cmd, func(m pantry.Manager) error {
			list, err := m.GroceryList(cmd.Context())
			if err != nil {
				return err
			}
			formatting.RenderGroceries(cmd.OutOrStdout(), list)
			return nil
		})
	},
}

// withLocalPantry opens the configured backend's local view, runs fn,
// and closes the handle.
func withLocalPantry(cmd *cobra.Command, fn func(pantry.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	factory, err := pantry.NewFactory(cmd.Context(), cfg.Database.Backend, cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open pantry storage: %w", err)
	}
	defer factory.Close()
	return fn(factory.Local())
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listRecipesCmd)
	listCmd.AddCommand(listPantryCmd)
	listCmd.AddCommand(listPlanCmd)
	listCmd.AddCommand(listGroceriesCmd)
}
