package pantry

import "context"

// Manager is the storage-independent interface for pantry, recipe,
// preference, and meal-plan operations. Implementations exist for a
// single-user SQLite file and a shared multi-tenant PostgreSQL schema;
// both are selected through New in factory.go.
//
// All lookups by name are case-sensitive exact matches, mirroring the
// database's unique constraints. Methods return ErrNotFound (possibly
// wrapped) when the named entity does not exist.
type Manager interface {
	// Ingredient management.
	AddIngredient(ctx context.Context, name, defaultUnit string) error
	IngredientID(ctx context.Context, name string) (int64, error)

	// Preference management.
	AddPreference(ctx context.Context, category, item, level, notes string) error
	UpdatePreference(ctx context.Context, id int64, level, notes string) error
	DeletePreference(ctx context.Context, id int64) error
	Preferences(ctx context.Context) ([]Preference, error)

	// Pantry item management. Quantities are recorded as an append-only
	// transaction ledger; current stock is the sum of additions minus
	// removals and can go negative.
	AddItem(ctx context.Context, name string, quantity float64, unit, notes string) error
	RemoveItem(ctx context.Context, name string, quantity float64, unit, notes string) error
	ItemQuantity(ctx context.Context, name, unit string) (float64, error)
	Contents(ctx context.Context) (map[string]map[string]float64, error)
	TransactionHistory(ctx context.Context, itemName string) ([]Transaction, error)

	// Recipe management. AddRecipe returns the generated short ID.
	AddRecipe(ctx context.Context, r Recipe) (string, error)
	GetRecipe(ctx context.Context, name string) (*Recipe, error)
	AllRecipes(ctx context.Context) ([]Recipe, error)
	EditRecipe(ctx context.Context, r Recipe) error
	EditRecipeByShortID(ctx context.Context, shortID string, upd RecipeUpdate) error
	RecipeShortID(ctx context.Context, name string) (string, error)
	RateRecipe(ctx context.Context, name string, rating int) error

	// ExecuteRecipe removes a recipe's ingredients from the pantry.
	// It checks stock for every ingredient first and removes nothing
	// if any is short, returning ErrInsufficientStock with a message
	// listing the shortfalls.
	ExecuteRecipe(ctx context.Context, name string) (string, error)

	// Meal planning. Dates are ISO YYYY-MM-DD strings. Setting an empty
	// recipe name clears the date.
	SetMealPlan(ctx context.Context, mealDate, recipeName string) error
	MealPlan(ctx context.Context, startDate, endDate string) ([]MealPlanEntry, error)

	// WeekPlan returns the plan for the seven days starting today, per
	// the manager's clock.
	WeekPlan(ctx context.Context) ([]MealPlanEntry, error)

	// GroceryList computes the shortfall between the coming week's
	// planned meals and current pantry stock.
	GroceryList(ctx context.Context) ([]GroceryItem, error)

	// Household characteristics.
	Household(ctx context.Context) (Household, error)
	SetHousehold(ctx context.Context, h Household) error

	// Close releases the underlying database handle.
	Close() error
}
