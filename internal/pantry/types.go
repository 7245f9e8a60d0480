package pantry

import (
	"errors"
	"time"
)

// Sentinel errors returned by Manager implementations.
var (
	// ErrNotFound indicates the named recipe, ingredient, or preference
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock indicates the pantry does not hold enough of
	// an ingredient to execute a recipe.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Transaction types recorded in the pantry ledger.
const (
	TransactionAddition = "addition"
	TransactionRemoval  = "removal"
)

// Unit is a unit of measurement with its size in a base unit.
type Unit struct {
	Name     string  `json:"name"`
	BaseUnit string  `json:"base_unit"`
	Size     float64 `json:"size"`
}

// DefaultUnits are the measurement units seeded for new databases.
var DefaultUnits = []Unit{
	{Name: "Teaspoon", BaseUnit: "ml", Size: 5.0},
	{Name: "Tablespoon", BaseUnit: "ml", Size: 15.0},
	{Name: "Fluid ounce", BaseUnit: "ml", Size: 30.0},
	{Name: "Cup", BaseUnit: "ml", Size: 240.0},
	{Name: "Pint", BaseUnit: "ml", Size: 473.0},
	{Name: "Quart", BaseUnit: "ml", Size: 946.0},
	{Name: "Gallon", BaseUnit: "ml", Size: 3785.0},
	{Name: "Milliliter", BaseUnit: "ml", Size: 1.0},
	{Name: "Liter", BaseUnit: "ml", Size: 1000.0},
	{Name: "Ounce", BaseUnit: "g", Size: 28.35},
	{Name: "Pound", BaseUnit: "g", Size: 453.59},
	{Name: "Gram", BaseUnit: "g", Size: 1.0},
	{Name: "Kilogram", BaseUnit: "g", Size: 1000.0},
	{Name: "Piece", BaseUnit: "count", Size: 1.0},
}

// UnitNames returns the names of the default units.
func UnitNames() []string {
	names := make([]string, 0, len(DefaultUnits))
	for _, u := range DefaultUnits {
		names = append(names, u.Name)
	}
	return names
}

// Rating constraints for recipes.
const (
	MinRating = 1
	MaxRating = 5
)

// RecipeIngredient is one line of a recipe's ingredient list.
type RecipeIngredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Recipe is a recipe with its ingredient list.
type Recipe struct {
	ID           int64              `json:"-"`
	ShortID      string             `json:"recipe_id,omitempty"`
	Name         string             `json:"name"`
	Instructions string             `json:"instructions"`
	TimeMinutes  int                `json:"time_minutes"`
	Rating       *int               `json:"rating,omitempty"`
	CreatedDate  time.Time          `json:"created_date"`
	LastModified time.Time          `json:"last_modified"`
	Ingredients  []RecipeIngredient `json:"ingredients"`
}

// RecipeUpdate is a partial recipe update. Nil fields are left unchanged;
// a nil Ingredients slice leaves the ingredient list untouched.
type RecipeUpdate struct {
	Name         *string
	Instructions *string
	TimeMinutes  *int
	Ingredients  []RecipeIngredient
}

// Preference is a food preference (dietary restriction, allergy, like,
// dislike) with an importance level.
type Preference struct {
	ID          int64     `json:"id"`
	Category    string    `json:"category"`
	Item        string    `json:"item"`
	Level       string    `json:"level"`
	Notes       string    `json:"notes,omitempty"`
	CreatedDate time.Time `json:"created_date"`
}

// Transaction is one entry in the pantry ledger. Quantities are always
// positive; Type distinguishes additions from removals.
type Transaction struct {
	ID       int64     `json:"id"`
	Type     string    `json:"transaction_type"`
	Item     string    `json:"item"`
	Quantity float64   `json:"quantity"`
	Unit     string    `json:"unit"`
	Date     time.Time `json:"transaction_date"`
	Notes    string    `json:"notes,omitempty"`
}

// MealPlanEntry assigns a recipe to a calendar date (ISO YYYY-MM-DD).
type MealPlanEntry struct {
	Date   string `json:"date"`
	Recipe string `json:"recipe"`
}

// GroceryItem is one shortfall line on a grocery list.
type GroceryItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Household describes who is being cooked for.
type Household struct {
	Adults      int       `json:"adults"`
	Children    int       `json:"children"`
	Notes       string    `json:"notes,omitempty"`
	UpdatedDate time.Time `json:"updated_date"`
}
