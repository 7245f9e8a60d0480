package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"mealmcp/internal/dispatcher"
	"mealmcp/internal/pantry"
)

// DefaultRegistry builds the full tool set exposed over every transport.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Descriptor{
			Name:        "list_units",
			Description: "List all supported units of measurement",
			Scope:       ScopeRead,
			Handler:     listUnits,
		},
		Descriptor{
			Name:        "get_user_profile",
			Description: "Get household characteristics and food preferences in one call",
			Scope:       ScopeRead,
			Handler:     getUserProfile,
		},
		Descriptor{
			Name:        "add_recipe",
			Description: "Add a new recipe with its ingredient list",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "name", Type: "string", Description: "Recipe name", Required: true},
				{Name: "instructions", Type: "string", Description: "Preparation instructions", Required: true},
				{Name: "time_minutes", Type: "integer", Description: "Preparation time in minutes", Required: true},
				{Name: "ingredients", Type: "array", Description: "List of {name, quantity, unit} objects", Required: true},
			},
			Handler: addRecipe,
		},
		Descriptor{
			Name:        "edit_recipe",
			Description: "Replace a recipe's instructions, time, and ingredients by name",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "recipe_name", Type: "string", Description: "Name of the recipe to edit", Required: true},
				{Name: "instructions", Type: "string", Description: "New preparation instructions", Required: true},
				{Name: "time_minutes", Type: "integer", Description: "New preparation time in minutes", Required: true},
				{Name: "ingredients", Type: "array", Description: "Replacement ingredient list", Required: true},
			},
			Handler: editRecipe,
		},
		Descriptor{
			Name:        "edit_recipe_by_id",
			Description: "Partially update a recipe addressed by its short ID; omitted fields keep their values",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "recipe_id", Type: "string", Description: "Short recipe ID, e.g. R1C", Required: true},
				{Name: "name", Type: "string", Description: "New recipe name"},
				{Name: "instructions", Type: "string", Description: "New preparation instructions"},
				{Name: "time_minutes", Type: "integer", Description: "New preparation time in minutes"},
				{Name: "ingredients", Type: "array", Description: "Replacement ingredient list"},
			},
			Handler: editRecipeByID,
		},
		Descriptor{
			Name:        "get_recipe_id",
			Description: "Look up the short ID of a recipe by name",
			Scope:       ScopeRead,
			Args: []ArgSpec{
				{Name: "recipe_name", Type: "string", Description: "Recipe name", Required: true},
			},
			Handler: getRecipeID,
		},
		Descriptor{
			Name:        "get_all_recipes",
			Description: "Get every stored recipe with ingredients",
			Scope:       ScopeRead,
			Handler:     getAllRecipes,
		},
		Descriptor{
			Name:        "get_recipe",
			Description: "Get one recipe by name",
			Scope:       ScopeRead,
			Args: []ArgSpec{
				{Name: "recipe_name", Type: "string", Description: "Recipe name", Required: true},
			},
			Handler: getRecipe,
		},
		Descriptor{
			Name:        "get_pantry_contents",
			Description: "Get current pantry stock grouped by item and unit",
			Scope:       ScopeRead,
			Handler:     getPantryContents,
		},
		Descriptor{
			Name:        "add_pantry_item",
			Description: "Record an addition to the pantry",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "item_name", Type: "string", Description: "Item name", Required: true},
				{Name: "quantity", Type: "number", Description: "Quantity added", Required: true},
				{Name: "unit", Type: "string", Description: "Unit of measurement", Required: true},
				{Name: "notes", Type: "string", Description: "Optional notes"},
			},
			Handler: addPantryItem,
		},
		Descriptor{
			Name:        "remove_pantry_item",
			Description: "Record a removal from the pantry",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "item_name", Type: "string", Description: "Item name", Required: true},
				{Name: "quantity", Type: "number", Description: "Quantity removed", Required: true},
				{Name: "unit", Type: "string", Description: "Unit of measurement", Required: true},
				{Name: "reason", Type: "string", Description: "Why the item was removed"},
			},
			Handler: removePantryItem,
		},
		Descriptor{
			Name:        "plan_meals",
			Description: "Assign recipes to dates in bulk",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "meal_assignments", Type: "array", Description: "List of {date, recipe_name} objects", Required: true},
			},
			Handler: planMeals,
		},
		Descriptor{
			Name:        "get_meal_plan",
			Description: "Get the meal plan starting at a date",
			Scope:       ScopeRead,
			Args: []ArgSpec{
				{Name: "start_date", Type: "string", Description: "First date, YYYY-MM-DD", Required: true},
				{Name: "days", Type: "integer", Description: "Number of days, default 7"},
			},
			Handler: getMealPlan,
		},
		Descriptor{
			Name:        "generate_grocery_list",
			Description: "Compute the shopping shortfall for the coming week's plan",
			Scope:       ScopeRead,
			Handler:     generateGroceryList,
		},
		Descriptor{
			Name:        "suggest_recipes_from_pantry",
			Description: "Suggest recipes that are mostly cookable from current stock",
			Scope:       ScopeRead,
			Args: []ArgSpec{
				{Name: "max_missing_ingredients", Type: "integer", Description: "Tolerated missing ingredients, default 3"},
				{Name: "max_prep_time", Type: "integer", Description: "Maximum preparation time in minutes"},
			},
			Handler: suggestRecipesFromPantry,
		},
		Descriptor{
			Name:        "search_recipes",
			Description: "Search recipes by name, preparation time, and rating",
			Scope:       ScopeRead,
			Args: []ArgSpec{
				{Name: "query", Type: "string", Description: "Substring to match in recipe names"},
				{Name: "max_prep_time", Type: "integer", Description: "Maximum preparation time in minutes"},
				{Name: "min_rating", Type: "integer", Description: "Minimum rating, 1-5"},
			},
			Handler: searchRecipes,
		},
		Descriptor{
			Name:        "check_recipe_feasibility",
			Description: "Check whether a recipe can be cooked from current stock",
			Scope:       ScopeRead,
			Args: []ArgSpec{
				{Name: "recipe_name", Type: "string", Description: "Recipe name", Required: true},
				{Name: "servings", Type: "integer", Description: "Servings to scale to, default 4"},
			},
			Handler: checkRecipeFeasibility,
		},
		Descriptor{
			Name:        "get_food_preferences",
			Description: "Get stored food preferences, optionally filtered by category",
			Scope:       ScopeRead,
			Args: []ArgSpec{
				{Name: "preference_type", Type: "string", Description: "Category filter: dietary, allergy, like, dislike"},
			},
			Handler: getFoodPreferences,
		},
		Descriptor{
			Name:        "clear_meal_plan",
			Description: "Clear the meal plan over a date range",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "start_date", Type: "string", Description: "First date to clear, YYYY-MM-DD", Required: true},
				{Name: "days", Type: "integer", Description: "Number of days, default 7"},
			},
			Handler: clearMealPlan,
		},
		Descriptor{
			Name:        "add_preference",
			Description: "Record a food preference",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "category", Type: "string", Description: "dietary, allergy, like, or dislike", Required: true},
				{Name: "item", Type: "string", Description: "The food or restriction", Required: true},
				{Name: "level", Type: "string", Description: "required, preferred, or avoid", Required: true},
				{Name: "notes", Type: "string", Description: "Optional notes"},
			},
			Handler: addPreference,
		},
		Descriptor{
			Name:        "execute_recipe",
			Description: "Cook a recipe: remove all its ingredients from the pantry, or nothing on shortfall",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "recipe_name", Type: "string", Description: "Recipe name", Required: true},
			},
			Handler: executeRecipe,
		},
		Descriptor{
			Name:        "get_week_plan",
			Description: "Get the meal plan for the next seven days",
			Scope:       ScopeRead,
			Handler:     getWeekPlan,
		},
		Descriptor{
			Name:        "set_recipe_for_date",
			Description: "Assign one recipe to one date; an empty recipe name clears the date",
			Scope:       ScopeWrite,
			Args: []ArgSpec{
				{Name: "meal_date", Type: "string", Description: "Date, YYYY-MM-DD", Required: true},
				{Name: "recipe_name", Type: "string", Description: "Recipe name, empty to clear", Required: true},
			},
			Handler: setRecipeForDate,
		},
	)
}

func listUnits(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	return Success("units", pantry.DefaultUnits)
}

func getUserProfile(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	household, err := uc.Pantry.Household(ctx)
	if err != nil {
		return Errorf("Error getting user profile: %v", err)
	}
	prefs, err := uc.Pantry.Preferences(ctx)
	if err != nil {
		return Errorf("Error getting user profile: %v", err)
	}

	summary := map[string][]string{
		"required_dietary":  {},
		"preferred_dietary": {},
		"allergies":         {},
		"dislikes":          {},
		"likes":             {},
	}
	for _, p := range prefs {
		switch p.Category {
		case "dietary":
			switch p.Level {
			case "required":
				summary["required_dietary"] = append(summary["required_dietary"], p.Item)
			case "preferred":
				summary["preferred_dietary"] = append(summary["preferred_dietary"], p.Item)
			}
		case "allergy":
			summary["allergies"] = append(summary["allergies"], p.Item)
		case "dislike":
			summary["dislikes"] = append(summary["dislikes"], p.Item)
		case "like":
			summary["likes"] = append(summary["likes"], p.Item)
		}
	}

	return Success("data", map[string]interface{}{
		"household": map[string]interface{}{
			"adults":       household.Adults,
			"children":     household.Children,
			"notes":        household.Notes,
			"total_people": household.Adults + household.Children,
			"updated_date": household.UpdatedDate,
		},
		"dietary_preferences": prefs,
		"preferences_summary": summary,
	})
}

func parseIngredients(raw []map[string]interface{}) ([]pantry.RecipeIngredient, error) {
	ingredients := make([]pantry.RecipeIngredient, 0, len(raw))
	for i, item := range raw {
		m := Args(item)
		name := m.String("name")
		unit := m.String("unit")
		if name == "" || unit == "" || !m.Has("quantity") {
			return nil, fmt.Errorf("ingredient %d must have name, quantity, and unit", i)
		}
		ingredients = append(ingredients, pantry.RecipeIngredient{
			Name:     name,
			Quantity: m.Float("quantity"),
			Unit:     unit,
		})
	}
	return ingredients, nil
}

func addRecipe(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	ingredients, err := parseIngredients(args.Objects("ingredients"))
	if err != nil {
		return Errorf("Invalid ingredients: %v", err)
	}

	shortID, err := uc.Pantry.AddRecipe(ctx, pantry.Recipe{
		Name:         args.String("name"),
		Instructions: args.String("instructions"),
		TimeMinutes:  args.Int("time_minutes"),
		Ingredients:  ingredients,
	})
	if err != nil {
		return Errorf("Failed to add recipe: %v", err)
	}
	return Success(
		"message", "Recipe added successfully",
		"recipe_id", shortID,
		"recipe_name", args.String("name"),
	)
}

func editRecipe(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	name := args.String("recipe_name")
	ingredients, err := parseIngredients(args.Objects("ingredients"))
	if err != nil {
		return Errorf("Invalid ingredients: %v", err)
	}

	err = uc.Pantry.EditRecipe(ctx, pantry.Recipe{
		Name:         name,
		Instructions: args.String("instructions"),
		TimeMinutes:  args.Int("time_minutes"),
		Ingredients:  ingredients,
	})
	if errors.Is(err, pantry.ErrNotFound) {
		return Errorf("Recipe '%s' not found", name)
	}
	if err != nil {
		return Errorf("Failed to update recipe '%s': %v", name, err)
	}
	return Success("message", fmt.Sprintf("Recipe '%s' updated successfully", name))
}

func editRecipeByID(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	var upd pantry.RecipeUpdate
	touched := false
	if args.Has("name") {
		name := args.String("name")
		upd.Name = &name
		touched = true
	}
	if args.Has("instructions") {
		instructions := args.String("instructions")
		upd.Instructions = &instructions
		touched = true
	}
	if args.Has("time_minutes") {
		minutes := args.Int("time_minutes")
		upd.TimeMinutes = &minutes
		touched = true
	}
	if args.Has("ingredients") {
		ingredients, err := parseIngredients(args.Objects("ingredients"))
		if err != nil {
			return Errorf("Invalid ingredients: %v", err)
		}
		upd.Ingredients = ingredients
		touched = true
	}
	if !touched {
		return Errorf("At least one field (name, instructions, time_minutes, or ingredients) must be provided for update")
	}

	shortID := args.String("recipe_id")
	err := uc.Pantry.EditRecipeByShortID(ctx, shortID, upd)
	if errors.Is(err, pantry.ErrNotFound) {
		return Errorf("Recipe '%s' not found", shortID)
	}
	if err != nil {
		return Errorf("Failed to update recipe '%s': %v", shortID, err)
	}
	return Success("message", fmt.Sprintf("Recipe '%s' updated successfully", shortID))
}

func getRecipeID(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	name := args.String("recipe_name")
	shortID, err := uc.Pantry.RecipeShortID(ctx, name)
	if errors.Is(err, pantry.ErrNotFound) {
		return Errorf("Recipe '%s' not found", name)
	}
	if err != nil {
		return Errorf("Failed to look up recipe ID: %v", err)
	}
	return Success("recipe_name", name, "recipe_id", shortID)
}

func getAllRecipes(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	recipes, err := uc.Pantry.AllRecipes(ctx)
	if err != nil {
		return Errorf("Failed to get recipes: %v", err)
	}
	return Success("recipes", recipes)
}

func getRecipe(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	name := args.String("recipe_name")
	recipe, err := uc.Pantry.GetRecipe(ctx, name)
	if errors.Is(err, pantry.ErrNotFound) {
		return Errorf("Recipe '%s' not found", name)
	}
	if err != nil {
		return Errorf("Failed to get recipe: %v", err)
	}
	return Success("recipe", recipe)
}

func getPantryContents(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	contents, err := uc.Pantry.Contents(ctx)
	if err != nil {
		return Errorf("Failed to get pantry contents: %v", err)
	}
	return Success("contents", contents)
}

func addPantryItem(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	name := args.String("item_name")
	quantity := args.Float("quantity")
	unit := args.String("unit")

	err := uc.Pantry.AddItem(ctx, name, quantity, unit, args.String("notes"))
	if err != nil {
		return Errorf("Failed to add item to pantry: %v", err)
	}
	return Success("message", fmt.Sprintf("Added %v %s of %s to pantry", quantity, unit, name))
}

func removePantryItem(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	name := args.String("item_name")
	quantity := args.Float("quantity")
	unit := args.String("unit")

	err := uc.Pantry.RemoveItem(ctx, name, quantity, unit, args.StringOr("reason", "consumed"))
	if err != nil {
		return Errorf("Failed to remove item from pantry: %v", err)
	}
	return Success("message", fmt.Sprintf("Removed %v %s of %s from pantry", quantity, unit, name))
}

func planMeals(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	assignments := args.Objects("meal_assignments")
	assigned := 0
	var failures []string

	for _, a := range assignments {
		m := Args(a)
		date := m.String("date")
		recipe := m.String("recipe_name")
		if err := uc.Pantry.SetMealPlan(ctx, date, recipe); err != nil {
			failures = append(failures, fmt.Sprintf("Error with %s on %s: %v", recipe, date, err))
			continue
		}
		assigned++
	}

	if assigned == 0 {
		res := Errorf("Successfully planned 0 meals")
		res["assigned"] = 0
		res["errors"] = failures
		return res
	}
	return Success(
		"message", fmt.Sprintf("Successfully planned %d meals", assigned),
		"assigned", assigned,
		"errors", failures,
	)
}

func getMealPlan(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	start, err := time.Parse("2006-01-02", args.String("start_date"))
	if err != nil {
		return Errorf("Failed to get meal plan: invalid start_date %q", args.String("start_date"))
	}
	days := args.IntOr("days", 7)
	if days < 1 {
		days = 1
	}
	end := start.AddDate(0, 0, days-1)

	plan, err := uc.Pantry.MealPlan(ctx, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return Errorf("Failed to get meal plan: %v", err)
	}
	return Success("meal_plan", plan)
}

func generateGroceryList(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	list, err := uc.Pantry.GroceryList(ctx)
	if err != nil {
		return Errorf("Failed to generate grocery list: %v", err)
	}
	return Success("grocery_list", list)
}

func suggestRecipesFromPantry(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	maxMissing := args.IntOr("max_missing_ingredients", 3)

	contents, err := uc.Pantry.Contents(ctx)
	if err != nil {
		return Errorf("Failed to get suggestions: %v", err)
	}
	recipes, err := uc.Pantry.AllRecipes(ctx)
	if err != nil {
		return Errorf("Failed to get suggestions: %v", err)
	}

	type suggestion struct {
		Recipe             pantry.Recipe `json:"recipe"`
		MissingIngredients []string      `json:"missing_ingredients"`
		MissingCount       int           `json:"missing_count"`
	}

	suggestions := []suggestion{}
	for _, recipe := range recipes {
		if args.Has("max_prep_time") && recipe.TimeMinutes > args.Int("max_prep_time") {
			continue
		}
		missing := []string{}
		for _, ing := range recipe.Ingredients {
			if _, ok := contents[ing.Name]; !ok {
				missing = append(missing, ing.Name)
			}
		}
		if len(missing) <= maxMissing {
			suggestions = append(suggestions, suggestion{
				Recipe:             recipe,
				MissingIngredients: missing,
				MissingCount:       len(missing),
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].MissingCount < suggestions[j].MissingCount
	})
	return Success("suggestions", suggestions)
}

func searchRecipes(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	recipes, err := uc.Pantry.AllRecipes(ctx)
	if err != nil {
		return Errorf("Failed to search recipes: %v", err)
	}

	query := strings.ToLower(args.String("query"))
	filtered := []pantry.Recipe{}
	for _, recipe := range recipes {
		if query != "" && !strings.Contains(strings.ToLower(recipe.Name), query) {
			continue
		}
		if args.Has("max_prep_time") && recipe.TimeMinutes > args.Int("max_prep_time") {
			continue
		}
		if args.Has("min_rating") {
			if recipe.Rating == nil || *recipe.Rating < args.Int("min_rating") {
				continue
			}
		}
		filtered = append(filtered, recipe)
	}
	return Success("recipes", filtered)
}

func checkRecipeFeasibility(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	name := args.String("recipe_name")
	servings := args.IntOr("servings", 4)

	recipe, err := uc.Pantry.GetRecipe(ctx, name)
	if errors.Is(err, pantry.ErrNotFound) {
		return Errorf("Recipe '%s' not found", name)
	}
	if err != nil {
		return Errorf("Failed to check feasibility: %v", err)
	}

	contents, err := uc.Pantry.Contents(ctx)
	if err != nil {
		return Errorf("Failed to check feasibility: %v", err)
	}

	type line struct {
		Name     string  `json:"name"`
		Needed   float64 `json:"needed"`
		Have     float64 `json:"have"`
		Shortage float64 `json:"shortage,omitempty"`
		Unit     string  `json:"unit"`
	}

	// Stored recipes serve four; scale linearly.
	scale := float64(servings) / 4.0
	available := []line{}
	missing := []line{}
	for _, ing := range recipe.Ingredients {
		needed := ing.Quantity * scale
		have := contents[ing.Name][ing.Unit]
		if have >= needed {
			available = append(available, line{Name: ing.Name, Needed: needed, Have: have, Unit: ing.Unit})
		} else {
			missing = append(missing, line{Name: ing.Name, Needed: needed, Have: have, Shortage: needed - have, Unit: ing.Unit})
		}
	}

	return Success(
		"recipe_name", name,
		"servings", servings,
		"feasible", len(missing) == 0,
		"available_ingredients", available,
		"missing_ingredients", missing,
	)
}

func getFoodPreferences(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	prefs, err := uc.Pantry.Preferences(ctx)
	if err != nil {
		return Errorf("Failed to get preferences: %v", err)
	}

	if category := args.String("preference_type"); category != "" {
		filtered := []pantry.Preference{}
		for _, p := range prefs {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		prefs = filtered
	}
	return Success("preferences", prefs)
}

func clearMealPlan(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	start, err := time.Parse("2006-01-02", args.String("start_date"))
	if err != nil {
		return Errorf("Failed to clear meal plan: invalid start_date %q", args.String("start_date"))
	}
	days := args.IntOr("days", 7)

	cleared := 0
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		if err := uc.Pantry.SetMealPlan(ctx, date, ""); err == nil {
			cleared++
		}
	}
	return Success(
		"message", fmt.Sprintf("Cleared %d days from meal plan", cleared),
		"cleared_days", cleared,
	)
}

func addPreference(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	category := args.String("category")
	item := args.String("item")

	err := uc.Pantry.AddPreference(ctx, category, item, args.String("level"), args.String("notes"))
	if err != nil {
		return Errorf("Failed to add preference: %v", err)
	}
	return Success("message", fmt.Sprintf("Added %s preference for %s", category, item))
}

func executeRecipe(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	name := args.String("recipe_name")
	message, err := uc.Pantry.ExecuteRecipe(ctx, name)
	if errors.Is(err, pantry.ErrNotFound) {
		return Errorf("Recipe '%s' not found", name)
	}
	if errors.Is(err, pantry.ErrInsufficientStock) {
		return Errorf("%v", err)
	}
	if err != nil {
		return Errorf("Failed to execute recipe: %v", err)
	}
	return Success("message", message)
}

func getWeekPlan(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	plan, err := uc.Pantry.WeekPlan(ctx)
	if err != nil {
		return Errorf("Failed to get week plan: %v", err)
	}
	return Success("meal_plan", plan)
}

func setRecipeForDate(ctx context.Context, uc *dispatcher.UserContext, args Args) Result {
	date := args.String("meal_date")
	recipe := args.String("recipe_name")

	err := uc.Pantry.SetMealPlan(ctx, date, recipe)
	if errors.Is(err, pantry.ErrNotFound) {
		return Errorf("Recipe '%s' not found", recipe)
	}
	if err != nil {
		return Errorf("Failed to set recipe for date: %v", err)
	}
	if recipe == "" {
		return Success("message", fmt.Sprintf("Cleared meal plan for %s", date))
	}
	return Success("message", fmt.Sprintf("Set '%s' for %s", recipe, date))
}
