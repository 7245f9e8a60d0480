package pantry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SQLiteManager {
	t.Helper()
	m, err := NewSQLite(filepath.Join(t.TempDir(), "pantry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSQLiteSeedsDefaultUnits(t *testing.T) {
	m := newTestManager(t)

	var count int64
	require.NoError(t, m.db.Model(&unitModel{}).Count(&count).Error)
	assert.Equal(t, int64(len(DefaultUnits)), count)

	// Reopening the same file must not duplicate the seed rows.
	path := filepath.Join(t.TempDir(), "reopen.db")
	first, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	second, err := NewSQLite(path)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.db.Model(&unitModel{}).Count(&count).Error)
	assert.Equal(t, int64(len(DefaultUnits)), count)
}

func TestPantryLedger(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.AddItem(ctx, "flour", 500, "Gram", "initial stock"))
	require.NoError(t, m.AddItem(ctx, "flour", 250, "Gram", ""))
	require.NoError(t, m.RemoveItem(ctx, "flour", 100, "Gram", "pancakes"))

	qty, err := m.ItemQuantity(ctx, "flour", "Gram")
	require.NoError(t, err)
	assert.Equal(t, 650.0, qty)

	// Unknown item or unit reports zero, not an error.
	qty, err = m.ItemQuantity(ctx, "saffron", "Gram")
	require.NoError(t, err)
	assert.Zero(t, qty)
	qty, err = m.ItemQuantity(ctx, "flour", "Cup")
	require.NoError(t, err)
	assert.Zero(t, qty)

	contents, err := m.Contents(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{"flour": {"Gram": 650}}, contents)

	history, err := m.TransactionHistory(ctx, "flour")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, TransactionRemoval, history[0].Type)
	assert.Equal(t, "pancakes", history[0].Notes)
}

func TestLedgerCanGoNegative(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.RemoveItem(ctx, "milk", 2, "Liter", ""))
	qty, err := m.ItemQuantity(ctx, "milk", "Liter")
	require.NoError(t, err)
	assert.Equal(t, -2.0, qty)
}

func TestRecordTransactionRejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	assert.Error(t, m.AddItem(ctx, "flour", 0, "Gram", ""))
	assert.Error(t, m.RemoveItem(ctx, "flour", -1, "Gram", ""))
}

func TestAddAndGetRecipe(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	shortID, err := m.AddRecipe(ctx, Recipe{
		Name:         "Pancakes",
		Instructions: "Mix and fry.",
		TimeMinutes:  20,
		Ingredients: []RecipeIngredient{
			{Name: "flour", Quantity: 200, Unit: "Gram"},
			{Name: "milk", Quantity: 300, Unit: "Milliliter"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, shortID)

	got, err := m.GetRecipe(ctx, "Pancakes")
	require.NoError(t, err)
	assert.Equal(t, shortID, got.ShortID)
	assert.Equal(t, "Mix and fry.", got.Instructions)
	assert.Equal(t, 20, got.TimeMinutes)
	assert.Nil(t, got.Rating)
	assert.Len(t, got.Ingredients, 2)

	id, ok := ParseShortID(shortID)
	require.True(t, ok)
	assert.Equal(t, got.ID, id)

	resolved, err := m.RecipeShortID(ctx, "Pancakes")
	require.NoError(t, err)
	assert.Equal(t, shortID, resolved)

	_, err = m.GetRecipe(ctx, "Waffles")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditRecipe(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddRecipe(ctx, Recipe{
		Name:         "Soup",
		Instructions: "Boil.",
		TimeMinutes:  30,
		Ingredients:  []RecipeIngredient{{Name: "carrot", Quantity: 3, Unit: "Piece"}},
	})
	require.NoError(t, err)

	err = m.EditRecipe(ctx, Recipe{
		Name:         "Soup",
		Instructions: "Boil slowly.",
		TimeMinutes:  45,
		Ingredients: []RecipeIngredient{
			{Name: "carrot", Quantity: 2, Unit: "Piece"},
			{Name: "onion", Quantity: 1, Unit: "Piece"},
		},
	})
	require.NoError(t, err)

	got, err := m.GetRecipe(ctx, "Soup")
	require.NoError(t, err)
	assert.Equal(t, "Boil slowly.", got.Instructions)
	assert.Equal(t, 45, got.TimeMinutes)
	assert.Len(t, got.Ingredients, 2)

	assert.ErrorIs(t, m.EditRecipe(ctx, Recipe{Name: "Stew"}), ErrNotFound)
}

func TestEditRecipeByShortID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	shortID, err := m.AddRecipe(ctx, Recipe{
		Name:         "Toast",
		Instructions: "Toast it.",
		TimeMinutes:  5,
		Ingredients:  []RecipeIngredient{{Name: "bread", Quantity: 2, Unit: "Piece"}},
	})
	require.NoError(t, err)

	newName := "French Toast"
	newTime := 15
	err = m.EditRecipeByShortID(ctx, shortID, RecipeUpdate{Name: &newName, TimeMinutes: &newTime})
	require.NoError(t, err)

	got, err := m.GetRecipe(ctx, "French Toast")
	require.NoError(t, err)
	assert.Equal(t, 15, got.TimeMinutes)
	// Untouched fields keep their values.
	assert.Equal(t, "Toast it.", got.Instructions)
	assert.Len(t, got.Ingredients, 1)

	assert.ErrorIs(t, m.EditRecipeByShortID(ctx, "RZZZ", RecipeUpdate{}), ErrNotFound)
	assert.ErrorIs(t, m.EditRecipeByShortID(ctx, "garbage", RecipeUpdate{}), ErrNotFound)
}

func TestRateRecipe(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddRecipe(ctx, Recipe{Name: "Salad", Instructions: "Chop.", TimeMinutes: 10})
	require.NoError(t, err)

	require.NoError(t, m.RateRecipe(ctx, "Salad", 4))
	got, err := m.GetRecipe(ctx, "Salad")
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 4, *got.Rating)

	assert.Error(t, m.RateRecipe(ctx, "Salad", 0))
	assert.Error(t, m.RateRecipe(ctx, "Salad", 6))
	assert.ErrorIs(t, m.RateRecipe(ctx, "Nope", 3), ErrNotFound)
}

func TestExecuteRecipe(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddRecipe(ctx, Recipe{
		Name:         "Omelette",
		Instructions: "Whisk and cook.",
		TimeMinutes:  10,
		Ingredients: []RecipeIngredient{
			{Name: "egg", Quantity: 3, Unit: "Piece"},
			{Name: "butter", Quantity: 20, Unit: "Gram"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, m.AddItem(ctx, "egg", 2, "Piece", ""))
	require.NoError(t, m.AddItem(ctx, "butter", 100, "Gram", ""))

	// Short on eggs: nothing may be removed.
	_, err = m.ExecuteRecipe(ctx, "Omelette")
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "egg: need 3 Piece, have 2 Piece")

	butter, err := m.ItemQuantity(ctx, "butter", "Gram")
	require.NoError(t, err)
	assert.Equal(t, 100.0, butter)

	require.NoError(t, m.AddItem(ctx, "egg", 4, "Piece", ""))
	msg, err := m.ExecuteRecipe(ctx, "Omelette")
	require.NoError(t, err)
	assert.Contains(t, msg, "Successfully made Omelette")

	eggs, err := m.ItemQuantity(ctx, "egg", "Piece")
	require.NoError(t, err)
	assert.Equal(t, 3.0, eggs)
	butter, err = m.ItemQuantity(ctx, "butter", "Gram")
	require.NoError(t, err)
	assert.Equal(t, 80.0, butter)

	history, err := m.TransactionHistory(ctx, "egg")
	require.NoError(t, err)
	assert.Equal(t, "Used in recipe: Omelette", history[0].Notes)

	_, err = m.ExecuteRecipe(ctx, "Unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMealPlanAndGroceryList(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	today := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return today }

	_, err := m.AddRecipe(ctx, Recipe{
		Name:         "Curry",
		Instructions: "Simmer.",
		TimeMinutes:  40,
		Ingredients: []RecipeIngredient{
			{Name: "rice", Quantity: 200, Unit: "Gram"},
			{Name: "coconut milk", Quantity: 400, Unit: "Milliliter"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, m.SetMealPlan(ctx, "2026-03-03", "Curry"))
	require.NoError(t, m.SetMealPlan(ctx, "2026-03-05", "Curry"))
	// Outside the seven-day grocery window.
	require.NoError(t, m.SetMealPlan(ctx, "2026-03-20", "Curry"))

	assert.ErrorIs(t, m.SetMealPlan(ctx, "2026-03-04", "Nonexistent"), ErrNotFound)
	assert.Error(t, m.SetMealPlan(ctx, "not-a-date", "Curry"))

	plan, err := m.MealPlan(ctx, "2026-03-01", "2026-03-07")
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, MealPlanEntry{Date: "2026-03-03", Recipe: "Curry"}, plan[0])

	// Replanning a date overwrites, clearing with an empty name removes.
	_, err = m.AddRecipe(ctx, Recipe{Name: "Stir Fry", Instructions: "Fry.", TimeMinutes: 15})
	require.NoError(t, err)
	require.NoError(t, m.SetMealPlan(ctx, "2026-03-03", "Stir Fry"))
	require.NoError(t, m.SetMealPlan(ctx, "2026-03-05", ""))
	plan, err = m.MealPlan(ctx, "2026-03-01", "2026-03-07")
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "Stir Fry", plan[0].Recipe)

	// Grocery list covers the window's shortfalls only.
	require.NoError(t, m.SetMealPlan(ctx, "2026-03-05", "Curry"))
	require.NoError(t, m.AddItem(ctx, "rice", 150, "Gram", ""))

	list, err := m.GroceryList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, GroceryItem{Name: "coconut milk", Quantity: 400, Unit: "Milliliter"}, list[0])
	assert.Equal(t, GroceryItem{Name: "rice", Quantity: 50, Unit: "Gram"}, list[1])
}

func TestWeekPlanUsesManagerClock(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	today := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return today }

	_, err := m.AddRecipe(ctx, Recipe{Name: "Curry", Instructions: "Simmer.", TimeMinutes: 40})
	require.NoError(t, err)
	require.NoError(t, m.SetMealPlan(ctx, "2026-03-02", "Curry"))
	require.NoError(t, m.SetMealPlan(ctx, "2026-03-08", "Curry"))
	// One day past the seven-day window.
	require.NoError(t, m.SetMealPlan(ctx, "2026-03-09", "Curry"))

	plan, err := m.WeekPlan(ctx)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "2026-03-02", plan[0].Date)
	assert.Equal(t, "2026-03-08", plan[1].Date)

	// Advancing the clock moves the window.
	m.now = func() time.Time { return today.AddDate(0, 0, 7) }
	plan, err = m.WeekPlan(ctx)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "2026-03-09", plan[0].Date)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.AddPreference(ctx, "allergy", "peanuts", "required", "severe"))
	require.NoError(t, m.AddPreference(ctx, "dislike", "mushrooms", "preferred", ""))

	prefs, err := m.Preferences(ctx)
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "peanuts", prefs[0].Item)

	require.NoError(t, m.UpdatePreference(ctx, prefs[1].ID, "avoid", "texture"))
	prefs, err = m.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "avoid", prefs[1].Level)
	assert.Equal(t, "texture", prefs[1].Notes)

	require.NoError(t, m.DeletePreference(ctx, prefs[0].ID))
	prefs, err = m.Preferences(ctx)
	require.NoError(t, err)
	assert.Len(t, prefs, 1)

	assert.ErrorIs(t, m.UpdatePreference(ctx, 9999, "x", ""), ErrNotFound)
	assert.ErrorIs(t, m.DeletePreference(ctx, 9999), ErrNotFound)
}

func TestHousehold(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	// Defaults before anything is stored.
	h, err := m.Household(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Adults)
	assert.Equal(t, 0, h.Children)

	require.NoError(t, m.SetHousehold(ctx, Household{Adults: 3, Children: 2, Notes: "one toddler"}))
	h, err = m.Household(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Adults)
	assert.Equal(t, 2, h.Children)
	assert.Equal(t, "one toddler", h.Notes)

	// Upsert, not insert.
	require.NoError(t, m.SetHousehold(ctx, Household{Adults: 4}))
	h, err = m.Household(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Adults)
}

func TestFactorySQLite(t *testing.T) {
	ctx := context.Background()
	f, err := NewFactory(ctx, BackendSQLite, filepath.Join(t.TempDir(), "pantry.db"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, BackendSQLite, f.Backend())
	// SQLite is single-user: every caller shares one manager.
	assert.Same(t, f.Local(), f.ForUser(42))
	require.NoError(t, f.SeedUser(ctx, 42))

	_, err = NewFactory(ctx, "mongodb", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pantry backend")
}
