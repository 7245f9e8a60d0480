package pantry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteManager is the single-user pantry backed by a local SQLite file.
type SQLiteManager struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Manager = (*SQLiteManager)(nil)

// NewSQLite opens (creating if necessary) the SQLite database at path,
// migrates the schema, and seeds the default measurement units.
func NewSQLite(path string) (*SQLiteManager, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}

	m := &SQLiteManager{db: db, now: time.Now}
	if err := m.migrate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SQLiteManager) migrate() error {
	err := m.db.AutoMigrate(
		&unitModel{},
		&ingredientModel{},
		&transactionModel{},
		&recipeModel{},
		&recipeIngredientModel{},
		&preferenceModel{},
		&mealPlanModel{},
		&householdModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	for _, u := range DefaultUnits {
		unit := unitModel{Name: u.Name, BaseUnit: u.BaseUnit, Size: u.Size}
		err := m.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&unit).Error
		if err != nil {
			return fmt.Errorf("failed to seed unit %q: %w", u.Name, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (m *SQLiteManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m *SQLiteManager) AddIngredient(ctx context.Context, name, defaultUnit string) error {
	ing := ingredientModel{Name: name, DefaultUnit: defaultUnit}
	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ing).Error
	if err != nil {
		return fmt.Errorf("failed to add ingredient %q: %w", name, err)
	}
	return nil
}

func (m *SQLiteManager) IngredientID(ctx context.Context, name string) (int64, error) {
	var ing ingredientModel
	err := m.db.WithContext(ctx).Where("name = ?", name).First(&ing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("ingredient %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return ing.ID, nil
}

// ensureIngredient returns the ingredient's ID, creating it with the given
// unit as its default if it does not exist yet.
func ensureIngredient(tx *gorm.DB, name, unit string) (int64, error) {
	var ing ingredientModel
	err := tx.Where("name = ?", name).First(&ing).Error
	if err == nil {
		return ing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	ing = ingredientModel{Name: name, DefaultUnit: unit}
	if err := tx.Create(&ing).Error; err != nil {
		return 0, fmt.Errorf("failed to create ingredient %q: %w", name, err)
	}
	return ing.ID, nil
}

func (m *SQLiteManager) AddPreference(ctx context.Context, category, item, level, notes string) error {
	pref := preferenceModel{
		Category:    category,
		Item:        item,
		Level:       level,
		Notes:       notes,
		CreatedDate: m.now(),
	}
	if err := m.db.WithContext(ctx).Create(&pref).Error; err != nil {
		return fmt.Errorf("failed to add preference: %w", err)
	}
	return nil
}

func (m *SQLiteManager) UpdatePreference(ctx context.Context, id int64, level, notes string) error {
	res := m.db.WithContext(ctx).Model(&preferenceModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"level": level, "notes": notes})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("preference %d: %w", id, ErrNotFound)
	}
	return nil
}

func (m *SQLiteManager) DeletePreference(ctx context.Context, id int64) error {
	res := m.db.WithContext(ctx).Delete(&preferenceModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("preference %d: %w", id, ErrNotFound)
	}
	return nil
}

func (m *SQLiteManager) Preferences(ctx context.Context) ([]Preference, error) {
	var rows []preferenceModel
	if err := m.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	prefs := make([]Preference, 0, len(rows))
	for _, r := range rows {
		prefs = append(prefs, Preference{
			ID:          r.ID,
			Category:    r.Category,
			Item:        r.Item,
			Level:       r.Level,
			Notes:       r.Notes,
			CreatedDate: r.CreatedDate,
		})
	}
	return prefs, nil
}

func (m *SQLiteManager) AddItem(ctx context.Context, name string, quantity float64, unit, notes string) error {
	return m.recordTransaction(ctx, TransactionAddition, name, quantity, unit, notes)
}

func (m *SQLiteManager) RemoveItem(ctx context.Context, name string, quantity float64, unit, notes string) error {
	return m.recordTransaction(ctx, TransactionRemoval, name, quantity, unit, notes)
}

func (m *SQLiteManager) recordTransaction(ctx context.Context, txType, name string, quantity float64, unit, notes string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %v", quantity)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ingID, err := ensureIngredient(tx, name, unit)
		if err != nil {
			return err
		}
		rec := transactionModel{
			TransactionType: txType,
			IngredientID:    ingID,
			Quantity:        quantity,
			Unit:            unit,
			TransactionDate: m.now(),
			Notes:           notes,
		}
		return tx.Create(&rec).Error
	})
}

// ItemQuantity returns current stock for an item in a unit: additions minus
// removals over the full ledger. Unknown items report zero stock.
func (m *SQLiteManager) ItemQuantity(ctx context.Context, name, unit string) (float64, error) {
	var total *float64
	err := m.db.WithContext(ctx).Model(&transactionModel{}).
		Select("SUM(CASE WHEN transaction_type = ? THEN quantity ELSE -quantity END)", TransactionAddition).
		Joins("JOIN ingredients ON ingredients.id = pantry_transactions.ingredient_id").
		Where("ingredients.name = ? AND pantry_transactions.unit = ?", name, unit).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (m *SQLiteManager) Contents(ctx context.Context) (map[string]map[string]float64, error) {
	type row struct {
		Name  string
		Unit  string
		Total float64
	}
	var rows []row
	err := m.db.WithContext(ctx).Model(&transactionModel{}).
		Select("ingredients.name AS name, pantry_transactions.unit AS unit, SUM(CASE WHEN transaction_type = ? THEN quantity ELSE -quantity END) AS total", TransactionAddition).
		Joins("JOIN ingredients ON ingredients.id = pantry_transactions.ingredient_id").
		Group("ingredients.name, pantry_transactions.unit").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	contents := make(map[string]map[string]float64)
	for _, r := range rows {
		if r.Total == 0 {
			continue
		}
		if contents[r.Name] == nil {
			contents[r.Name] = make(map[string]float64)
		}
		contents[r.Name][r.Unit] = r.Total
	}
	return contents, nil
}

func (m *SQLiteManager) TransactionHistory(ctx context.Context, itemName string) ([]Transaction, error) {
	type row struct {
		ID              int64
		TransactionType string
		Name            string
		Quantity        float64
		Unit            string
		TransactionDate time.Time
		Notes           string
	}
	var rows []row
	err := m.db.WithContext(ctx).Model(&transactionModel{}).
		Select("pantry_transactions.id, transaction_type, ingredients.name AS name, quantity, pantry_transactions.unit, transaction_date, pantry_transactions.notes").
		Joins("JOIN ingredients ON ingredients.id = pantry_transactions.ingredient_id").
		Where("ingredients.name = ?", itemName).
		Order("transaction_date DESC, pantry_transactions.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	history := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		history = append(history, Transaction{
			ID:       r.ID,
			Type:     r.TransactionType,
			Item:     r.Name,
			Quantity: r.Quantity,
			Unit:     r.Unit,
			Date:     r.TransactionDate,
			Notes:    r.Notes,
		})
	}
	return history, nil
}

func (m *SQLiteManager) AddRecipe(ctx context.Context, r Recipe) (string, error) {
	var shortID string
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := m.now()
		rec := recipeModel{
			Name:         r.Name,
			Instructions: r.Instructions,
			TimeMinutes:  r.TimeMinutes,
			Rating:       r.Rating,
			CreatedDate:  now,
			LastModified: now,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to add recipe %q: %w", r.Name, err)
		}

		shortID = ShortID(rec.ID)
		if err := tx.Model(&rec).Update("short_id", shortID).Error; err != nil {
			return err
		}

		return replaceRecipeIngredients(tx, rec.ID, r.Ingredients)
	})
	if err != nil {
		return "", err
	}
	return shortID, nil
}

func replaceRecipeIngredients(tx *gorm.DB, recipeID int64, ingredients []RecipeIngredient) error {
	err := tx.Where("recipe_id = ?", recipeID).Delete(&recipeIngredientModel{}).Error
	if err != nil {
		return err
	}
	for _, ing := range ingredients {
		ingID, err := ensureIngredient(tx, ing.Name, ing.Unit)
		if err != nil {
			return err
		}
		link := recipeIngredientModel{
			RecipeID:     recipeID,
			IngredientID: ingID,
			Quantity:     ing.Quantity,
			Unit:         ing.Unit,
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *SQLiteManager) loadIngredients(ctx context.Context, recipeID int64) ([]RecipeIngredient, error) {
	type row struct {
		Name     string
		Quantity float64
		Unit     string
	}
	var rows []row
	err := m.db.WithContext(ctx).Model(&recipeIngredientModel{}).
		Select("ingredients.name AS name, recipe_ingredients.quantity, recipe_ingredients.unit").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("recipe_id = ?", recipeID).
		Order("ingredients.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ings := make([]RecipeIngredient, 0, len(rows))
	for _, r := range rows {
		ings = append(ings, RecipeIngredient{Name: r.Name, Quantity: r.Quantity, Unit: r.Unit})
	}
	return ings, nil
}

func (m *SQLiteManager) GetRecipe(ctx context.Context, name string) (*Recipe, error) {
	var rec recipeModel
	err := m.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("recipe %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m.toRecipe(ctx, rec)
}

func (m *SQLiteManager) toRecipe(ctx context.Context, rec recipeModel) (*Recipe, error) {
	ings, err := m.loadIngredients(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &Recipe{
		ID:           rec.ID,
		ShortID:      rec.ShortID,
		Name:         rec.Name,
		Instructions: rec.Instructions,
		TimeMinutes:  rec.TimeMinutes,
		Rating:       rec.Rating,
		CreatedDate:  rec.CreatedDate,
		LastModified: rec.LastModified,
		Ingredients:  ings,
	}, nil
}

func (m *SQLiteManager) AllRecipes(ctx context.Context) ([]Recipe, error) {
	var recs []recipeModel
	if err := m.db.WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, err
	}
	recipes := make([]Recipe, 0, len(recs))
	for _, rec := range recs {
		r, err := m.toRecipe(ctx, rec)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *r)
	}
	return recipes, nil
}

func (m *SQLiteManager) EditRecipe(ctx context.Context, r Recipe) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec recipeModel
		err := tx.Where("name = ?", r.Name).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("recipe %q: %w", r.Name, ErrNotFound)
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"instructions":  r.Instructions,
			"time_minutes":  r.TimeMinutes,
			"last_modified": m.now(),
		}
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			return err
		}
		return replaceRecipeIngredients(tx, rec.ID, r.Ingredients)
	})
}

func (m *SQLiteManager) EditRecipeByShortID(ctx context.Context, shortID string, upd RecipeUpdate) error {
	id, ok := ParseShortID(shortID)
	if !ok {
		return fmt.Errorf("invalid recipe ID %q: %w", shortID, ErrNotFound)
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec recipeModel
		err := tx.First(&rec, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("recipe %q: %w", shortID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"last_modified": m.now()}
		if upd.Name != nil {
			updates["name"] = *upd.Name
		}
		if upd.Instructions != nil {
			updates["instructions"] = *upd.Instructions
		}
		if upd.TimeMinutes != nil {
			updates["time_minutes"] = *upd.TimeMinutes
		}
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			return err
		}

		if upd.Ingredients != nil {
			return replaceRecipeIngredients(tx, rec.ID, upd.Ingredients)
		}
		return nil
	})
}

func (m *SQLiteManager) RecipeShortID(ctx context.Context, name string) (string, error) {
	var rec recipeModel
	err := m.db.WithContext(ctx).Select("id", "short_id").Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("recipe %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if rec.ShortID == "" {
		return ShortID(rec.ID), nil
	}
	return rec.ShortID, nil
}

func (m *SQLiteManager) RateRecipe(ctx context.Context, name string, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, rating)
	}
	res := m.db.WithContext(ctx).Model(&recipeModel{}).Where("name = ?", name).
		Updates(map[string]interface{}{"rating": rating, "last_modified": m.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("recipe %q: %w", name, ErrNotFound)
	}
	return nil
}

// ExecuteRecipe checks stock for every ingredient before removing anything,
// so a shortfall leaves the pantry untouched.
func (m *SQLiteManager) ExecuteRecipe(ctx context.Context, name string) (string, error) {
	recipe, err := m.GetRecipe(ctx, name)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, ing := range recipe.Ingredients {
		have, err := m.ItemQuantity(ctx, ing.Name, ing.Unit)
		if err != nil {
			return "", err
		}
		if have < ing.Quantity {
			missing = append(missing, fmt.Sprintf("%s: need %v %s, have %v %s",
				ing.Name, ing.Quantity, ing.Unit, have, ing.Unit))
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing ingredients:\n%s", ErrInsufficientStock, strings.Join(missing, "\n"))
	}

	var used []string
	for _, ing := range recipe.Ingredients {
		err := m.RemoveItem(ctx, ing.Name, ing.Quantity, ing.Unit, fmt.Sprintf("Used in recipe: %s", name))
		if err != nil {
			return "", err
		}
		used = append(used, fmt.Sprintf("%v %s of %s", ing.Quantity, ing.Unit, ing.Name))
	}

	return fmt.Sprintf("Successfully made %s using:\n%s", name, strings.Join(used, "\n")), nil
}

func (m *SQLiteManager) SetMealPlan(ctx context.Context, mealDate, recipeName string) error {
	if _, err := time.Parse("2006-01-02", mealDate); err != nil {
		return fmt.Errorf("invalid date %q: %w", mealDate, err)
	}

	if recipeName == "" {
		return m.db.WithContext(ctx).Where("meal_date = ?", mealDate).Delete(&mealPlanModel{}).Error
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec recipeModel
		err := tx.Select("id").Where("name = ?", recipeName).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("recipe %q: %w", recipeName, ErrNotFound)
		}
		if err != nil {
			return err
		}

		entry := mealPlanModel{MealDate: mealDate, RecipeID: rec.ID}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "meal_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"recipe_id"}),
		}).Create(&entry).Error
	})
}

func (m *SQLiteManager) MealPlan(ctx context.Context, startDate, endDate string) ([]MealPlanEntry, error) {
	type row struct {
		MealDate string
		Name     string
	}
	var rows []row
	err := m.db.WithContext(ctx).Model(&mealPlanModel{}).
		Select("meal_date, recipes.name AS name").
		Joins("JOIN recipes ON recipes.id = meal_plan.recipe_id").
		Where("meal_date BETWEEN ? AND ?", startDate, endDate).
		Order("meal_date").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	plan := make([]MealPlanEntry, 0, len(rows))
	for _, r := range rows {
		plan = append(plan, MealPlanEntry{Date: r.MealDate, Recipe: r.Name})
	}
	return plan, nil
}

// WeekPlan returns the meal plan for the seven days starting today.
func (m *SQLiteManager) WeekPlan(ctx context.Context) ([]MealPlanEntry, error) {
	start := m.now()
	end := start.AddDate(0, 0, 6)
	return m.MealPlan(ctx, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// GroceryList computes the shortfall between the next seven days of planned
// meals and current pantry stock.
func (m *SQLiteManager) GroceryList(ctx context.Context) ([]GroceryItem, error) {
	plan, err := m.WeekPlan(ctx)
	if err != nil {
		return nil, err
	}

	type key struct{ name, unit string }
	required := make(map[key]float64)
	var order []key
	for _, entry := range plan {
		recipe, err := m.GetRecipe(ctx, entry.Recipe)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, ing := range recipe.Ingredients {
			k := key{ing.Name, ing.Unit}
			if _, seen := required[k]; !seen {
				order = append(order, k)
			}
			required[k] += ing.Quantity
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].name != order[j].name {
			return order[i].name < order[j].name
		}
		return order[i].unit < order[j].unit
	})

	var list []GroceryItem
	for _, k := range order {
		have, err := m.ItemQuantity(ctx, k.name, k.unit)
		if err != nil {
			return nil, err
		}
		if have < required[k] {
			list = append(list, GroceryItem{Name: k.name, Quantity: required[k] - have, Unit: k.unit})
		}
	}
	return list, nil
}

func (m *SQLiteManager) Household(ctx context.Context) (Household, error) {
	var row householdModel
	err := m.db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Household{Adults: 2, Children: 0, UpdatedDate: m.now()}, nil
	}
	if err != nil {
		return Household{}, err
	}
	return Household{
		Adults:      row.Adults,
		Children:    row.Children,
		Notes:       row.Notes,
		UpdatedDate: row.UpdatedDate,
	}, nil
}

func (m *SQLiteManager) SetHousehold(ctx context.Context, h Household) error {
	row := householdModel{
		ID:          1,
		Adults:      h.Adults,
		Children:    h.Children,
		Notes:       h.Notes,
		UpdatedDate: m.now(),
	}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"adults", "children", "notes", "updated_date"}),
	}).Create(&row).Error
}
