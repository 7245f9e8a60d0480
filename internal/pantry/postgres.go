package pantry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// postgresSchema is the shared multi-tenant schema. Every domain table is
// scoped by user_id so one database serves all users.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS units (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		base_unit VARCHAR(20) NOT NULL,
		size REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS ingredients (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		default_unit VARCHAR(50) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS preferences (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		category VARCHAR(50) NOT NULL,
		item VARCHAR(255) NOT NULL,
		level VARCHAR(50) NOT NULL,
		notes TEXT,
		created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, category, item)
	)`,
	`CREATE TABLE IF NOT EXISTS pantry_transactions (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		transaction_type VARCHAR(20) NOT NULL CHECK (transaction_type IN ('addition', 'removal')),
		ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
		quantity DOUBLE PRECISION NOT NULL,
		unit VARCHAR(50) NOT NULL,
		transaction_date TIMESTAMP NOT NULL,
		notes TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id SERIAL PRIMARY KEY,
		short_id TEXT,
		user_id INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		instructions TEXT NOT NULL,
		time_minutes INTEGER NOT NULL,
		rating INTEGER CHECK (rating >= 1 AND rating <= 5),
		created_date TIMESTAMP NOT NULL,
		last_modified TIMESTAMP NOT NULL,
		UNIQUE(user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_ingredients (
		id SERIAL PRIMARY KEY,
		recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
		quantity DOUBLE PRECISION NOT NULL,
		unit VARCHAR(50) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meal_plan (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		meal_date DATE NOT NULL,
		recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		UNIQUE(user_id, meal_date)
	)`,
	`CREATE TABLE IF NOT EXISTS household_characteristics (
		user_id INTEGER PRIMARY KEY,
		adults INTEGER NOT NULL DEFAULT 2,
		children INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		updated_date TIMESTAMP NOT NULL
	)`,
}

// OpenPostgres opens a connection pool to the shared PostgreSQL database.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres database: %w", err)
	}
	return db, nil
}

// SetupPostgresSchema creates the shared tables if they do not exist.
func SetupPostgresSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range postgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// PostgresManager is a per-user view onto the shared PostgreSQL database.
// All queries carry the user ID, so instances are cheap and one is created
// per authenticated user.
type PostgresManager struct {
	db     *sql.DB
	userID int64
	now    func() time.Time
}

var _ Manager = (*PostgresManager)(nil)

// NewPostgres returns a Manager scoped to the given user. The *sql.DB is
// shared; Close is a no-op so one user closing does not tear down the pool.
func NewPostgres(db *sql.DB, userID int64) *PostgresManager {
	return &PostgresManager{db: db, userID: userID, now: time.Now}
}

// SeedUnits inserts the default measurement units for a freshly registered
// user. Existing rows are left alone.
func (m *PostgresManager) SeedUnits(ctx context.Context) error {
	for _, u := range DefaultUnits {
		_, err := m.db.ExecContext(ctx,
			`INSERT INTO units (user_id, name, base_unit, size) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, name) DO NOTHING`,
			m.userID, u.Name, u.BaseUnit, u.Size)
		if err != nil {
			return fmt.Errorf("failed to seed unit %q: %w", u.Name, err)
		}
	}
	return nil
}

func (m *PostgresManager) Close() error { return nil }

func (m *PostgresManager) AddIngredient(ctx context.Context, name, defaultUnit string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO ingredients (user_id, name, default_unit) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, name) DO NOTHING`,
		m.userID, name, defaultUnit)
	if err != nil {
		return fmt.Errorf("failed to add ingredient %q: %w", name, err)
	}
	return nil
}

func (m *PostgresManager) IngredientID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := m.db.QueryRowContext(ctx,
		`SELECT id FROM ingredients WHERE user_id = $1 AND name = $2`,
		m.userID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("ingredient %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (m *PostgresManager) ensureIngredientTx(ctx context.Context, tx *sql.Tx, name, unit string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO ingredients (user_id, name, default_unit) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		m.userID, name, unit).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve ingredient %q: %w", name, err)
	}
	return id, nil
}

func (m *PostgresManager) AddPreference(ctx context.Context, category, item, level, notes string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, category, item, level, notes, created_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, category, item) DO UPDATE SET level = EXCLUDED.level, notes = EXCLUDED.notes`,
		m.userID, category, item, level, notes, m.now())
	if err != nil {
		return fmt.Errorf("failed to add preference: %w", err)
	}
	return nil
}

func (m *PostgresManager) UpdatePreference(ctx context.Context, id int64, level, notes string) error {
	res, err := m.db.ExecContext(ctx,
		`UPDATE preferences SET level = $1, notes = $2 WHERE id = $3 AND user_id = $4`,
		level, notes, id, m.userID)
	if err != nil {
		return err
	}
	return checkAffected(res, fmt.Sprintf("preference %d", id))
}

func (m *PostgresManager) DeletePreference(ctx context.Context, id int64) error {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE id = $1 AND user_id = $2`, id, m.userID)
	if err != nil {
		return err
	}
	return checkAffected(res, fmt.Sprintf("preference %d", id))
}

func checkAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func (m *PostgresManager) Preferences(ctx context.Context) ([]Preference, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, category, item, level, COALESCE(notes, ''), created_date
		 FROM preferences WHERE user_id = $1 ORDER BY id`, m.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.ID, &p.Category, &p.Item, &p.Level, &p.Notes, &p.CreatedDate); err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func (m *PostgresManager) AddItem(ctx context.Context, name string, quantity float64, unit, notes string) error {
	return m.recordTransaction(ctx, TransactionAddition, name, quantity, unit, notes)
}

func (m *PostgresManager) RemoveItem(ctx context.Context, name string, quantity float64, unit, notes string) error {
	return m.recordTransaction(ctx, TransactionRemoval, name, quantity, unit, notes)
}

func (m *PostgresManager) recordTransaction(ctx context.Context, txType, name string, quantity float64, unit, notes string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %v", quantity)
	}
	return m.inTx(ctx, func(tx *sql.Tx) error {
		ingID, err := m.ensureIngredientTx(ctx, tx, name, unit)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO pantry_transactions (user_id, transaction_type, ingredient_id, quantity, unit, transaction_date, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.userID, txType, ingID, quantity, unit, m.now(), notes)
		return err
	})
}

func (m *PostgresManager) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (m *PostgresManager) ItemQuantity(ctx context.Context, name, unit string) (float64, error) {
	var total sql.NullFloat64
	err := m.db.QueryRowContext(ctx,
		`SELECT SUM(CASE WHEN t.transaction_type = 'addition' THEN t.quantity ELSE -t.quantity END)
		 FROM pantry_transactions t
		 JOIN ingredients i ON i.id = t.ingredient_id
		 WHERE t.user_id = $1 AND i.name = $2 AND t.unit = $3`,
		m.userID, name, unit).Scan(&total)
	if err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Float64, nil
}

func (m *PostgresManager) Contents(ctx context.Context) (map[string]map[string]float64, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT i.name, t.unit,
		        SUM(CASE WHEN t.transaction_type = 'addition' THEN t.quantity ELSE -t.quantity END)
		 FROM pantry_transactions t
		 JOIN ingredients i ON i.id = t.ingredient_id
		 WHERE t.user_id = $1
		 GROUP BY i.name, t.unit`, m.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contents := make(map[string]map[string]float64)
	for rows.Next() {
		var name, unit string
		var total float64
		if err := rows.Scan(&name, &unit, &total); err != nil {
			return nil, err
		}
		if total == 0 {
			continue
		}
		if contents[name] == nil {
			contents[name] = make(map[string]float64)
		}
		contents[name][unit] = total
	}
	return contents, rows.Err()
}

func (m *PostgresManager) TransactionHistory(ctx context.Context, itemName string) ([]Transaction, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT t.id, t.transaction_type, i.name, t.quantity, t.unit, t.transaction_date, COALESCE(t.notes, '')
		 FROM pantry_transactions t
		 JOIN ingredients i ON i.id = t.ingredient_id
		 WHERE t.user_id = $1 AND i.name = $2
		 ORDER BY t.transaction_date DESC, t.id DESC`,
		m.userID, itemName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.Item, &t.Quantity, &t.Unit, &t.Date, &t.Notes); err != nil {
			return nil, err
		}
		history = append(history, t)
	}
	return history, rows.Err()
}

func (m *PostgresManager) AddRecipe(ctx context.Context, r Recipe) (string, error) {
	var shortID string
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		now := m.now()
		var id int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO recipes (user_id, name, instructions, time_minutes, rating, created_date, last_modified)
			 VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
			m.userID, r.Name, r.Instructions, r.TimeMinutes, r.Rating, now).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to add recipe %q: %w", r.Name, err)
		}

		shortID = ShortID(id)
		_, err = tx.ExecContext(ctx, `UPDATE recipes SET short_id = $1 WHERE id = $2`, shortID, id)
		if err != nil {
			return err
		}

		return m.replaceIngredientsTx(ctx, tx, id, r.Ingredients)
	})
	if err != nil {
		return "", err
	}
	return shortID, nil
}

func (m *PostgresManager) replaceIngredientsTx(ctx context.Context, tx *sql.Tx, recipeID int64, ingredients []RecipeIngredient) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = $1`, recipeID)
	if err != nil {
		return err
	}
	for _, ing := range ingredients {
		ingID, err := m.ensureIngredientTx(ctx, tx, ing.Name, ing.Unit)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity, unit) VALUES ($1, $2, $3, $4)`,
			recipeID, ingID, ing.Quantity, ing.Unit)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *PostgresManager) loadIngredients(ctx context.Context, recipeID int64) ([]RecipeIngredient, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT i.name, ri.quantity, ri.unit
		 FROM recipe_ingredients ri
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id = $1
		 ORDER BY i.name`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ings []RecipeIngredient
	for rows.Next() {
		var ing RecipeIngredient
		if err := rows.Scan(&ing.Name, &ing.Quantity, &ing.Unit); err != nil {
			return nil, err
		}
		ings = append(ings, ing)
	}
	return ings, rows.Err()
}

func (m *PostgresManager) scanRecipe(row *sql.Row) (*Recipe, error) {
	var r Recipe
	var shortID sql.NullString
	err := row.Scan(&r.ID, &shortID, &r.Name, &r.Instructions, &r.TimeMinutes, &r.Rating, &r.CreatedDate, &r.LastModified)
	if err != nil {
		return nil, err
	}
	if shortID.Valid {
		r.ShortID = shortID.String
	} else {
		r.ShortID = ShortID(r.ID)
	}
	return &r, nil
}

const recipeColumns = `id, short_id, name, instructions, time_minutes, rating, created_date, last_modified`

func (m *PostgresManager) GetRecipe(ctx context.Context, name string) (*Recipe, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE user_id = $1 AND name = $2`,
		m.userID, name)
	r, err := m.scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recipe %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r.Ingredients, err = m.loadIngredients(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (m *PostgresManager) AllRecipes(ctx context.Context) ([]Recipe, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE user_id = $1 ORDER BY name`, m.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipes []Recipe
	for rows.Next() {
		var r Recipe
		var shortID sql.NullString
		err := rows.Scan(&r.ID, &shortID, &r.Name, &r.Instructions, &r.TimeMinutes, &r.Rating, &r.CreatedDate, &r.LastModified)
		if err != nil {
			return nil, err
		}
		if shortID.Valid {
			r.ShortID = shortID.String
		} else {
			r.ShortID = ShortID(r.ID)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recipes {
		recipes[i].Ingredients, err = m.loadIngredients(ctx, recipes[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return recipes, nil
}

func (m *PostgresManager) EditRecipe(ctx context.Context, r Recipe) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM recipes WHERE user_id = $1 AND name = $2`, m.userID, r.Name).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("recipe %q: %w", r.Name, ErrNotFound)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE recipes SET instructions = $1, time_minutes = $2, last_modified = $3 WHERE id = $4`,
			r.Instructions, r.TimeMinutes, m.now(), id)
		if err != nil {
			return err
		}
		return m.replaceIngredientsTx(ctx, tx, id, r.Ingredients)
	})
}

func (m *PostgresManager) EditRecipeByShortID(ctx context.Context, shortID string, upd RecipeUpdate) error {
	id, ok := ParseShortID(shortID)
	if !ok {
		return fmt.Errorf("invalid recipe ID %q: %w", shortID, ErrNotFound)
	}

	return m.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT TRUE FROM recipes WHERE id = $1 AND user_id = $2`, id, m.userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("recipe %q: %w", shortID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		set := []string{"last_modified = $1"}
		args := []interface{}{m.now()}
		if upd.Name != nil {
			args = append(args, *upd.Name)
			set = append(set, fmt.Sprintf("name = $%d", len(args)))
		}
		if upd.Instructions != nil {
			args = append(args, *upd.Instructions)
			set = append(set, fmt.Sprintf("instructions = $%d", len(args)))
		}
		if upd.TimeMinutes != nil {
			args = append(args, *upd.TimeMinutes)
			set = append(set, fmt.Sprintf("time_minutes = $%d", len(args)))
		}
		args = append(args, id)
		query := fmt.Sprintf("UPDATE recipes SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		if upd.Ingredients != nil {
			return m.replaceIngredientsTx(ctx, tx, id, upd.Ingredients)
		}
		return nil
	})
}

func (m *PostgresManager) RecipeShortID(ctx context.Context, name string) (string, error) {
	var id int64
	var shortID sql.NullString
	err := m.db.QueryRowContext(ctx,
		`SELECT id, short_id FROM recipes WHERE user_id = $1 AND name = $2`,
		m.userID, name).Scan(&id, &shortID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("recipe %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if shortID.Valid && shortID.String != "" {
		return shortID.String, nil
	}
	return ShortID(id), nil
}

func (m *PostgresManager) RateRecipe(ctx context.Context, name string, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, rating)
	}
	res, err := m.db.ExecContext(ctx,
		`UPDATE recipes SET rating = $1, last_modified = $2 WHERE user_id = $3 AND name = $4`,
		rating, m.now(), m.userID, name)
	if err != nil {
		return err
	}
	return checkAffected(res, fmt.Sprintf("recipe %q", name))
}

func (m *PostgresManager) ExecuteRecipe(ctx context.Context, name string) (string, error) {
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

func (m *PostgresManager) SetMealPlan(ctx context.Context, mealDate, recipeName string) error {
	if _, err := time.Parse("2006-01-02", mealDate); err != nil {
		return fmt.Errorf("invalid date %q: %w", mealDate, err)
	}

	if recipeName == "" {
		_, err := m.db.ExecContext(ctx,
			`DELETE FROM meal_plan WHERE user_id = $1 AND meal_date = $2`, m.userID, mealDate)
		return err
	}

	return m.inTx(ctx, func(tx *sql.Tx) error {
		var recipeID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM recipes WHERE user_id = $1 AND name = $2`, m.userID, recipeName).Scan(&recipeID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("recipe %q: %w", recipeName, ErrNotFound)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO meal_plan (user_id, meal_date, recipe_id) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, meal_date) DO UPDATE SET recipe_id = EXCLUDED.recipe_id`,
			m.userID, mealDate, recipeID)
		return err
	})
}

func (m *PostgresManager) MealPlan(ctx context.Context, startDate, endDate string) ([]MealPlanEntry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT to_char(mp.meal_date, 'YYYY-MM-DD'), r.name
		 FROM meal_plan mp
		 JOIN recipes r ON r.id = mp.recipe_id
		 WHERE mp.user_id = $1 AND mp.meal_date BETWEEN $2 AND $3
		 ORDER BY mp.meal_date`,
		m.userID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plan []MealPlanEntry
	for rows.Next() {
		var e MealPlanEntry
		if err := rows.Scan(&e.Date, &e.Recipe); err != nil {
			return nil, err
		}
		plan = append(plan, e)
	}
	return plan, rows.Err()
}

// WeekPlan returns the meal plan for the seven days starting today.
func (m *PostgresManager) WeekPlan(ctx context.Context) ([]MealPlanEntry, error) {
	start := m.now()
	end := start.AddDate(0, 0, 6)
	return m.MealPlan(ctx, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func (m *PostgresManager) GroceryList(ctx context.Context) ([]GroceryItem, error) {
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

func (m *PostgresManager) Household(ctx context.Context) (Household, error) {
	var h Household
	err := m.db.QueryRowContext(ctx,
		`SELECT adults, children, notes, updated_date FROM household_characteristics WHERE user_id = $1`,
		m.userID).Scan(&h.Adults, &h.Children, &h.Notes, &h.UpdatedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return Household{Adults: 2, Children: 0, UpdatedDate: m.now()}, nil
	}
	if err != nil {
		return Household{}, err
	}
	return h, nil
}

func (m *PostgresManager) SetHousehold(ctx context.Context, h Household) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO household_characteristics (user_id, adults, children, notes, updated_date)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET adults = EXCLUDED.adults, children = EXCLUDED.children,
		   notes = EXCLUDED.notes, updated_date = EXCLUDED.updated_date`,
		m.userID, h.Adults, h.Children, h.Notes, m.now())
	return err
}
