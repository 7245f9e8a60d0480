package pantry

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockManager(t *testing.T) (*PostgresManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := NewPostgres(db, 7)
	m.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	return m, mock
}

func TestPostgresItemQuantity(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectQuery(`SELECT SUM`).
		WithArgs(int64(7), "flour", "Gram").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(650.0))

	qty, err := m.ItemQuantity(context.Background(), "flour", "Gram")
	require.NoError(t, err)
	assert.Equal(t, 650.0, qty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresItemQuantityNoRows(t *testing.T) {
	m, mock := newMockManager(t)

	// SUM over no rows yields NULL, which must read as zero stock.
	mock.ExpectQuery(`SELECT SUM`).
		WithArgs(int64(7), "saffron", "Gram").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

	qty, err := m.ItemQuantity(context.Background(), "saffron", "Gram")
	require.NoError(t, err)
	assert.Zero(t, qty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddItemScopesUser(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO ingredients`)).
		WithArgs(int64(7), "flour", "Gram").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO pantry_transactions`)).
		WithArgs(int64(7), TransactionAddition, int64(12), 500.0, "Gram", m.now(), "restock").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := m.AddItem(context.Background(), "flour", 500, "Gram", "restock")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdatePreferenceNotFound(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE preferences`)).
		WithArgs("avoid", "", int64(99), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := m.UpdatePreference(context.Background(), 99, "avoid", "")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetMealPlanUnknownRecipe(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM recipes`)).
		WithArgs(int64(7), "Ghost Dish").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := m.SetMealPlan(context.Background(), "2026-03-05", "Ghost Dish")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetMealPlanClearsDate(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM meal_plan`)).
		WithArgs(int64(7), "2026-03-05").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, m.SetMealPlan(context.Background(), "2026-03-05", ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMealPlan(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectQuery(`SELECT to_char`).
		WithArgs(int64(7), "2026-03-01", "2026-03-07").
		WillReturnRows(sqlmock.NewRows([]string{"meal_date", "name"}).
			AddRow("2026-03-03", "Curry").
			AddRow("2026-03-05", "Stir Fry"))

	plan, err := m.MealPlan(context.Background(), "2026-03-01", "2026-03-07")
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, MealPlanEntry{Date: "2026-03-03", Recipe: "Curry"}, plan[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHouseholdDefaults(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT adults, children, notes, updated_date`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"adults", "children", "notes", "updated_date"}))

	h, err := m.Household(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, h.Adults)
	assert.Equal(t, 0, h.Children)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCloseLeavesPoolOpen(t *testing.T) {
	m, mock := newMockManager(t)

	require.NoError(t, m.Close())
	// The shared pool must survive a per-user Close.
	mock.ExpectQuery(`SELECT SUM`).
		WithArgs(int64(7), "flour", "Gram").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(1.0))
	_, err := m.ItemQuantity(context.Background(), "flour", "Gram")
	require.NoError(t, err)
}
