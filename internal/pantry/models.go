package pantry

import "time"

// gorm models for the single-user SQLite backend. Column names follow the
// long-standing on-disk schema so existing databases keep working.

type unitModel struct {
	ID       int64   `gorm:"primaryKey;autoIncrement"`
	Name     string  `gorm:"type:text;not null;uniqueIndex"`
	BaseUnit string  `gorm:"type:text;not null"`
	Size     float64 `gorm:"not null"`
}

func (unitModel) TableName() string { return "units" }

type ingredientModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"type:text;not null;uniqueIndex"`
	DefaultUnit string `gorm:"type:text;not null"`
}

func (ingredientModel) TableName() string { return "ingredients" }

type transactionModel struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	TransactionType string    `gorm:"type:text;not null"`
	IngredientID    int64     `gorm:"not null;index"`
	Quantity        float64   `gorm:"not null"`
	Unit            string    `gorm:"type:text;not null"`
	TransactionDate time.Time `gorm:"not null"`
	Notes           string    `gorm:"type:text"`
}

func (transactionModel) TableName() string { return "pantry_transactions" }

type recipeModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	ShortID      string    `gorm:"type:text;index"`
	Name         string    `gorm:"type:text;not null;uniqueIndex"`
	Instructions string    `gorm:"type:text;not null"`
	TimeMinutes  int       `gorm:"not null"`
	Rating       *int      `gorm:""`
	CreatedDate  time.Time `gorm:"not null"`
	LastModified time.Time `gorm:"not null"`
}

func (recipeModel) TableName() string { return "recipes" }

type recipeIngredientModel struct {
	RecipeID     int64   `gorm:"primaryKey"`
	IngredientID int64   `gorm:"primaryKey"`
	Quantity     float64 `gorm:"not null"`
	Unit         string  `gorm:"type:text;not null"`
}

func (recipeIngredientModel) TableName() string { return "recipe_ingredients" }

type preferenceModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Category    string    `gorm:"type:text;not null"`
	Item        string    `gorm:"type:text;not null"`
	Level       string    `gorm:"type:text;not null"`
	Notes       string    `gorm:"type:text"`
	CreatedDate time.Time `gorm:"not null"`
}

func (preferenceModel) TableName() string { return "preferences" }

type mealPlanModel struct {
	MealDate string `gorm:"type:text;primaryKey"`
	RecipeID int64  `gorm:"not null"`
}

func (mealPlanModel) TableName() string { return "meal_plan" }

// householdModel is a single-row table keyed at id 1.
type householdModel struct {
	ID          int64     `gorm:"primaryKey"`
	Adults      int       `gorm:"not null;default:2"`
	Children    int       `gorm:"not null;default:0"`
	Notes       string    `gorm:"type:text"`
	UpdatedDate time.Time `gorm:"not null"`
}

func (householdModel) TableName() string { return "household_characteristics" }
