package database

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is an account able to sign in and author recipes.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	Profile      *Profile  `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AfterCreate gives every new account its profile inside the same transaction.
func (u *User) AfterCreate(tx *gorm.DB) error {
	if u.Profile != nil {
		return nil
	}
	profile := Profile{UserID: u.ID}
	if err := tx.Create(&profile).Error; err != nil {
		return fmt.Errorf("create profile for user %d: %w", u.ID, err)
	}
	u.Profile = &profile
	return nil
}

// Profile holds the public details of a user. Recipes are authored by profiles.
type Profile struct {
	ID      uint     `gorm:"primaryKey"`
	UserID  uint     `gorm:"uniqueIndex;not null"`
	User    *User    `gorm:"constraint:OnDelete:CASCADE"`
	Name    string   `gorm:"size:255;not null;default:''"`
	Bio     string   `gorm:"type:text;not null;default:''"`
	Recipes []Recipe `gorm:"foreignKey:AuthorID"`
}

// Ingredient is shared between recipes. Name is always stored lower-cased.
type Ingredient struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:128;not null"`
}

// Recipe is the aggregate root owning its steps and measured ingredients.
type Recipe struct {
	ID          uint                 `gorm:"primaryKey"`
	Title       string               `gorm:"type:text;not null;default:''"`
	AuthorID    *uint                `gorm:"index"`
	Author      *Profile             `gorm:"constraint:OnDelete:CASCADE"`
	Steps       []RecipeStep         `gorm:"constraint:OnDelete:CASCADE"`
	Ingredients []MeasuredIngredient `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecipeStep is one preparation step of a recipe.
type RecipeStep struct {
	ID       uint   `gorm:"primaryKey"`
	Body     string `gorm:"type:text;not null;default:''"`
	RecipeID uint   `gorm:"index;not null"`
}

// MeasuredIngredient links a recipe to a shared ingredient with a quantity.
type MeasuredIngredient struct {
	ID           uint            `gorm:"primaryKey"`
	RecipeID     uint            `gorm:"index;not null"`
	IngredientID uint            `gorm:"index;not null"`
	Ingredient   Ingredient      `gorm:"constraint:OnDelete:RESTRICT"`
	Amount       decimal.Decimal `gorm:"type:decimal(6,3);not null;default:0"`
	Units        string          `gorm:"size:16;not null;default:''"`
}

// Models lists every table managed by AutoMigrate, parents first.
func Models() []any {
	return []any{
		&User{},
		&Profile{},
		&Ingredient{},
		&Recipe{},
		&RecipeStep{},
		&MeasuredIngredient{},
	}
}
