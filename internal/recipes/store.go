package recipes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"stockpot/internal/database"
)

// Store persists recipes and their owned sub-records. It performs no ownership checks.
type Store struct {
	db *gorm.DB
}

// NewStore binds a store to db, which may be a transaction.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func validateTitle(title string) *ValidationErrors {
	verrs := &ValidationErrors{}
	if strings.TrimSpace(title) == "" {
		verrs.Add("title", MsgRequired)
	}
	return verrs
}

// CreateRecipe inserts a recipe authored by authorID (nil for no author).
func (s *Store) CreateRecipe(ctx context.Context, title string, authorID *uint) (*database.Recipe, error) {
	if err := validateTitle(title).Err(); err != nil {
		return nil, err
	}

	recipe := database.Recipe{
		Title:    strings.TrimSpace(title),
		AuthorID: authorID,
	}
	if err := s.db.WithContext(ctx).Create(&recipe).Error; err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	return &recipe, nil
}

// SaveRecipe replaces the title of an existing recipe.
func (s *Store) SaveRecipe(ctx context.Context, recipe *database.Recipe, title string) error {
	if err := validateTitle(title).Err(); err != nil {
		return err
	}

	title = strings.TrimSpace(title)
	res := s.db.WithContext(ctx).
		Model(&database.Recipe{}).
		Where("id = ?", recipe.ID).
		Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("update recipe %d: %w", recipe.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	recipe.Title = title
	return nil
}

// DeleteRecipe removes the recipe, its steps and its measured ingredients.
// Ingredient rows are left in place.
func (s *Store) DeleteRecipe(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&database.MeasuredIngredient{}).Error; err != nil {
			return fmt.Errorf("delete measured ingredients of recipe %d: %w", id, err)
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&database.RecipeStep{}).Error; err != nil {
			return fmt.Errorf("delete steps of recipe %d: %w", id, err)
		}
		res := tx.Delete(&database.Recipe{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete recipe %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// FindRecipe loads a recipe with its author, without sub-records.
func (s *Store) FindRecipe(ctx context.Context, id uint) (*database.Recipe, error) {
	var recipe database.Recipe
	err := s.db.WithContext(ctx).
		Preload("Author").
		First(&recipe, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find recipe %d: %w", id, err)
	}
	return &recipe, nil
}

// LoadRecipe loads the whole aggregate: author, steps and measured ingredients
// with their ingredient, sub-records in insertion order.
func (s *Store) LoadRecipe(ctx context.Context, id uint) (*database.Recipe, error) {
	var recipe database.Recipe
	err := s.db.WithContext(ctx).
		Preload("Author.User").
		Preload("Steps", byID).
		Preload("Ingredients", byID).
		Preload("Ingredients.Ingredient").
		First(&recipe, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load recipe %d: %w", id, err)
	}
	return &recipe, nil
}

// ListRecipes returns every recipe with its author, oldest first.
func (s *Store) ListRecipes(ctx context.Context) ([]database.Recipe, error) {
	var recipes []database.Recipe
	if err := s.db.WithContext(ctx).
		Preload("Author.User").
		Order("id ASC").
		Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

// ListRecipesByAuthor returns the recipes authored by profileID, oldest first.
func (s *Store) ListRecipesByAuthor(ctx context.Context, profileID uint) ([]database.Recipe, error) {
	var recipes []database.Recipe
	if err := s.db.WithContext(ctx).
		Where("author_id = ?", profileID).
		Order("id ASC").
		Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("list recipes of profile %d: %w", profileID, err)
	}
	return recipes, nil
}

// ListSteps returns the steps of a recipe in insertion order.
func (s *Store) ListSteps(ctx context.Context, recipeID uint) ([]database.RecipeStep, error) {
	var steps []database.RecipeStep
	if err := s.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("id ASC").
		Find(&steps).Error; err != nil {
		return nil, fmt.Errorf("list steps of recipe %d: %w", recipeID, err)
	}
	return steps, nil
}

// ListMeasuredIngredients returns the measured ingredients of a recipe in insertion order.
func (s *Store) ListMeasuredIngredients(ctx context.Context, recipeID uint) ([]database.MeasuredIngredient, error) {
	var items []database.MeasuredIngredient
	if err := s.db.WithContext(ctx).
		Preload("Ingredient").
		Where("recipe_id = ?", recipeID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list measured ingredients of recipe %d: %w", recipeID, err)
	}
	return items, nil
}

func byID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
