package recipes

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockpot/internal/database"
	"stockpot/internal/metrics"
)

const maxIngredientNameLen = 128

// IngredientRegistry maps free-text ingredient names onto shared Ingredient rows.
type IngredientRegistry struct {
	db *gorm.DB
}

// NewIngredientRegistry binds a registry to db, which may be a transaction.
func NewIngredientRegistry(db *gorm.DB) *IngredientRegistry {
	return &IngredientRegistry{db: db}
}

// NormalizeName returns the stored form of an ingredient name.
func NormalizeName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Resolve returns the ingredient whose stored name equals the normalized raw name,
// creating it when none exists. A blank name yields a "name: required" validation error.
//
// Creation is an insert that ignores unique-index conflicts followed by a re-select,
// so concurrent resolutions of a new name converge on one row.
func (r *IngredientRegistry) Resolve(ctx context.Context, raw string) (database.Ingredient, error) {
	name := NormalizeName(raw)
	if name == "" {
		verrs := &ValidationErrors{}
		verrs.Add("name", MsgRequired)
		return database.Ingredient{}, verrs
	}

	ing, found, err := r.lookup(ctx, name)
	if err != nil {
		return database.Ingredient{}, err
	}
	if found {
		return ing, nil
	}

	ing = database.Ingredient{Name: name}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&ing)
	if res.Error != nil {
		return database.Ingredient{}, fmt.Errorf("create ingredient %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race to another writer; use its row.
		ing, found, err = r.lookup(ctx, name)
		if err != nil {
			return database.Ingredient{}, err
		}
		if !found {
			return database.Ingredient{}, fmt.Errorf("ingredient %q vanished after conflicting insert", name)
		}
		return ing, nil
	}

	metrics.IngredientCreated()
	return ing, nil
}

// Find returns the ingredient stored under the normalized form of raw.
func (r *IngredientRegistry) Find(ctx context.Context, raw string) (database.Ingredient, error) {
	ing, found, err := r.lookup(ctx, NormalizeName(raw))
	if err != nil {
		return database.Ingredient{}, err
	}
	if !found {
		return database.Ingredient{}, ErrNotFound
	}
	return ing, nil
}

func (r *IngredientRegistry) lookup(ctx context.Context, name string) (database.Ingredient, bool, error) {
	var ing database.Ingredient
	res := r.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&ing)
	if res.Error != nil {
		return database.Ingredient{}, false, fmt.Errorf("lookup ingredient %q: %w", name, res.Error)
	}
	return ing, res.RowsAffected > 0, nil
}
