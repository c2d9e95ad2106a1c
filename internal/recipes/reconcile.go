package recipes

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stockpot/internal/database"
)

// StepItem is one submitted step line. ID ties it to an existing step.
type StepItem struct {
	ID     *uint
	Body   string
	Delete bool
}

// IngredientItem is one submitted measured-ingredient line. Amount is the raw
// submitted text and Name the ingredient as typed.
type IngredientItem struct {
	ID     *uint
	Amount string
	Units  string
	Name   string
	Delete bool
}

var maxAmount = decimal.NewFromInt(1000)

type stepOp struct {
	id   uint // zero creates a new step
	body string
}

type ingredientOp struct {
	id     uint // zero creates a new measured ingredient
	amount decimal.Decimal
	units  string
	name   string
}

// Plan is a validated set of sub-record changes for one recipe.
type Plan struct {
	steps             []stepOp
	stepDeletes       []uint
	ingredients       []ingredientOp
	ingredientDeletes []uint
}

// Reconciler makes a recipe's steps and measured ingredients match a submission.
type Reconciler struct {
	db       *gorm.DB
	store    *Store
	registry *IngredientRegistry
}

// NewReconciler binds a reconciler to db. Callers pass the request transaction
// so the parent save and the sub-record writes commit together.
func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{
		db:       db,
		store:    NewStore(db),
		registry: NewIngredientRegistry(db),
	}
}

// Reconcile validates the submitted collections against the recipe's current
// sub-records and applies them. On validation failure it returns *ValidationErrors
// and writes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, recipe *database.Recipe, steps []StepItem, ingredients []IngredientItem) error {
	plan, err := r.Plan(ctx, recipe.ID, steps, ingredients)
	if err != nil {
		return err
	}
	return r.Apply(ctx, recipe.ID, plan)
}

// Plan validates every item. recipeID zero means a recipe that does not exist yet,
// so no item may carry an id.
func (r *Reconciler) Plan(ctx context.Context, recipeID uint, steps []StepItem, ingredients []IngredientItem) (*Plan, error) {
	existingSteps := map[uint]bool{}
	existingIngredients := map[uint]bool{}
	if recipeID != 0 {
		current, err := r.store.ListSteps(ctx, recipeID)
		if err != nil {
			return nil, err
		}
		for _, s := range current {
			existingSteps[s.ID] = true
		}
		currentIngredients, err := r.store.ListMeasuredIngredients(ctx, recipeID)
		if err != nil {
			return nil, err
		}
		for _, mi := range currentIngredients {
			existingIngredients[mi.ID] = true
		}
	}

	verrs := &ValidationErrors{}
	plan := &Plan{}
	plan.steps, plan.stepDeletes = planSteps(steps, existingSteps, verrs)
	plan.ingredients, plan.ingredientDeletes = planIngredients(ingredients, existingIngredients, verrs)
	if err := verrs.Err(); err != nil {
		return nil, err
	}
	return plan, nil
}

func planSteps(items []StepItem, existing map[uint]bool, verrs *ValidationErrors) ([]stepOp, []uint) {
	kept := map[uint]bool{}
	seen := map[uint]bool{}
	ops := make([]stepOp, 0, len(items))

	for i, item := range items {
		prefix := fmt.Sprintf("steps[%d]", i)
		if item.ID != nil {
			id := *item.ID
			switch {
			case !existing[id]:
				verrs.Add(prefix+".id", MsgUnknownID)
				continue
			case seen[id]:
				verrs.Add(prefix+".id", MsgDuplicateID)
				continue
			}
			seen[id] = true
		}
		if item.Delete {
			continue
		}

		body := strings.TrimSpace(item.Body)
		if body == "" {
			verrs.Add(prefix+".body", MsgRequired)
			continue
		}

		op := stepOp{body: body}
		if item.ID != nil {
			op.id = *item.ID
			kept[op.id] = true
		}
		ops = append(ops, op)
	}

	return ops, dropped(existing, kept)
}

func planIngredients(items []IngredientItem, existing map[uint]bool, verrs *ValidationErrors) ([]ingredientOp, []uint) {
	kept := map[uint]bool{}
	seen := map[uint]bool{}
	ops := make([]ingredientOp, 0, len(items))

	for i, item := range items {
		prefix := fmt.Sprintf("ingredients[%d]", i)
		if item.ID != nil {
			id := *item.ID
			switch {
			case !existing[id]:
				verrs.Add(prefix+".id", MsgUnknownID)
				continue
			case seen[id]:
				verrs.Add(prefix+".id", MsgDuplicateID)
				continue
			}
			seen[id] = true
		}
		if item.Delete {
			continue
		}

		op, ok := validateIngredientItem(prefix, item, verrs)
		if !ok {
			continue
		}
		if item.ID != nil {
			op.id = *item.ID
			kept[op.id] = true
		}
		ops = append(ops, op)
	}

	return ops, dropped(existing, kept)
}

func validateIngredientItem(prefix string, item IngredientItem, verrs *ValidationErrors) (ingredientOp, bool) {
	ok := true

	amount, msg := ParseAmount(item.Amount)
	if msg != "" {
		verrs.Add(prefix+".amount", msg)
		ok = false
	}

	units := strings.TrimSpace(item.Units)
	if !ValidUnit(units) {
		verrs.Add(prefix+".units", MsgUnknownUnit)
		ok = false
	}

	name := NormalizeName(item.Name)
	switch {
	case name == "":
		verrs.Add(prefix+".name", MsgRequired)
		ok = false
	case len([]rune(name)) > maxIngredientNameLen:
		verrs.Add(prefix+".name", MsgTooLong)
		ok = false
	}

	return ingredientOp{amount: amount, units: units, name: name}, ok
}

// ParseAmount parses a submitted quantity that must fit decimal(6,3) and be
// non-negative. It returns the field message describing the problem, if any.
func ParseAmount(raw string) (decimal.Decimal, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, MsgRequired
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, MsgNotANumber
	}
	if amount.IsNegative() {
		return decimal.Zero, MsgNegative
	}
	if !amount.Equal(amount.Round(3)) {
		return decimal.Zero, MsgTooPrecise
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, MsgTooManyDigits
	}
	return amount, ""
}

// dropped lists existing ids that the submission does not keep, in ascending order.
func dropped(existing, kept map[uint]bool) []uint {
	var ids []uint
	for id := range existing {
		if !kept[id] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Apply writes a plan produced by Plan for the same recipe.
func (r *Reconciler) Apply(ctx context.Context, recipeID uint, plan *Plan) error {
	db := r.db.WithContext(ctx)

	if len(plan.stepDeletes) > 0 {
		if err := db.Where("recipe_id = ? AND id IN ?", recipeID, plan.stepDeletes).
			Delete(&database.RecipeStep{}).Error; err != nil {
			return fmt.Errorf("delete steps of recipe %d: %w", recipeID, err)
		}
	}
	for _, op := range plan.steps {
		if op.id == 0 {
			step := database.RecipeStep{Body: op.body, RecipeID: recipeID}
			if err := db.Create(&step).Error; err != nil {
				return fmt.Errorf("create step of recipe %d: %w", recipeID, err)
			}
			continue
		}
		if err := db.Model(&database.RecipeStep{}).
			Where("id = ? AND recipe_id = ?", op.id, recipeID).
			Update("body", op.body).Error; err != nil {
			return fmt.Errorf("update step %d: %w", op.id, err)
		}
	}

	if len(plan.ingredientDeletes) > 0 {
		if err := db.Where("recipe_id = ? AND id IN ?", recipeID, plan.ingredientDeletes).
			Delete(&database.MeasuredIngredient{}).Error; err != nil {
			return fmt.Errorf("delete measured ingredients of recipe %d: %w", recipeID, err)
		}
	}
	for _, op := range plan.ingredients {
		ing, err := r.registry.Resolve(ctx, op.name)
		if err != nil {
			return err
		}
		if op.id == 0 {
			mi := database.MeasuredIngredient{
				RecipeID:     recipeID,
				IngredientID: ing.ID,
				Amount:       op.amount,
				Units:        op.units,
			}
			if err := db.Omit("Ingredient").Create(&mi).Error; err != nil {
				return fmt.Errorf("create measured ingredient of recipe %d: %w", recipeID, err)
			}
			continue
		}
		if err := db.Model(&database.MeasuredIngredient{}).
			Where("id = ? AND recipe_id = ?", op.id, recipeID).
			Updates(map[string]any{
				"ingredient_id": ing.ID,
				"amount":        op.amount,
				"units":         op.units,
			}).Error; err != nil {
			return fmt.Errorf("update measured ingredient %d: %w", op.id, err)
		}
	}

	return nil
}
