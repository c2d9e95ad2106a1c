package recipes

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"stockpot/internal/database"
	"stockpot/internal/metrics"
)

// Submission is a recipe as sent by a client: the title plus both nested collections.
type Submission struct {
	Title       string
	Steps       []StepItem
	Ingredients []IngredientItem
}

// Service runs recipe operations, each mutation inside a single transaction.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// List returns every recipe with its author.
func (s *Service) List(ctx context.Context) ([]database.Recipe, error) {
	return NewStore(s.db).ListRecipes(ctx)
}

// Get returns the full recipe aggregate.
func (s *Service) Get(ctx context.Context, id uint) (*database.Recipe, error) {
	return NewStore(s.db).LoadRecipe(ctx, id)
}

// Create stores a new recipe authored by actor together with its steps and ingredients.
func (s *Service) Create(ctx context.Context, actor Actor, sub Submission) (*database.Recipe, error) {
	if !actor.Authenticated() || actor.ProfileID == 0 {
		s.record("create", ErrUnauthenticated)
		return nil, ErrUnauthenticated
	}

	var recipeID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := NewStore(tx)
		reconciler := NewReconciler(tx)

		verrs := validateTitle(sub.Title)
		plan, err := reconciler.Plan(ctx, 0, sub.Steps, sub.Ingredients)
		if err != nil {
			planErrs, ok := AsValidation(err)
			if !ok {
				return err
			}
			verrs.Merge(planErrs)
		}
		if err := verrs.Err(); err != nil {
			return err
		}

		authorID := actor.ProfileID
		recipe, err := store.CreateRecipe(ctx, sub.Title, &authorID)
		if err != nil {
			return err
		}
		recipeID = recipe.ID
		return reconciler.Apply(ctx, recipe.ID, plan)
	})
	s.record("create", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("recipe created",
		slog.Uint64("recipe_id", uint64(recipeID)),
		slog.Uint64("user_id", uint64(actor.UserID)),
	)
	return s.Get(ctx, recipeID)
}

// Update replaces the title of recipe id and reconciles its nested collections.
// Only the recipe's author may update it.
func (s *Service) Update(ctx context.Context, actor Actor, id uint, sub Submission) (*database.Recipe, error) {
	if !actor.Authenticated() {
		s.record("update", ErrUnauthenticated)
		return nil, ErrUnauthenticated
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := NewStore(tx)
		reconciler := NewReconciler(tx)

		recipe, err := store.FindRecipe(ctx, id)
		if err != nil {
			return err
		}
		if err := Authorize(actor, recipe); err != nil {
			return err
		}

		verrs := validateTitle(sub.Title)
		plan, err := reconciler.Plan(ctx, recipe.ID, sub.Steps, sub.Ingredients)
		if err != nil {
			planErrs, ok := AsValidation(err)
			if !ok {
				return err
			}
			verrs.Merge(planErrs)
		}
		if err := verrs.Err(); err != nil {
			return err
		}

		if err := store.SaveRecipe(ctx, recipe, sub.Title); err != nil {
			return err
		}
		return reconciler.Apply(ctx, recipe.ID, plan)
	})
	s.record("update", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("recipe updated",
		slog.Uint64("recipe_id", uint64(id)),
		slog.Uint64("user_id", uint64(actor.UserID)),
	)
	return s.Get(ctx, id)
}

// Delete removes recipe id and its sub-records. Only the recipe's author may delete it.
func (s *Service) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.Authenticated() {
		s.record("delete", ErrUnauthenticated)
		return ErrUnauthenticated
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := NewStore(tx)

		recipe, err := store.FindRecipe(ctx, id)
		if err != nil {
			return err
		}
		if err := Authorize(actor, recipe); err != nil {
			return err
		}
		return store.DeleteRecipe(ctx, recipe.ID)
	})
	s.record("delete", err)
	if err != nil {
		return err
	}

	s.logger.Info("recipe deleted",
		slog.Uint64("recipe_id", uint64(id)),
		slog.Uint64("user_id", uint64(actor.UserID)),
	)
	return nil
}

func (s *Service) record(operation string, err error) {
	metrics.RecipeMutation(operation, outcome(err))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := AsValidation(err); ok {
		return "invalid"
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "error"
	}
}
