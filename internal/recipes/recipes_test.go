package recipes

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"stockpot/internal/database"
	"stockpot/internal/testutil"
)

func newAuthor(t *testing.T, db *gorm.DB, username string) Actor {
	t.Helper()
	user := database.User{Username: username, PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	require.NotNil(t, user.Profile)
	return Actor{UserID: user.ID, ProfileID: user.Profile.ID}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func idOf(id uint) *uint { return &id }

func tomatoSoup() Submission {
	return Submission{
		Title: "Tomato Soup",
		Steps: []StepItem{{Body: "Make the soup."}},
		Ingredients: []IngredientItem{
			{Amount: "1.5", Units: "c", Name: "tomato puree"},
		},
	}
}

// resubmit turns a loaded recipe back into a submission that keeps everything.
func resubmit(recipe *database.Recipe) Submission {
	sub := Submission{Title: recipe.Title}
	for _, s := range recipe.Steps {
		sub.Steps = append(sub.Steps, StepItem{ID: idOf(s.ID), Body: s.Body})
	}
	for _, mi := range recipe.Ingredients {
		sub.Ingredients = append(sub.Ingredients, IngredientItem{
			ID:     idOf(mi.ID),
			Amount: mi.Amount.String(),
			Units:  mi.Units,
			Name:   mi.Ingredient.Name,
		})
	}
	return sub
}

func TestCreateRecipeStoresAggregate(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	recipe, err := svc.Create(context.Background(), actor, tomatoSoup())
	require.NoError(t, err)

	require.Equal(t, "Tomato Soup", recipe.Title)
	require.NotNil(t, recipe.AuthorID)
	require.Equal(t, actor.ProfileID, *recipe.AuthorID)
	require.Len(t, recipe.Steps, 1)
	require.Equal(t, "Make the soup.", recipe.Steps[0].Body)
	require.Len(t, recipe.Ingredients, 1)
	require.Equal(t, "tomato puree", recipe.Ingredients[0].Ingredient.Name)
	require.True(t, recipe.Ingredients[0].Amount.Equal(decimal.RequireFromString("1.5")))
	require.Equal(t, "1.500", recipe.Ingredients[0].Amount.StringFixed(3))
	require.Equal(t, "c", recipe.Ingredients[0].Units)

	require.EqualValues(t, 1, countRows(t, db, &database.Recipe{}))
	require.EqualValues(t, 1, countRows(t, db, &database.RecipeStep{}))
	require.EqualValues(t, 1, countRows(t, db, &database.Ingredient{}))
	require.EqualValues(t, 1, countRows(t, db, &database.MeasuredIngredient{}))
}

func TestUpdateIngredientNameReusesOrCreatesIngredient(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	recipe, err := svc.Create(ctx, actor, tomatoSoup())
	require.NoError(t, err)

	recipe, err = svc.Update(ctx, actor, recipe.ID, resubmit(recipe))
	require.NoError(t, err)
	require.EqualValues(t, 1, countRows(t, db, &database.Ingredient{}))

	sub := resubmit(recipe)
	sub.Ingredients[0].Name = "butter"
	recipe, err = svc.Update(ctx, actor, recipe.ID, sub)
	require.NoError(t, err)

	require.EqualValues(t, 2, countRows(t, db, &database.Ingredient{}))
	require.Len(t, recipe.Ingredients, 1)
	require.Equal(t, "butter", recipe.Ingredients[0].Ingredient.Name)

	_, err = NewIngredientRegistry(db).Find(ctx, "tomato puree")
	require.NoError(t, err)
}

func TestUpdateDeletesFlaggedStepAndAddsNewOne(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	recipe, err := svc.Create(ctx, actor, Submission{
		Title: "Bread",
		Steps: []StepItem{{Body: "Mix."}, {Body: "Knead."}, {Body: "Bake."}},
	})
	require.NoError(t, err)
	require.Len(t, recipe.Steps, 3)

	sub := resubmit(recipe)
	sub.Steps[1].Delete = true
	sub.Steps = append(sub.Steps, StepItem{Body: "Cool."})

	recipe, err = svc.Update(ctx, actor, recipe.ID, sub)
	require.NoError(t, err)

	bodies := make([]string, 0, len(recipe.Steps))
	for _, s := range recipe.Steps {
		bodies = append(bodies, s.Body)
	}
	require.Equal(t, []string{"Mix.", "Bake.", "Cool."}, bodies)
	require.EqualValues(t, 3, countRows(t, db, &database.RecipeStep{}))
}

func TestCreateResolvesIngredientCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	existing, err := NewIngredientRegistry(db).Resolve(ctx, "potato")
	require.NoError(t, err)

	recipe, err := svc.Create(ctx, actor, Submission{
		Title:       "Mash",
		Ingredients: []IngredientItem{{Amount: "2", Units: "lb", Name: "POTATO"}},
	})
	require.NoError(t, err)

	require.EqualValues(t, 1, countRows(t, db, &database.Ingredient{}))
	require.Equal(t, existing.ID, recipe.Ingredients[0].IngredientID)
}

func TestResubmittingUnchangedRecipeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	created, err := svc.Create(ctx, actor, tomatoSoup())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, actor, created.ID, resubmit(created))
	require.NoError(t, err)

	require.Equal(t, created.Title, updated.Title)
	require.Equal(t, created.Steps, updated.Steps)
	require.Len(t, updated.Ingredients, len(created.Ingredients))
	for i := range created.Ingredients {
		require.Equal(t, created.Ingredients[i].ID, updated.Ingredients[i].ID)
		require.Equal(t, created.Ingredients[i].IngredientID, updated.Ingredients[i].IngredientID)
		require.True(t, created.Ingredients[i].Amount.Equal(updated.Ingredients[i].Amount))
		require.Equal(t, created.Ingredients[i].Units, updated.Ingredients[i].Units)
	}
	require.EqualValues(t, 1, countRows(t, db, &database.RecipeStep{}))
	require.EqualValues(t, 1, countRows(t, db, &database.MeasuredIngredient{}))
}

func TestUpdateDropsUnmentionedSubRecords(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	recipe, err := svc.Create(ctx, actor, Submission{
		Title: "Salad",
		Steps: []StepItem{{Body: "Wash."}, {Body: "Chop."}},
		Ingredients: []IngredientItem{
			{Amount: "1", Name: "lettuce"},
			{Amount: "2", Units: "tbsp", Name: "oil"},
		},
	})
	require.NoError(t, err)

	recipe, err = svc.Update(ctx, actor, recipe.ID, Submission{
		Title:       "Salad",
		Steps:       []StepItem{{ID: idOf(recipe.Steps[1].ID), Body: "Chop finely."}},
		Ingredients: []IngredientItem{{ID: idOf(recipe.Ingredients[0].ID), Amount: "1", Name: "lettuce"}},
	})
	require.NoError(t, err)

	require.Len(t, recipe.Steps, 1)
	require.Equal(t, "Chop finely.", recipe.Steps[0].Body)
	require.Len(t, recipe.Ingredients, 1)
	require.Equal(t, "lettuce", recipe.Ingredients[0].Ingredient.Name)
	require.EqualValues(t, 2, countRows(t, db, &database.Ingredient{}))
}

func TestValidationFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	_, err := svc.Create(ctx, actor, Submission{
		Title: "  ",
		Steps: []StepItem{{Body: "Fine."}, {Body: ""}},
		Ingredients: []IngredientItem{
			{Amount: "1", Name: "salt"},
			{Amount: "abc", Units: "cup", Name: ""},
		},
	})
	verrs, ok := AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	require.Equal(t, map[string][]string{
		"title":                 {MsgRequired},
		"steps[1].body":         {MsgRequired},
		"ingredients[1].amount": {MsgNotANumber},
		"ingredients[1].units":  {MsgUnknownUnit},
		"ingredients[1].name":   {MsgRequired},
	}, verrs.Fields)

	require.Zero(t, countRows(t, db, &database.Recipe{}))
	require.Zero(t, countRows(t, db, &database.RecipeStep{}))
	require.Zero(t, countRows(t, db, &database.Ingredient{}))
	require.Zero(t, countRows(t, db, &database.MeasuredIngredient{}))
}

func TestUpdateValidationFailureKeepsRecipe(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	recipe, err := svc.Create(ctx, actor, tomatoSoup())
	require.NoError(t, err)

	sub := resubmit(recipe)
	sub.Title = "Renamed"
	sub.Steps = append(sub.Steps, StepItem{Body: "Serve."})
	sub.Ingredients[0].Amount = "-1"

	_, err = svc.Update(ctx, actor, recipe.ID, sub)
	verrs, ok := AsValidation(err)
	require.True(t, ok)
	require.Equal(t, []string{MsgNegative}, verrs.Fields["ingredients[0].amount"])

	reloaded, err := svc.Get(ctx, recipe.ID)
	require.NoError(t, err)
	require.Equal(t, "Tomato Soup", reloaded.Title)
	require.Len(t, reloaded.Steps, 1)
	require.True(t, reloaded.Ingredients[0].Amount.Equal(decimal.RequireFromString("1.5")))
}

func TestUpdateRejectsForeignAndDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	first, err := svc.Create(ctx, actor, tomatoSoup())
	require.NoError(t, err)
	second, err := svc.Create(ctx, actor, tomatoSoup())
	require.NoError(t, err)

	sub := resubmit(first)
	sub.Steps = append(sub.Steps,
		StepItem{ID: idOf(second.Steps[0].ID), Body: "Stolen."},
		StepItem{ID: idOf(first.Steps[0].ID), Body: "Again."},
	)

	_, err = svc.Update(ctx, actor, first.ID, sub)
	verrs, ok := AsValidation(err)
	require.True(t, ok)
	require.Equal(t, []string{MsgUnknownID}, verrs.Fields["steps[1].id"])
	require.Equal(t, []string{MsgDuplicateID}, verrs.Fields["steps[2].id"])

	steps, err := NewStore(db).ListSteps(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, "Make the soup.", steps[0].Body)
}

func TestDeleteFlaggedItemSkipsFieldValidation(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	recipe, err := svc.Create(ctx, actor, tomatoSoup())
	require.NoError(t, err)

	recipe, err = svc.Update(ctx, actor, recipe.ID, Submission{
		Title:       recipe.Title,
		Steps:       []StepItem{{ID: idOf(recipe.Steps[0].ID), Body: "", Delete: true}},
		Ingredients: []IngredientItem{{ID: idOf(recipe.Ingredients[0].ID), Amount: "nope", Delete: true}},
	})
	require.NoError(t, err)
	require.Empty(t, recipe.Steps)
	require.Empty(t, recipe.Ingredients)
	require.EqualValues(t, 1, countRows(t, db, &database.Ingredient{}))
}

func TestUpdateAndDeleteRequireAuthor(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	owner := newAuthor(t, db, "owner")
	other := newAuthor(t, db, "other")

	recipe, err := svc.Create(ctx, owner, tomatoSoup())
	require.NoError(t, err)

	sub := resubmit(recipe)
	sub.Title = "Hijacked"

	_, err = svc.Update(ctx, other, recipe.ID, sub)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, Actor{}, recipe.ID, sub)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.ErrorIs(t, svc.Delete(ctx, other, recipe.ID), ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, Actor{}, recipe.ID), ErrUnauthenticated)

	reloaded, err := svc.Get(ctx, recipe.ID)
	require.NoError(t, err)
	require.Equal(t, "Tomato Soup", reloaded.Title)

	_, err = svc.Create(ctx, Actor{}, tomatoSoup())
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestForbiddenWinsOverValidation(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	owner := newAuthor(t, db, "owner")
	other := newAuthor(t, db, "other")

	recipe, err := svc.Create(ctx, owner, tomatoSoup())
	require.NoError(t, err)

	_, err = svc.Update(ctx, other, recipe.ID, Submission{Title: ""})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestMissingRecipeIsNotFound(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	_, err := svc.Get(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, actor, 999, tomatoSoup())
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, actor, 999), ErrNotFound)
}

func TestDeleteRemovesSubRecordsButKeepsIngredients(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	doomed, err := svc.Create(ctx, actor, tomatoSoup())
	require.NoError(t, err)
	kept, err := svc.Create(ctx, actor, tomatoSoup())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, actor, doomed.ID))

	_, err = svc.Get(ctx, doomed.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.EqualValues(t, 1, countRows(t, db, &database.Recipe{}))
	require.EqualValues(t, 1, countRows(t, db, &database.RecipeStep{}))
	require.EqualValues(t, 1, countRows(t, db, &database.MeasuredIngredient{}))
	require.EqualValues(t, 1, countRows(t, db, &database.Ingredient{}))

	reloaded, err := svc.Get(ctx, kept.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Ingredients, 1)
}

func TestListReturnsRecipesWithAuthors(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	actor := newAuthor(t, db, "cook")

	_, err := svc.Create(ctx, actor, Submission{Title: "First"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, actor, Submission{Title: "Second"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "First", list[0].Title)
	require.Equal(t, "Second", list[1].Title)
	require.NotNil(t, list[0].Author)
	require.NotNil(t, list[0].Author.User)
	require.Equal(t, "cook", list[0].Author.User.Username)
}
