package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stockpot/internal/accounts"
	"stockpot/internal/database"
	"stockpot/internal/recipes"
)

// RecipeHandler serves the recipe endpoints.
type RecipeHandler struct {
	recipes  *recipes.Service
	accounts *accounts.Service
}

// NewRecipeHandler constructs a RecipeHandler.
func NewRecipeHandler(recipeService *recipes.Service, accountService *accounts.Service) *RecipeHandler {
	return &RecipeHandler{recipes: recipeService, accounts: accountService}
}

var errInvalidID = errors.New("invalid id")

// amountField accepts a quantity sent either as a JSON number or a string and
// keeps its text for validation by the reconciler.
type amountField string

func (a *amountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	*a = amountField(data)
	return nil
}

type stepPayload struct {
	ID     *uint  `json:"id"`
	Body   string `json:"body"`
	Delete bool   `json:"delete"`
}

type ingredientPayload struct {
	ID     *uint       `json:"id"`
	Amount amountField `json:"amount"`
	Units  string      `json:"units"`
	Name   string      `json:"name"`
	Delete bool        `json:"delete"`
}

type recipeRequest struct {
	Title       string              `json:"title"`
	Steps       []stepPayload       `json:"steps"`
	Ingredients []ingredientPayload `json:"ingredients"`
}

func (r recipeRequest) submission() recipes.Submission {
	sub := recipes.Submission{
		Title:       r.Title,
		Steps:       make([]recipes.StepItem, 0, len(r.Steps)),
		Ingredients: make([]recipes.IngredientItem, 0, len(r.Ingredients)),
	}
	for _, s := range r.Steps {
		sub.Steps = append(sub.Steps, recipes.StepItem{ID: s.ID, Body: s.Body, Delete: s.Delete})
	}
	for _, i := range r.Ingredients {
		sub.Ingredients = append(sub.Ingredients, recipes.IngredientItem{
			ID:     i.ID,
			Amount: string(i.Amount),
			Units:  i.Units,
			Name:   i.Name,
			Delete: i.Delete,
		})
	}
	return sub
}

type authorResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type recipeListItem struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	Author    *authorResponse `json:"author,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type stepResponse struct {
	ID   uint   `json:"id"`
	Body string `json:"body"`
}

type measuredIngredientResponse struct {
	ID           uint   `json:"id"`
	IngredientID uint   `json:"ingredient_id"`
	Name         string `json:"name"`
	Amount       string `json:"amount"`
	Units        string `json:"units"`
}

type recipeResponse struct {
	ID          uint                         `json:"id"`
	Title       string                       `json:"title"`
	Author      *authorResponse              `json:"author,omitempty"`
	Steps       []stepResponse               `json:"steps"`
	Ingredients []measuredIngredientResponse `json:"ingredients"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

type unitResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ListRecipes returns every recipe.
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	list, err := h.recipes.List(c.Request.Context())
	if err != nil {
		RespondError(c, err, "failed to list recipes")
		return
	}

	items := make([]recipeListItem, 0, len(list))
	for _, r := range list {
		items = append(items, recipeListItem{
			ID:        r.ID,
			Title:     r.Title,
			Author:    newAuthorResponse(r.Author),
			CreatedAt: r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// GetRecipe returns one recipe with its steps and ingredients.
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid recipe id")
		return
	}

	recipe, err := h.recipes.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err, "failed to load recipe")
		return
	}
	c.JSON(http.StatusOK, newRecipeResponse(recipe))
}

// CreateRecipe stores a recipe authored by the signed-in user.
func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	recipe, err := h.recipes.Create(c.Request.Context(), actor, req.submission())
	if err != nil {
		RespondError(c, err, "failed to create recipe")
		return
	}

	c.Header("Location", "/v1/recipes/"+strconv.FormatUint(uint64(recipe.ID), 10))
	c.JSON(http.StatusCreated, newRecipeResponse(recipe))
}

// UpdateRecipe replaces a recipe's title and reconciles its steps and ingredients.
func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid recipe id")
		return
	}

	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	recipe, err := h.recipes.Update(c.Request.Context(), actor, id, req.submission())
	if err != nil {
		RespondError(c, err, "failed to update recipe")
		return
	}
	c.JSON(http.StatusOK, newRecipeResponse(recipe))
}

// DeleteRecipe removes a recipe owned by the signed-in user.
func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid recipe id")
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.recipes.Delete(c.Request.Context(), actor, id); err != nil {
		RespondError(c, err, "failed to delete recipe")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUnits returns the recognized unit codes.
func (h *RecipeHandler) ListUnits(c *gin.Context) {
	units := recipes.Units()
	out := make([]unitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, unitResponse{Code: u.Code, Name: u.Name})
	}
	c.JSON(http.StatusOK, out)
}

// actor resolves the signed-in user. When it returns false the response is already written.
func (h *RecipeHandler) actor(c *gin.Context) (recipes.Actor, bool) {
	return actorFromContext(c, h.accounts)
}

func actorFromContext(c *gin.Context, accountService *accounts.Service) (recipes.Actor, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return recipes.Actor{}, true
	}

	actor, err := accountService.ActorFor(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, recipes.ErrNotFound) {
			// Token outlived its account.
			RespondError(c, recipes.ErrUnauthenticated, "")
			return recipes.Actor{}, false
		}
		RespondError(c, err, "failed to resolve user")
		return recipes.Actor{}, false
	}
	return actor, true
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

func newAuthorResponse(profile *database.Profile) *authorResponse {
	if profile == nil {
		return nil
	}
	out := &authorResponse{Name: profile.Name}
	if profile.User != nil {
		out.Username = profile.User.Username
	}
	return out
}

func newRecipeResponse(recipe *database.Recipe) recipeResponse {
	resp := recipeResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		Author:      newAuthorResponse(recipe.Author),
		Steps:       make([]stepResponse, 0, len(recipe.Steps)),
		Ingredients: make([]measuredIngredientResponse, 0, len(recipe.Ingredients)),
		CreatedAt:   recipe.CreatedAt,
		UpdatedAt:   recipe.UpdatedAt,
	}
	for _, s := range recipe.Steps {
		resp.Steps = append(resp.Steps, stepResponse{ID: s.ID, Body: s.Body})
	}
	for _, mi := range recipe.Ingredients {
		resp.Ingredients = append(resp.Ingredients, measuredIngredientResponse{
			ID:           mi.ID,
			IngredientID: mi.IngredientID,
			Name:         mi.Ingredient.Name,
			Amount:       mi.Amount.StringFixed(3),
			Units:        mi.Units,
		})
	}
	return resp
}
