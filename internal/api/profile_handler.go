package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpot/internal/accounts"
	"stockpot/internal/database"
)

// ProfileHandler serves public profiles and lets users edit their own.
type ProfileHandler struct {
	accounts *accounts.Service
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(accountService *accounts.Service) *ProfileHandler {
	return &ProfileHandler{accounts: accountService}
}

type updateProfileRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

type profileResponse struct {
	Username string           `json:"username"`
	Name     string           `json:"name"`
	Bio      string           `json:"bio"`
	Recipes  []recipeListItem `json:"recipes"`
}

// GetProfile shows a user's profile and the recipes they authored.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := h.accounts.GetProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		RespondError(c, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(profile))
}

// UpdateProfile edits the signed-in user's own profile.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor, ok := actorFromContext(c, h.accounts)
	if !ok {
		return
	}

	profile, err := h.accounts.UpdateProfile(c.Request.Context(), actor, c.Param("username"), accounts.ProfileUpdate{
		Name: req.Name,
		Bio:  req.Bio,
	})
	if err != nil {
		RespondError(c, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(profile))
}

func newProfileResponse(profile *database.Profile) profileResponse {
	resp := profileResponse{
		Name:    profile.Name,
		Bio:     profile.Bio,
		Recipes: make([]recipeListItem, 0, len(profile.Recipes)),
	}
	if profile.User != nil {
		resp.Username = profile.User.Username
	}
	author := newAuthorResponse(profile)
	for _, r := range profile.Recipes {
		resp.Recipes = append(resp.Recipes, recipeListItem{
			ID:        r.ID,
			Title:     r.Title,
			Author:    author,
			CreatedAt: r.CreatedAt,
		})
	}
	return resp
}
