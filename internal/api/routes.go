package api

import (
	"github.com/gin-gonic/gin"

	"stockpot/internal/api/middleware"
	"stockpot/internal/auth"
)

// Handlers groups the handlers mounted by RegisterRoutes.
type Handlers struct {
	Auth    *AuthHandler
	Recipes *RecipeHandler
	Profile *ProfileHandler
}

// RegisterRoutes mounts the v1 API. Reads are public; mutations need a bearer token.
func RegisterRoutes(router *gin.Engine, authService *auth.Service, h Handlers) {
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/refresh", h.Auth.Refresh)
			authGroup.POST("/logout", h.Auth.Logout)
			authGroup.POST("/password", authMiddleware, h.Auth.ChangePassword)
		}

		v1.GET("/units", h.Recipes.ListUnits)

		recipeGroup := v1.Group("/recipes")
		{
			recipeGroup.GET("", h.Recipes.ListRecipes)
			recipeGroup.GET("/:id", h.Recipes.GetRecipe)
			recipeGroup.POST("", authMiddleware, h.Recipes.CreateRecipe)
			recipeGroup.PUT("/:id", authMiddleware, h.Recipes.UpdateRecipe)
			recipeGroup.DELETE("/:id", authMiddleware, h.Recipes.DeleteRecipe)
		}

		profileGroup := v1.Group("/profiles")
		{
			profileGroup.GET("/:username", h.Profile.GetProfile)
			profileGroup.PUT("/:username", authMiddleware, h.Profile.UpdateProfile)
		}
	}
}
