package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpot/internal/api/middleware"
	"stockpot/internal/errcode"
	"stockpot/internal/recipes"
)

func Error(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, errcode.Validation, msg)
}
func Forbidden(c *gin.Context, msg string) { Error(c, http.StatusForbidden, errcode.Forbidden, msg) }
func NotFound(c *gin.Context, msg string)  { Error(c, http.StatusNotFound, errcode.NotFound, msg) }
func Conflict(c *gin.Context, msg string)  { Error(c, http.StatusConflict, errcode.Conflict, msg) }
func Internal(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, errcode.SystemError, msg)
}
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, errcode.Unauthenticated, "unauthorized")
}
func TooManyRequests(c *gin.Context, msg string) {
	Error(c, http.StatusTooManyRequests, errcode.RateLimited, msg)
}

// ValidationFailed reports field-scoped errors.
func ValidationFailed(c *gin.Context, verrs *recipes.ValidationErrors) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":  "validation failed",
		"code":   errcode.Validation,
		"fields": verrs.Fields,
	})
}

// RespondError maps a domain error onto its HTTP status. Unclassified errors are
// logged and reported as internal.
func RespondError(c *gin.Context, err error, internalMsg string) {
	if verrs, ok := recipes.AsValidation(err); ok {
		ValidationFailed(c, verrs)
		return
	}
	switch {
	case errors.Is(err, recipes.ErrUnauthenticated):
		middleware.AbortUnauthenticated(c)
	case errors.Is(err, recipes.ErrForbidden):
		Forbidden(c, "forbidden")
	case errors.Is(err, recipes.ErrNotFound):
		NotFound(c, "not found")
	default:
		middleware.LoggerFromContext(c).Error(internalMsg, "error", err)
		Internal(c, internalMsg)
	}
}
