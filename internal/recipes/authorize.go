package recipes

import "stockpot/internal/database"

// Actor is the user performing an operation. The zero value is anonymous.
type Actor struct {
	UserID    uint
	ProfileID uint
}

// Authenticated reports whether the actor identifies a signed-in user.
func (a Actor) Authenticated() bool {
	return a.UserID != 0
}

// Authorize allows a mutation only when actor is the recipe's author.
// The recipe's Author must be loaded.
func Authorize(actor Actor, recipe *database.Recipe) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	if recipe == nil || recipe.Author == nil || recipe.Author.UserID != actor.UserID {
		return ErrForbidden
	}
	return nil
}
