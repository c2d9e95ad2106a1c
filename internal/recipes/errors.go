package recipes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound reports a recipe (or profile) id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden reports an authenticated actor that is not the resource's author.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated reports a mutating call made without an acting user.
	ErrUnauthenticated = errors.New("authentication required")
)

// Field error messages.
const (
	MsgRequired      = "required"
	MsgNotANumber    = "enter a number"
	MsgNegative      = "must not be negative"
	MsgTooManyDigits = "at most 3 digits before the decimal point"
	MsgTooPrecise    = "at most 3 decimal places"
	MsgUnknownUnit   = "unknown unit"
	MsgUnknownID     = "unknown id"
	MsgDuplicateID   = "duplicate id"
	MsgTooLong       = "too long"
	MsgTooShort      = "too short"
)

// ValidationErrors collects field-scoped problems found in a submission.
// Keys are field paths such as "title" or "ingredients[1].amount".
type ValidationErrors struct {
	Fields map[string][]string
}

// Add records msg against field.
func (e *ValidationErrors) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Merge copies every field error of other into e.
func (e *ValidationErrors) Merge(other *ValidationErrors) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, msg := range msgs {
			e.Add(field, msg)
		}
	}
}

// Empty reports whether no field error was recorded.
func (e *ValidationErrors) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Err returns e as an error, or nil when it is empty.
func (e *ValidationErrors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationErrors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into *ValidationErrors when it is one.
func AsValidation(err error) (*ValidationErrors, bool) {
	var verrs *ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}
