package core

import (
	"errors"
	"fmt"
)

// Category groups error kinds by how a caller should react to them. The API layer
// maps categories to HTTP status codes.
type Category int

// all error categories
const (
	CategoryInternal Category = iota
	CategoryValidation
	CategoryConflict
	CategoryNotFound
	CategoryAuth
	CategoryForbidden
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryConflict:
		return "conflict"
	case CategoryNotFound:
		return "not found"
	case CategoryAuth:
		return "auth"
	case CategoryForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is the typed error returned by the domain and auth layers.
//
// Kind is a stable, machine checkable identifier like "username_taken". Message
// is meant for humans. Err optionally carries the underlying cause, it is never
// shown to API clients.
type Error struct {
	Category Category
	Kind     string
	Message  string
	Err      error
}

// NewError creates a new error of the given category and kind
func NewError(category Category, kind, message string) *Error {
	return &Error{Category: category, Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return e.Kind + ": " + e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This makes
// errors.Is(err, ErrPlantNotFound) work for wrapped errors and for copies
// carrying a different message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithMessage returns a copy of the error with a different human readable message
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Predefined domain errors
var (
	ErrUsernameTaken       = NewError(CategoryConflict, "username_taken", "username is already taken")
	ErrEmailTaken          = NewError(CategoryConflict, "email_taken", "email is already registered")
	ErrScientificNameTaken = NewError(CategoryConflict, "scientific_name_taken", "a species with this scientific name already exists")
	ErrConflict            = NewError(CategoryConflict, "conflict", "the resource conflicts with an existing one")

	ErrUserNotFound      = NewError(CategoryNotFound, "user_not_found", "user not found")
	ErrSpeciesNotFound   = NewError(CategoryNotFound, "species_not_found", "species not found")
	ErrPlantNotFound     = NewError(CategoryNotFound, "plant_not_found", "plant not found")
	ErrCareEventNotFound = NewError(CategoryNotFound, "care_event_not_found", "care event not found")

	ErrForbidden          = NewError(CategoryForbidden, "forbidden", "you are not permitted to perform this operation")
	ErrInvalidCredentials = NewError(CategoryAuth, "invalid_credentials", "invalid username or password")
)

// Validation returns a validation error with the given message
func Validation(format string, args ...interface{}) *Error {
	return NewError(CategoryValidation, "validation_error", fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected failure. If err already is an *Error, it is
// returned unchanged.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Category: CategoryInternal, Kind: "internal_error", Message: "internal server error", Err: err}
}

// CategoryOf returns the category of err. Errors which are not an *Error are internal.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}
