package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Repository errors. Handlers map these to HTTP responses with errors.Is.
var (
	// ErrDuplicateEmail is returned when the users.email unique index rejects an insert
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrNotFound covers both missing rows and rows owned by another user
	ErrNotFound = errors.New("not found")

	// ErrValidation wraps field-level input errors
	ErrValidation = errors.New("validation error")
)

// FieldError is a validation failure with a client-safe message. It matches ErrValidation.
type FieldError struct {
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Unwrap lets errors.Is(err, ErrValidation) match
func (e *FieldError) Unwrap() error { return ErrValidation }

func validationError(format string, args ...any) error {
	return &FieldError{Message: fmt.Sprintf(format, args...)}
}

// isUniqueViolation reports whether err is a unique constraint failure from either driver
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// Extended result codes disabled on this connection
			return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
