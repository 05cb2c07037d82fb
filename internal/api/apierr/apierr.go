// Package apierr maps domain errors to HTTP responses.
//
// Every handler reports failures through Respond so that status codes and client
// messages stay consistent. Only errors that are safe to show are echoed; anything
// unexpected becomes a generic 500 and is logged with the request id.
package apierr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/next-cloud-ai/console/internal/auth"
	"github.com/next-cloud-ai/console/internal/db/repositories"
	"github.com/next-cloud-ai/console/internal/validation"
)

// ErrInvalidCredentials is returned by login for an unknown email or a wrong password alike
var ErrInvalidCredentials = errors.New("invalid credentials")

// requestIDKey mirrors middleware.RequestIDKey without importing the middleware package
const requestIDKey = "request_id"

// Client-facing messages
const (
	MsgRegistrationFailed = "Registration failed"
	MsgInvalidCredentials = "Invalid email or password"
	MsgInternal           = "Internal server error"
	MsgTokenRequired      = "Access token required"
	MsgTokenMalformed     = "Malformed access token"
	MsgTokenExpired       = "Access token expired"
	MsgTokenInvalid       = "Invalid access token"
)

// resourceError names the resource a not-found error refers to
type resourceError struct {
	resource string
	err      error
}

func (e *resourceError) Error() string { return e.resource + ": " + e.err.Error() }
func (e *resourceError) Unwrap() error { return e.err }

// WithResource tags err so a not-found maps to "<resource> not found"
func WithResource(resource string, err error) error {
	if err == nil {
		return nil
	}
	return &resourceError{resource: resource, err: err}
}

// Status returns the HTTP status and client message for err
func Status(err error) (int, string) {
	var (
		reqErr   *validation.Error
		fieldErr *repositories.FieldError
		resErr   *resourceError
	)

	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.Message
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest, fieldErr.Message
	case errors.Is(err, auth.ErrPasswordTooLong):
		return http.StatusBadRequest, "password is too long"
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return http.StatusBadRequest, MsgRegistrationFailed
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest, MsgInvalidCredentials
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, MsgTokenRequired
	case errors.Is(err, auth.ErrMalformedToken):
		return http.StatusUnauthorized, MsgTokenMalformed
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, MsgTokenExpired
	case errors.Is(err, auth.ErrInvalidSignature):
		return http.StatusUnauthorized, MsgTokenInvalid
	case errors.Is(err, repositories.ErrNotFound):
		if errors.As(err, &resErr) {
			return http.StatusNotFound, resErr.resource + " not found"
		}
		return http.StatusNotFound, "Not found"
	}
	return http.StatusInternalServerError, MsgInternal
}

// Respond aborts the request with the mapped status and {"error": message}.
// 5xx errors are logged in full; the client only sees MsgInternal.
func Respond(c *gin.Context, err error) {
	status, msg := Status(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// Unauthorized aborts with 401 for any token failure
func Unauthorized(c *gin.Context, err error) {
	status, msg := Status(err)
	if status != http.StatusUnauthorized {
		status, msg = http.StatusUnauthorized, MsgTokenInvalid
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BadID aborts with 400 for an unparsable path id
func BadID(c *gin.Context, name string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": fmt.Sprintf("%s must be a positive integer", name),
	})
}
