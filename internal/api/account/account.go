// Package account implements registration, login and the current-user endpoint.
package account

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/next-cloud-ai/console/internal/api/apierr"
	"github.com/next-cloud-ai/console/internal/auth"
	"github.com/next-cloud-ai/console/internal/db/models"
	"github.com/next-cloud-ai/console/internal/db/repositories"
	"github.com/next-cloud-ai/console/internal/middleware"
	"github.com/next-cloud-ai/console/internal/telemetry"
	"github.com/next-cloud-ai/console/internal/validation"
)

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required,max=255"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string            `json:"token"`
	ExpiresIn int64             `json:"expires_in,omitempty"`
	User      models.PublicUser `json:"user"`
}

// Handler serves the /api/auth routes
type Handler struct {
	users  *repositories.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer

	// dummyHash is verified when the email is unknown so both login failures cost the same
	dummyHash string
}

// NewHandler creates an account handler
func NewHandler(users *repositories.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer) (*Handler, error) {
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, err
	}
	return &Handler{users: users, hasher: hasher, tokens: tokens, dummyHash: dummy}, nil
}

// @Summary      Register
// @Description  Creates an account and returns a session token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  RegisterRequest  true  "Account details"
// @Success      201  {object}  AuthResponse
// @Failure      400  {object}  map[string]interface{}  "Invalid input or registration failed"
// @Router       /api/auth/register [post]
// Register validates input, hashes the password, stores the user and issues a token, in that order.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := validation.DecodeJSON(c.Request, &req); err != nil {
		telemetry.AuthRegistrationsTotal.WithLabelValues(telemetry.ResultInvalid).Inc()
		apierr.Respond(c, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		telemetry.AuthRegistrationsTotal.WithLabelValues(telemetry.ResultInvalid).Inc()
		apierr.Respond(c, &validation.Error{Message: "name is required"})
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.countRegistration(err)
		apierr.Respond(c, err)
		return
	}

	user := &models.User{
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Name:         name,
	}
	if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
		h.countRegistration(err)
		apierr.Respond(c, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.countRegistration(err)
		apierr.Respond(c, err)
		return
	}

	telemetry.AuthRegistrationsTotal.WithLabelValues(telemetry.ResultSuccess).Inc()
	c.JSON(http.StatusCreated, h.authResponse(token, user))
}

func (h *Handler) countRegistration(err error) {
	result := telemetry.ResultError
	switch {
	case errors.Is(err, repositories.ErrDuplicateEmail):
		result = telemetry.ResultDuplicate
	case errors.Is(err, auth.ErrPasswordTooLong):
		result = telemetry.ResultInvalid
	}
	telemetry.AuthRegistrationsTotal.WithLabelValues(result).Inc()
}

// @Summary      Login
// @Description  Exchanges email and password for a session token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  AuthResponse
// @Failure      400  {object}  map[string]interface{}  "Invalid email or password"
// @Router       /api/auth/login [post]
// Login returns the same error for an unknown email and a wrong password.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := validation.DecodeJSON(c.Request, &req); err != nil {
		telemetry.AuthLoginsTotal.WithLabelValues(telemetry.ResultInvalid).Inc()
		apierr.Respond(c, err)
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		telemetry.AuthLoginsTotal.WithLabelValues(telemetry.ResultError).Inc()
		apierr.Respond(c, err)
		return
	}

	hash := h.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if !h.hasher.Verify(req.Password, hash) || user == nil {
		telemetry.AuthLoginsTotal.WithLabelValues(telemetry.ResultInvalid).Inc()
		apierr.Respond(c, apierr.ErrInvalidCredentials)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		telemetry.AuthLoginsTotal.WithLabelValues(telemetry.ResultError).Inc()
		apierr.Respond(c, err)
		return
	}

	telemetry.AuthLoginsTotal.WithLabelValues(telemetry.ResultSuccess).Inc()
	c.JSON(http.StatusOK, h.authResponse(token, user))
}

// @Summary      Current user
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user: models.PublicUser"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/auth/me [get]
// Me returns the account behind the bearer token
func (h *Handler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		apierr.Unauthorized(c, auth.ErrMissingToken)
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), identity.UserID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if user == nil {
		apierr.Respond(c, apierr.WithResource("User", repositories.ErrNotFound))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.Public()})
}

func (h *Handler) authResponse(token string, user *models.User) AuthResponse {
	return AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.tokens.TTL().Seconds()),
		User:      user.Public(),
	}
}
