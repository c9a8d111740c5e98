package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/adelbrx/univhub/internal/api/dto"
	"github.com/adelbrx/univhub/internal/auth"
	"github.com/adelbrx/univhub/internal/config"
	"github.com/adelbrx/univhub/internal/domain"
	"github.com/adelbrx/univhub/internal/service"
	apperrors "github.com/adelbrx/univhub/pkg/util"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	auth         *service.AuthService
	cookieTTL    time.Duration
	secureCookie bool
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		cookieTTL:    time.Duration(cfg.Auth.CookieTTLDays) * 24 * time.Hour,
		secureCookie: cfg.App.IsProduction(),
	}
}

// Signup handles POST /api/v1/users/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.auth.Signup(c.Context(), service.SignupInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "please activate your account",
		"data": fiber.Map{
			"user": dto.SignupResponse{UserResponse: dto.NewUserResponse(user), Active: user.Active},
		},
	})
}

// Activate handles PATCH /api/v1/users/activateAccount/:token.
func (h *AuthHandler) Activate(c *fiber.Ctx) error {
	user, session, err := h.auth.Activate(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	return h.sendSession(c, user, session)
}

// Login handles POST /api/v1/users/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, session, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.sendSession(c, user, session)
}

// Logout handles GET /api/v1/users/logout. No lookup happens: the client's
// session cookie is overwritten with an immediately-expiring sentinel.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    auth.LogoutSentinel,
		Expires:  time.Now().Add(10 * time.Second),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"status": "success"})
}

// ForgotPassword handles POST /api/v1/users/forgotPassword.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" {
		return apperrors.NewValidationError("please provide your email address", nil)
	}

	if err := h.auth.ForgotPassword(c.Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "token sent to email",
	})
}

// ResetPassword handles PATCH /api/v1/users/resetPassword/:token.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, session, err := h.auth.ResetPassword(c.Context(), c.Params("token"), service.NewPasswordInput{
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return h.sendSession(c, user, session)
}

// UpdatePassword handles PATCH /api/v1/users/updatePassword.
func (h *AuthHandler) UpdatePassword(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated("you are not logged in, please log in to get access")
	}

	var req dto.UpdatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	updated, session, err := h.auth.UpdatePassword(c.Context(), user.Email, req.CurrentPassword, service.NewPasswordInput{
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return h.sendSession(c, updated, session)
}

// sendSession writes the session cookie and the standard token envelope.
func (h *AuthHandler) sendSession(c *fiber.Ctx, user *domain.User, session service.Session) error {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.Token,
		Expires:  time.Now().Add(h.cookieTTL),
		HTTPOnly: true,
		Secure:   h.secureCookie,
	})

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status": "success",
		"token":  session.Token,
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
		},
	})
}
