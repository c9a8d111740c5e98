package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/adelbrx/univhub/internal/api/dto"
	"github.com/adelbrx/univhub/internal/auth"
	"github.com/adelbrx/univhub/internal/domain"
	"github.com/adelbrx/univhub/internal/repository"
	"github.com/adelbrx/univhub/internal/service"
	apperrors "github.com/adelbrx/univhub/pkg/util"
)

// UsersHandler exposes profile and account administration endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Me handles GET /api/v1/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated("you are not logged in, please log in to get access")
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": dto.NewUserResponse(user)},
	})
}

// UpdateMe handles PATCH /api/v1/users/me.
func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated("you are not logged in, please log in to get access")
	}

	var req dto.UpdateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	updated, err := h.users.UpdateProfile(c.Context(), user.Email, service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Photo:     req.Photo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": dto.NewUserResponse(updated)},
	})
}

// DeleteMe handles DELETE /api/v1/users/me. The account is soft-deleted.
func (h *UsersHandler) DeleteMe(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated("you are not logged in, please log in to get access")
	}
	if err := h.users.Deactivate(c.Context(), user.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   "account deleted successfully",
	})
}

// List handles GET /api/v1/users (admin).
func (h *UsersHandler) List(c *fiber.Ctx) error {
	opts := parseListOptions(c)
	users, err := h.users.List(c.Context(), opts)
	if err != nil {
		return err
	}

	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"results": len(resp),
		"data":    fiber.Map{"users": resp},
	})
}

// GetUser handles GET /api/v1/users/:email (admin).
func (h *UsersHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.users.GetByEmail(c.Context(), c.Params("email"), true)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": dto.NewUserResponse(user)},
	})
}

// UpdateUser handles PATCH /api/v1/users/:email (admin).
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.AdminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	updated, err := h.users.AdminUpdate(c.Context(), c.Params("email"), service.AdminUpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Photo:     req.Photo,
		Role:      req.Role,
		Active:    req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": dto.NewUserResponse(updated)},
	})
}

// DeleteUser handles DELETE /api/v1/users/:email (admin). Soft-delete only.
func (h *UsersHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.users.Deactivate(c.Context(), c.Params("email")); err != nil {
		return err
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

func parseListOptions(c *fiber.Ctx) repository.ListOptions {
	var opts repository.ListOptions
	if roleStr := c.Query("role"); roleStr != "" {
		role := domain.Role(roleStr)
		opts.Role = &role
	}
	opts.SortBy = c.Query("sort")

	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 10)
	opts.Limit = limit
	opts.Offset = (page - 1) * limit
	return opts
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}
