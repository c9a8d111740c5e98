package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/adelbrx/univhub/internal/domain"
	apperrors "github.com/adelbrx/univhub/pkg/util"
)

// Authorize is a plain membership test of the caller's role against an
// operation's allowed set. There is no hierarchy among roles; each protected
// operation lists its allowed roles explicitly.
func Authorize(role domain.Role, allowed ...domain.Role) error {
	for _, candidate := range allowed {
		if role == candidate {
			return nil
		}
	}
	return apperrors.NewForbidden("you do not have permission to perform this action")
}

// RequireRoles adapts Authorize to a route middleware. It assumes
// AccessGate.Authenticate already ran.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return apperrors.NewUnauthenticated("you are not logged in, please log in to get access")
		}
		if err := Authorize(user.Role, allowed...); err != nil {
			return err
		}
		return c.Next()
	}
}
