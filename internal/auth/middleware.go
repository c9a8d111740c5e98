package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/adelbrx/univhub/internal/domain"
	"github.com/adelbrx/univhub/internal/repository"
	apperrors "github.com/adelbrx/univhub/pkg/util"
)

const currentUserKey = "auth_current_user"

// SessionCookie is the cookie name carrying the session token.
const SessionCookie = "jwt"

// AccessGate authenticates requests: it resolves the caller from a session
// token, rejects stale or invalid tokens, and loads the current account.
type AccessGate struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAccessGate constructs the gate.
func NewAccessGate(tokens *TokenManager, users repository.UserRepository) *AccessGate {
	return &AccessGate{tokens: tokens, users: users}
}

// Authenticate enforces authentication for protected routes. The token is
// read from the Authorization header (bearer scheme) or the jwt cookie.
func (g *AccessGate) Authenticate(c *fiber.Ctx) error {
	token := extractToken(c)
	if token == "" || token == LogoutSentinel {
		return apperrors.NewUnauthenticated("you are not logged in, please log in to get access")
	}

	claims, err := g.tokens.Parse(token)
	if err != nil {
		return apperrors.NewUnauthenticated("the token is not valid")
	}

	user, err := g.users.GetByEmail(c.Context(), claims.Email, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthenticated("the user belonging to this token does no longer exist")
		}
		return apperrors.MapError(err)
	}

	// Stateless tokens have no revocation list; a password change is the
	// only event that invalidates previously issued tokens.
	if claims.IssuedAt != nil && user.PasswordChangedAfter(claims.IssuedAt.Time) {
		return apperrors.NewUnauthenticated("user recently changed password, please log in again")
	}

	c.Locals(currentUserKey, user)
	return c.Next()
}

func extractToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Cookies(SessionCookie)
}

// CurrentUser retrieves the authenticated account set by Authenticate.
func CurrentUser(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(currentUserKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok
}
