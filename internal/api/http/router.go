package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/adelbrx/univhub/internal/api/http/handlers"
	"github.com/adelbrx/univhub/internal/auth"
	"github.com/adelbrx/univhub/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Users  *handlers.UsersHandler
	Gate   *auth.AccessGate
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	users := app.Group("/api/v1/users")
	users.Post("/signup", cfg.Auth.Signup)
	users.Patch("/activateAccount/:token", cfg.Auth.Activate)
	users.Post("/login", cfg.Auth.Login)
	users.Post("/forgotPassword", cfg.Auth.ForgotPassword)
	users.Patch("/resetPassword/:token", cfg.Auth.ResetPassword)

	protected := users.Group("", cfg.Gate.Authenticate)
	protected.Get("/logout", cfg.Auth.Logout)
	protected.Patch("/updatePassword", cfg.Auth.UpdatePassword)
	protected.Get("/me", cfg.Users.Me)
	protected.Patch("/me", cfg.Users.UpdateMe)
	protected.Delete("/me", cfg.Users.DeleteMe)

	admin := protected.Group("", auth.RequireRoles(domain.RoleAdmin))
	admin.Get("/", cfg.Users.List)
	admin.Get("/:email", cfg.Users.GetUser)
	admin.Patch("/:email", cfg.Users.UpdateUser)
	admin.Delete("/:email", cfg.Users.DeleteUser)
}
