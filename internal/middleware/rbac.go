package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/utils"
)

// RequireRole lets the request through only when the authenticated role is
// one of roles. It must run after JWTProtected.
func RequireRole(roles ...authz.Role) fiber.Handler {
	allowed := make(map[authz.Role]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		if parsed := authz.ParseRole(string(role)); parsed != "" {
			allowed[parsed] = struct{}{}
			names = append(names, string(parsed))
		}
	}

	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if _, ok := allowed[user.Role]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{
				"role":     string(user.Role),
				"required": names,
			})
		}
		return c.Next()
	}
}
