package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/activity-credit-api/internal/authz"
)

// CurrentUser builds the explicit user value from the locals set by
// JWTProtected. ok is false when the request is anonymous.
func CurrentUser(c *fiber.Ctx) (authz.User, bool) {
	id, _ := c.Locals("user_id").(uint)
	if id == 0 {
		return authz.User{}, false
	}
	raw, _ := c.Locals("user_role").(string)
	role := authz.ParseRole(raw)
	if role == "" {
		return authz.User{}, false
	}
	return authz.User{ID: id, Role: role}, true
}
