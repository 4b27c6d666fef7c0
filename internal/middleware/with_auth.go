package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradebot-go/internal/utils"
)

// AuthRoleAny lets any authenticated user through.
const AuthRoleAny = "any"

// roleRank orders roles so that higher roles inherit the permissions of lower ones.
var roleRank = map[string]int{
	RoleGrader:     1,
	RoleInstructor: 2,
	RoleAdmin:      3,
}

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	// MinRole is the lowest role allowed through. Empty means AuthRoleAny.
	MinRole     string
	RequireUser bool
}

// WithAuth wraps a handler with authentication and minimum-role guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	minRole := strings.ToLower(strings.TrimSpace(opts.MinRole))
	if minRole == "" {
		minRole = AuthRoleAny
	}
	requireUser := opts.RequireUser || minRole != AuthRoleAny

	return func(c *fiber.Ctx) error {
		if requireUser && UserID(c) == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if minRole == AuthRoleAny {
			return handler(c)
		}

		required, known := roleRank[minRole]
		current := roleRank[normalizeRoleValue(c.Locals(localUserRole))]
		if !known || current < required {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", map[string]string{"required_role": minRole})
		}
		return handler(c)
	}
}
