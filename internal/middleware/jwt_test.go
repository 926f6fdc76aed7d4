package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/activity-credit-api/internal/authz"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func protectedApp(captured *authz.User) *fiber.App {
	app := fiber.New()
	app.Get("/", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		*captured = user
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func callWithToken(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestJWTProtectedPopulatesCurrentUser(t *testing.T) {
	var user authz.User
	app := protectedApp(&user)

	token := signToken(t, jwt.MapClaims{"sub": "42", "role": "Teacher", "exp": time.Now().Add(time.Hour).Unix()})
	require.Equal(t, fiber.StatusOK, callWithToken(t, app, token))
	require.Equal(t, authz.User{ID: 42, Role: authz.RoleTeacher}, user)

	token = signToken(t, jwt.MapClaims{"user_id": float64(7), "roles": []interface{}{"student"}})
	require.Equal(t, fiber.StatusOK, callWithToken(t, app, token))
	require.Equal(t, authz.User{ID: 7, Role: authz.RoleStudent}, user)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	var user authz.User
	app := protectedApp(&user)

	require.Equal(t, fiber.StatusUnauthorized, callWithToken(t, app, ""))
	require.Equal(t, fiber.StatusUnauthorized, callWithToken(t, app, "garbage"))

	expired := signToken(t, jwt.MapClaims{"sub": "1", "role": "student", "exp": time.Now().Add(-time.Hour).Unix()})
	require.Equal(t, fiber.StatusUnauthorized, callWithToken(t, app, expired))

	noRole := signToken(t, jwt.MapClaims{"sub": "1"})
	require.Equal(t, fiber.StatusUnauthorized, callWithToken(t, app, noRole))

	unknownRole := signToken(t, jwt.MapClaims{"sub": "1", "role": "guest"})
	require.Equal(t, fiber.StatusUnauthorized, callWithToken(t, app, unknownRole))

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "role": "admin"})
	signed, err := wrongKey.SignedString([]byte("other"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, callWithToken(t, app, signed))
}
