package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/middleware"
	"github.com/noah-isme/activity-credit-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseQueryUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

// parsePage reads page and page_size, accepting the pageSize spelling too.
func parsePage(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return 0, 0, err
	}
	if pageSize == 0 {
		if legacy, legacyErr := parseQueryInt(c, "pageSize"); legacyErr == nil {
			pageSize = legacy
		}
	}
	return page, pageSize, nil
}

func parseIDParam(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// currentUser resolves the caller or writes a 401 envelope. ok is false when
// the response has already been sent.
func currentUser(c *fiber.Ctx) (authz.User, bool, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return authz.User{}, false, utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
	}
	return user, true, nil
}

// confirmationToken reads the single-use token from the header, the query
// string or the request body, in that order.
func confirmationToken(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Get(middleware.HeaderConfirmationToken)); token != "" {
		return token
	}
	if token := strings.TrimSpace(c.Query("confirmation_token")); token != "" {
		return token
	}
	var body struct {
		Token string `json:"confirmation_token"`
	}
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&body)
	}
	return strings.TrimSpace(body.Token)
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}
