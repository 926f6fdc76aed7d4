package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/middleware"
	"github.com/noah-isme/activity-credit-api/internal/observability"
	"github.com/noah-isme/activity-credit-api/internal/utils"
)

// respondError maps service errors onto the response envelope. Validation
// and authorization messages are surfaced verbatim; anything unknown is
// logged, reported and hidden behind fallback.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	var (
		batch      *apperr.BatchError
		validation *apperr.ValidationError
		transition *apperr.TransitionError
		conflict   *apperr.ConflictError
	)

	switch {
	case errors.As(err, &batch):
		return utils.Fail(c, statusFor(err), err.Error(), fiber.Map{
			"operation": batch.Operation,
			"failures":  batch.Failures,
		})
	case errors.As(err, &validation):
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), fiber.Map{
			"field":  validation.Field,
			"reason": validation.Reason,
		})
	case errors.Is(err, apperr.ErrUnsupportedCategory):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, apperr.ErrPermissionDenied):
		return utils.Fail(c, fiber.StatusForbidden, err.Error(), nil)
	case errors.Is(err, apperr.ErrNotFound):
		return utils.Fail(c, fiber.StatusNotFound, err.Error(), nil)
	case errors.As(err, &transition):
		return utils.Fail(c, fiber.StatusConflict, err.Error(), fiber.Map{
			"from":      transition.From,
			"attempted": transition.Attempted,
		})
	case errors.As(err, &conflict):
		details := fiber.Map{"entity": conflict.Entity}
		if conflict.Current != "" {
			details["current"] = conflict.Current
		}
		return utils.Fail(c, fiber.StatusConflict, err.Error(), details)
	}

	requestLogger(logger, c).Error().Err(err).Str("route", c.Path()).Msg(fallback)
	observability.CaptureErr(err, map[string]string{
		"route":          c.Path(),
		"method":         c.Method(),
		"correlation_id": middleware.GetCorrelationID(c),
		"user_id":        userTag(c),
	})
	return utils.Fail(c, fiber.StatusInternalServerError, fallback, nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrPermissionDenied):
		return fiber.StatusForbidden
	default:
		return fiber.StatusConflict
	}
}

func userTag(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(uint); ok {
		return strconv.FormatUint(uint64(id), 10)
	}
	return ""
}
