package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/service"
	"github.com/noah-isme/activity-credit-api/internal/utils"
)

// CategoryHandler serves the category detail schemas clients render forms from.
type CategoryHandler struct {
	service service.CategoryService
	logger  zerolog.Logger
}

// NewCategoryHandler constructs the handler.
func NewCategoryHandler(service service.CategoryService, logger zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		service: service,
		logger:  logger.With().Str("component", "category_handler").Logger(),
	}
}

// Register attaches routes.
func (h *CategoryHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:key", h.get)
}

func (h *CategoryHandler) list(c *fiber.Ctx) error {
	schemas := h.service.List()
	return utils.OK(c, schemas, "categories retrieved", fiber.Map{"count": len(schemas)})
}

func (h *CategoryHandler) get(c *fiber.Ctx) error {
	key := c.Params("key")
	schema, err := h.service.Get(key)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load category")
	}
	empty, err := h.service.EmptyDetail(key)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load category")
	}
	return utils.OK(c, fiber.Map{"schema": schema, "empty_detail": empty}, "category retrieved", nil)
}
