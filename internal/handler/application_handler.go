package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/service"
	"github.com/noah-isme/activity-credit-api/internal/utils"
)

// ApplicationHandler exposes the credit application pipeline.
type ApplicationHandler struct {
	service service.ApplicationService
	logger  zerolog.Logger
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service service.ApplicationService, logger zerolog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		logger:  logger.With().Str("component", "application_handler").Logger(),
	}
}

// Register wires application routes. /stats is registered before /:id.
func (h *ApplicationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/stats", h.stats)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/submit", h.submit)
	router.Put("/:id/review", h.review)
}

func (h *ApplicationHandler) listRequest(c *fiber.Ctx) (dto.ApplicationListRequest, error) {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return dto.ApplicationListRequest{}, err
	}
	activityID, err := parseQueryUint(c, "activity_id")
	if err != nil {
		return dto.ApplicationListRequest{}, err
	}
	userID, err := parseQueryUint(c, "user_id")
	if err != nil {
		return dto.ApplicationListRequest{}, err
	}
	return dto.ApplicationListRequest{
		ActivityID: activityID,
		UserID:     userID,
		Status:     c.Query("status"),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func (h *ApplicationHandler) list(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.List(c.UserContext(), user, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list applications")
	}
	return utils.OK(c, result, "applications retrieved", nil)
}

func (h *ApplicationHandler) stats(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.Stats(c.UserContext(), user, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute application stats")
	}
	return utils.OK(c, result, "application stats retrieved", nil)
}

func (h *ApplicationHandler) create(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}

	var req dto.ApplicationCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Create(c.UserContext(), user, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create application")
	}
	return utils.Created(c, result, "application created")
}

func (h *ApplicationHandler) get(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid application id")
	}

	result, err := h.service.Get(c.UserContext(), user, id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load application")
	}
	return utils.OK(c, result, "application retrieved", nil)
}

func (h *ApplicationHandler) update(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid application id")
	}

	var req dto.ApplicationUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Update(c.UserContext(), user, id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update application")
	}
	return utils.OK(c, result, "application updated", nil)
}

func (h *ApplicationHandler) submit(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid application id")
	}

	result, err := h.service.Submit(c.UserContext(), user, id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit application")
	}
	return utils.OK(c, result, "application submitted", nil)
}

func (h *ApplicationHandler) review(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid application id")
	}

	var req dto.ApplicationReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Review(c.UserContext(), user, id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to review application")
	}
	return utils.OK(c, result, "application reviewed", nil)
}

func (h *ApplicationHandler) delete(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid application id")
	}

	if err := h.service.Delete(c.UserContext(), user, id); err != nil {
		return respondError(c, h.logger, err, "failed to delete application")
	}
	return utils.OK(c, fiber.Map{"id": id}, "application deleted", nil)
}
