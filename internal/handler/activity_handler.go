package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/service"
	"github.com/noah-isme/activity-credit-api/internal/utils"
)

// ActivityHandler exposes the activity lifecycle endpoints.
type ActivityHandler struct {
	activities service.ActivityService
	exports    service.ExportService
	logger     zerolog.Logger
}

// NewActivityHandler constructs the handler. exports may be nil, in which
// case the export route is not registered.
func NewActivityHandler(activities service.ActivityService, exports service.ExportService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activities: activities,
		exports:    exports,
		logger:     logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires activity routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/submit", h.submit)
	router.Post("/:id/withdraw", h.withdraw)
	router.Post("/:id/review", h.review)
	router.Post("/:id/confirmations", h.confirm)
	router.Get("/:id/stats", h.stats)
	if h.exports != nil {
		router.Get("/:id/export", h.export)
	}
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}

	page, pageSize, err := parsePage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}
	ownerID, err := parseQueryUint(c, "owner_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid owner_id")
	}

	req := dto.ActivityListRequest{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Category: c.Query("category"),
		OwnerID:  ownerID,
		Mine:     c.QueryBool("mine", false),
		Sort:     c.Query("sort"),
		Page:     page,
		PageSize: pageSize,
	}

	result, err := h.activities.List(c.UserContext(), user, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activities")
	}
	return utils.OK(c, result, "activities retrieved", nil)
}

func (h *ActivityHandler) create(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}

	var req dto.ActivityCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.activities.Create(c.UserContext(), user, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create activity")
	}
	return utils.Created(c, result, "activity created")
}

func (h *ActivityHandler) get(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	result, err := h.activities.Get(c.UserContext(), user, id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load activity")
	}
	return utils.OK(c, result, "activity retrieved", nil)
}

func (h *ActivityHandler) update(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	var req dto.ActivityUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.activities.Update(c.UserContext(), user, id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update activity")
	}
	return utils.OK(c, result, "activity updated", nil)
}

func (h *ActivityHandler) delete(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	if err := h.activities.Delete(c.UserContext(), user, id, confirmationToken(c)); err != nil {
		return respondError(c, h.logger, err, "failed to delete activity")
	}
	return utils.OK(c, fiber.Map{"id": id}, "activity deleted", nil)
}

func (h *ActivityHandler) submit(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	result, err := h.activities.Submit(c.UserContext(), user, id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit activity")
	}
	return utils.OK(c, result, "activity submitted", nil)
}

func (h *ActivityHandler) withdraw(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	result, err := h.activities.Withdraw(c.UserContext(), user, id, confirmationToken(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to withdraw activity")
	}
	return utils.OK(c, result, "activity withdrawn", nil)
}

func (h *ActivityHandler) review(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	var req dto.ActivityReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.activities.Review(c.UserContext(), user, id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to review activity")
	}
	return utils.OK(c, result, "activity reviewed", nil)
}

func (h *ActivityHandler) confirm(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	var req dto.ConfirmationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.activities.RequestConfirmation(c.UserContext(), user, id, strings.ToLower(strings.TrimSpace(req.Action)))
	if err != nil {
		return respondError(c, h.logger, err, "failed to issue confirmation")
	}
	return utils.Created(c, result, "confirmation issued")
}

func (h *ActivityHandler) stats(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	result, err := h.activities.Stats(c.UserContext(), user, id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute activity stats")
	}
	return utils.OK(c, result, "activity stats retrieved", nil)
}

func (h *ActivityHandler) export(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	id, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	file, err := h.exports.ActivityLedger(c.UserContext(), user, id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to export activity")
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.FileName))
	return c.Send(file.Content)
}
