package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/service"
	"github.com/noah-isme/activity-credit-api/internal/utils"
)

// ParticipantHandler exposes the participant credit ledger of an activity.
type ParticipantHandler struct {
	service service.ParticipantService
	logger  zerolog.Logger
}

// NewParticipantHandler constructs the handler.
func NewParticipantHandler(service service.ParticipantService, logger zerolog.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		service: service,
		logger:  logger.With().Str("component", "participant_handler").Logger(),
	}
}

// Register attaches ledger routes below an activities group.
func (h *ParticipantHandler) Register(router fiber.Router) {
	router.Get("/:id/participants", h.list)
	router.Post("/:id/participants", h.add)
	router.Post("/:id/participants/batch-remove", h.batchRemove)
	router.Put("/:id/participants/batch-credits", h.batchCredits)
	router.Delete("/:id/participants/:userId", h.remove)
	router.Put("/:id/participants/:userId/credits", h.setCredits)
	router.Post("/:id/leave", h.leave)
}

func (h *ParticipantHandler) list(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	result, err := h.service.List(c.UserContext(), user, activityID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list participants")
	}
	return utils.OK(c, result, "participants retrieved", fiber.Map{"count": len(result)})
}

func (h *ParticipantHandler) add(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	var req dto.ParticipantAddRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Add(c.UserContext(), user, activityID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to add participants")
	}
	return utils.OK(c, result, "participants added", nil)
}

func (h *ParticipantHandler) remove(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}
	userID, valid := parseIDParam(c, "userId")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.service.Remove(c.UserContext(), user, activityID, userID); err != nil {
		return respondError(c, h.logger, err, "failed to remove participant")
	}
	return utils.OK(c, fiber.Map{"user_id": userID}, "participant removed", nil)
}

func (h *ParticipantHandler) setCredits(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}
	userID, valid := parseIDParam(c, "userId")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req dto.CreditsUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.SetCredits(c.UserContext(), user, activityID, userID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to set credits")
	}
	return utils.OK(c, result, "credits updated", nil)
}

func (h *ParticipantHandler) batchRemove(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	var req dto.BatchRemoveRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.BatchRemove(c.UserContext(), user, activityID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to remove participants")
	}
	return utils.OK(c, result, "participants removed", nil)
}

func (h *ParticipantHandler) batchCredits(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	var req dto.BatchCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.BatchSetCredits(c.UserContext(), user, activityID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to set credits")
	}
	return utils.OK(c, result, "credits updated", nil)
}

func (h *ParticipantHandler) leave(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	if err := h.service.Leave(c.UserContext(), user, activityID); err != nil {
		return respondError(c, h.logger, err, "failed to leave activity")
	}
	return utils.OK(c, fiber.Map{"activity_id": activityID}, "left activity", nil)
}
