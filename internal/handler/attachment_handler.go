package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/service"
	"github.com/noah-isme/activity-credit-api/internal/utils"
)

// AttachmentHandler handles evidence files attached to an activity.
type AttachmentHandler struct {
	service service.AttachmentService
	logger  zerolog.Logger
}

// NewAttachmentHandler constructs an attachment handler.
func NewAttachmentHandler(service service.AttachmentService, logger zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service: service,
		logger:  logger.With().Str("component", "attachment_handler").Logger(),
	}
}

// Register wires attachment routes below an activities group.
func (h *AttachmentHandler) Register(router fiber.Router) {
	router.Get("/:id/attachments", h.list)
	router.Post("/:id/attachments", h.upload)
	router.Delete("/:id/attachments/:attachmentId", h.delete)
	router.Get("/:id/attachments/:attachmentId/download", h.download)
}

func (h *AttachmentHandler) list(c *fiber.Ctx) error {
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
		return respondError(c, h.logger, err, "failed to list attachments")
	}
	return utils.OK(c, result, "attachments retrieved", nil)
}

func (h *AttachmentHandler) upload(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "file is required", fiber.Map{"field": "file", "reason": "is required"})
	}

	result, err := h.service.Upload(c.UserContext(), user, activityID, file)
	if err != nil {
		return respondError(c, h.logger, err, "upload failed")
	}
	return utils.Created(c, result, "upload successful")
}

func (h *AttachmentHandler) delete(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}
	attachmentID, valid := parseIDParam(c, "attachmentId")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attachment id")
	}

	if err := h.service.Delete(c.UserContext(), user, activityID, attachmentID); err != nil {
		return respondError(c, h.logger, err, "failed to delete attachment")
	}
	return utils.OK(c, fiber.Map{"id": attachmentID}, "attachment deleted", nil)
}

// download counts the access and redirects to the stored object.
func (h *AttachmentHandler) download(c *fiber.Ctx) error {
	user, ok, err := currentUser(c)
	if !ok {
		return err
	}
	activityID, valid := parseIDParam(c, "id")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}
	attachmentID, valid := parseIDParam(c, "attachmentId")
	if !valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attachment id")
	}

	result, err := h.service.Download(c.UserContext(), user, activityID, attachmentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to download attachment")
	}
	return c.Redirect(result.URL, fiber.StatusFound)
}
