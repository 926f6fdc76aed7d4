package utils

import "github.com/gofiber/fiber/v2"

// CodeOK marks a successful envelope. Failures carry the HTTP status as code.
const CodeOK = 0

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// OK sends a 200 envelope with optional list metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return send(c, fiber.StatusOK, data, message, meta)
}

// Created sends a 201 envelope.
func Created(c *fiber.Ctx, data interface{}, message string) error {
	return send(c, fiber.StatusCreated, data, message, nil)
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return send(c, fiber.StatusOK, data, message, nil)
}

// Fail sends an error envelope. details is omitted when nil.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	return c.Status(status).JSON(APIResponse{
		Code:    status,
		Message: message,
		Details: details,
	})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

func send(c *fiber.Ctx, status int, data interface{}, message string, meta interface{}) error {
	if message == "" {
		message = "success"
	}

	return c.Status(status).JSON(APIResponse{
		Code:    CodeOK,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}
