package plugins

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/linht/rx5808-manager/rtc6715"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SendSuccess sends a successful response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends an error response
func SendError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// SendErrorMessage sends an error response with a custom message
func SendErrorMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   message,
	})
}

// SendFailure picks the status from err: request errors are 400, anything
// else, a failing GPIO line for instance, is 500.
func SendFailure(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrOutOfRange),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, rtc6715.ErrUnknownChannel):
		return SendError(c, fiber.StatusBadRequest, err)
	}
	return SendError(c, fiber.StatusInternalServerError, err)
}
