package serverutils

import (
	"errors"

	"resonance-field-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

// ErrorHandlerMiddleware maps field protocol errors onto HTTP statuses so
// controllers can simply return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrCapacityExceeded):
			status = fiber.StatusServiceUnavailable
		case errors.Is(err, service.ErrNotConnected),
			errors.Is(err, service.ErrInvalidTarget),
			errors.Is(err, service.ErrNoPendingInvite),
			errors.Is(err, service.ErrNotInGroup):
			status = fiber.StatusNotFound
		case errors.Is(err, service.ErrAlreadyInGroup):
			status = fiber.StatusConflict
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		return ctx.Status(status).JSON(ErrorResponse(err.Error()))
	}
}
