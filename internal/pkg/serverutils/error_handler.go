package serverutils

import (
	"errors"

	"ai-ragchat-be/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// NotFoundError marks service errors that should surface as 404.
type NotFoundError interface {
	error
	NotFound() bool
}

// ErrorHandler renders every error returned by a handler as an ErrorBody.
// Unknown errors become 500 and are logged; their text is not exposed.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		body := ErrorBody{Code: fiber.StatusInternalServerError, Message: "Internal server error"}

		var fiberErr *fiber.Error
		var validationErrs validator.ValidationErrors
		var notFound NotFoundError

		switch {
		case errors.As(err, &fiberErr):
			body.Code = fiberErr.Code
			body.Message = fiberErr.Message
		case errors.As(err, &validationErrs):
			body.Code = fiber.StatusBadRequest
			body.Message = "Validation failed"
			body.Errors = validationMessages(validationErrs)
		case errors.As(err, &notFound) && notFound.NotFound():
			body.Code = fiber.StatusNotFound
			body.Message = err.Error()
		default:
			log.Error("HTTP", "Unhandled error", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}

		return ctx.Status(body.Code).JSON(body)
	}
}
