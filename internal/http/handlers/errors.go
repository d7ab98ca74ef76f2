package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
)

func statusForKind(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindValidation:
		return fiber.StatusBadRequest
	case pipeline.KindZeroResults:
		return fiber.StatusNotFound
	case pipeline.KindAuthorization:
		return fiber.StatusForbidden
	case pipeline.KindConflict, pipeline.KindBusy, pipeline.KindCancelled:
		return fiber.StatusConflict
	case pipeline.KindTransient:
		return fiber.StatusBadGateway
	case pipeline.KindPartial:
		return fiber.StatusMultiStatus
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, status int, kind pipeline.Kind, message string) error {
	return c.Status(status).JSON(fiber.Map{"message": message, "kind": kind})
}

// writeError reports a pipeline error with the operator message only.
func writeError(c *fiber.Ctx, err error) error {
	kind := pipeline.KindOf(err)
	message := err.Error()
	var pipelineErr *pipeline.Error
	if errors.As(err, &pipelineErr) && pipelineErr.Message != "" {
		message = pipelineErr.Message
	}
	if kind == pipeline.KindInternal {
		message = "internal error"
	}
	return errorJSON(c, statusForKind(kind), kind, message)
}

func invalidBody(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusBadRequest, pipeline.KindValidation, "invalid json body")
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err.Error()
	}

	parts := make([]string, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		rule := fieldErr.Tag()
		if fieldErr.Param() != "" {
			rule += "=" + fieldErr.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", lowerFirst(fieldErr.Field()), rule))
	}
	return strings.Join(parts, ", ")
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}
