package handlers

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/genposting/internal/repository"
	"github.com/maheshrc27/genposting/internal/service"
)

// scheduledTimeLayouts are tried in order; the last one is what the
// datetime-local form input sends.
var scheduledTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func GetSubject(c *fiber.Ctx) string {
	subject, _ := c.Locals("subject").(string)
	return subject
}

func parseScheduledTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var err error
	for _, layout := range scheduledTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// errorStatus maps service and repository errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidPost), errors.Is(err, service.ErrUnsupportedPlatform):
		return fiber.StatusBadRequest
	case errors.Is(err, repository.ErrPostNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repository.ErrPostNotPending), errors.Is(err, repository.ErrPostExists),
		errors.Is(err, repository.ErrPostConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		slog.Error(err.Error())
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
