package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/genposting/internal/service"
)

type PlatformHandler struct {
	ps service.PlatformService
}

func NewPlatformHandler(ps service.PlatformService) *PlatformHandler {
	return &PlatformHandler{ps: ps}
}

func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	authURL, err := h.ps.GetAuthURL(c.Context(), c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Redirect(authURL)
}

// CallbackHandler returns the linked account, token included, so the caller
// can use it when scheduling posts.
func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	if errMsg := c.Query("error"); errMsg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": c.Query("error_description", errMsg),
		})
	}

	account, err := h.ps.Exchange(c.Context(), c.Params("platform"), c.Query("code"), c.Query("state"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to link account",
		})
	}

	return c.Status(fiber.StatusOK).JSON(account)
}
