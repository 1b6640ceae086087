package api

import (
	pkg "git.solsynth.dev/hypernet/meeting/pkg/internal"
	"github.com/gofiber/fiber/v2"
)

func (v *meetingsAPI) getMetadata(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":     "Meeting",
		"version":  pkg.AppVersion,
		"provider": v.gw.ProviderName(),
		"region":   v.gw.MediaRegion(),
	})
}
