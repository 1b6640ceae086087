package api

import (
	"git.solsynth.dev/hypernet/meeting/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func MapAPIs(app *fiber.App, baseURL string, gw *services.Gateway) {
	api := app.Group(baseURL).Name("API")
	meetings := &meetingsAPI{gw: gw}
	{
		api.Post("/create-meeting", meetings.createMeeting)
		api.Post("/join-meeting", meetings.joinMeeting)
		api.Post("/create-attendee", meetings.createLegacyAttendee)
		api.Get("/list-meetings", meetings.listMeetings)
		api.Post("/leave-meeting", meetings.leaveMeeting)
		api.Delete("/end-meeting", meetings.endMeeting)

		api.Get("/meetings/history", meetings.listHistory)
		api.Get("/.well-known", meetings.getMetadata)
	}
}
