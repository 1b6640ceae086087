package api

import (
	"errors"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/registry"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/server/exts"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type meetingsAPI struct {
	gw *services.Gateway
}

type meetingListItem struct {
	models.Meeting
	AttendeeCount int      `json:"attendeeCount"`
	AttendeesList []string `json:"attendeesList"`
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, services.ErrMissingParameter):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrMeetingNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg("Conferencing request failed...")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func (v *meetingsAPI) createMeeting(c *fiber.Ctx) error {
	var data struct {
		HostUserId string `json:"hostUserId"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	meeting, attendee, err := v.gw.CreateMeeting(c.UserContext(), data.HostUserId)
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"meeting":  meeting,
		"attendee": attendee,
	})
}

func (v *meetingsAPI) joinMeeting(c *fiber.Ctx) error {
	var data struct {
		MeetingId string `json:"meetingId" validate:"required"`
		UserId    string `json:"userId" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	attendee, existed, err := v.gw.JoinMeeting(c.UserContext(), data.MeetingId, data.UserId)
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"attendee":    attendee,
		"isRejoining": existed,
		"message":     lo.Ternary(existed, "Reusing existing attendee", "New attendee created"),
	})
}

func (v *meetingsAPI) createLegacyAttendee(c *fiber.Ctx) error {
	var data struct {
		MeetingId string `json:"meetingId" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	attendee, err := v.gw.CreateLegacyAttendee(c.UserContext(), data.MeetingId)
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"attendee": attendee,
	})
}

func (v *meetingsAPI) listMeetings(c *fiber.Ctx) error {
	out := lo.Map(v.gw.ListMeetings(), func(item registry.MeetingSummary, _ int) meetingListItem {
		return meetingListItem{
			Meeting:       item.Meeting,
			AttendeeCount: item.AttendeeCount,
			AttendeesList: item.UserIDs,
		}
	})
	return c.JSON(out)
}

func (v *meetingsAPI) leaveMeeting(c *fiber.Ctx) error {
	var data struct {
		MeetingId  string `json:"meetingId" validate:"required"`
		AttendeeId string `json:"attendeeId" validate:"required"`
		UserId     string `json:"userId"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if err := v.gw.LeaveMeeting(c.UserContext(), data.MeetingId, data.AttendeeId, data.UserId); err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"message":    "User removed from the meeting successfully",
		"meetingId":  data.MeetingId,
		"attendeeId": data.AttendeeId,
	})
}

func (v *meetingsAPI) endMeeting(c *fiber.Ctx) error {
	var data struct {
		MeetingId string `json:"meetingId" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if err := v.gw.EndMeeting(c.UserContext(), data.MeetingId); err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Meeting ended successfully",
		"meetingId": data.MeetingId,
	})
}

func (v *meetingsAPI) listHistory(c *fiber.Ctx) error {
	take := c.QueryInt("take", 20)
	offset := c.QueryInt("offset", 0)

	history := v.gw.History()
	if history == nil {
		return fiber.NewError(fiber.StatusNotFound, "meeting history is not enabled")
	}

	records, count, err := history.ListHistory(take, offset)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"count": count,
		"data":  records,
	})
}
