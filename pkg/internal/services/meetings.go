package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/conferencing"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/registry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type GatewayConfig struct {
	ProviderName string
	MediaRegion  string
	// Upper bound for every provider call, zero means no bound.
	Timeout time.Duration
}

// Gateway keeps the registry consistent with the conferencing provider.
// Registry state is only written after the provider call succeeded.
type Gateway struct {
	registry *registry.Registry
	provider conferencing.Provider
	history  HistoryRecorder
	config   GatewayConfig
}

// NewGateway builds a gateway, history may be nil.
func NewGateway(reg *registry.Registry, provider conferencing.Provider, history HistoryRecorder, config GatewayConfig) *Gateway {
	return &Gateway{
		registry: reg,
		provider: provider,
		history:  history,
		config:   config,
	}
}

func (v *Gateway) History() HistoryRecorder {
	return v.history
}

func (v *Gateway) ProviderName() string {
	return v.config.ProviderName
}

func (v *Gateway) MediaRegion() string {
	return v.config.MediaRegion
}

func (v *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.config.Timeout)
}

func (v *Gateway) ensureMeeting(meetingId string) error {
	if _, ok := v.registry.GetMeeting(meetingId); !ok {
		return fmt.Errorf("%w: %s", ErrMeetingNotFound, meetingId)
	}
	return nil
}

// CreateMeeting creates a meeting together with its host attendee.
func (v *Gateway) CreateMeeting(ctx context.Context, hostUserId string) (models.Meeting, models.Attendee, error) {
	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	meeting, err := v.provider.CreateMeeting(ctx, conferencing.CreateMeetingRequest{
		ClientRequestToken: uuid.NewString(),
		MediaRegion:        v.config.MediaRegion,
		ExternalMeetingId:  NewExternalMeetingID(),
	})
	if err != nil {
		return models.Meeting{}, models.Attendee{}, conferencing.WrapError("create meeting", err)
	}

	if len(hostUserId) == 0 {
		hostUserId = NewHostUserID()
	}

	host, err := v.provider.CreateAttendee(ctx, meeting.MeetingId, hostUserId)
	if err != nil {
		v.discardMeeting(ctx, meeting.MeetingId)
		return models.Meeting{}, models.Attendee{}, conferencing.WrapError("create attendee", err)
	}

	v.registry.PutMeeting(meeting)
	host, _, err = v.registry.GetOrCreateAttendee(meeting.MeetingId, hostUserId, func() (models.Attendee, error) {
		return host, nil
	})
	if err != nil {
		return models.Meeting{}, models.Attendee{}, fmt.Errorf("%w: %s", ErrMeetingNotFound, meeting.MeetingId)
	}

	if v.history != nil {
		if err := v.history.RecordCreated(meeting, hostUserId); err != nil {
			log.Warn().Err(err).Str("meeting", meeting.MeetingId).Msg("Unable to record meeting history...")
		}
	}

	log.Info().
		Str("meeting", meeting.MeetingId).
		Str("external", meeting.ExternalMeetingId).
		Str("host", hostUserId).
		Msg("Meeting created.")

	return meeting, host, nil
}

// discardMeeting deletes a meeting that never reached the registry.
func (v *Gateway) discardMeeting(ctx context.Context, meetingId string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := v.provider.DeleteMeeting(ctx, meetingId); err != nil {
		log.Error().Err(err).Str("meeting", meetingId).Msg("Unable to discard meeting at conferencing side")
	}
}

// JoinMeeting returns the attendee of the user in the meeting, creating it
// at the provider only when the user has none yet.
func (v *Gateway) JoinMeeting(ctx context.Context, meetingId, userId string) (models.Attendee, bool, error) {
	if len(meetingId) == 0 || len(userId) == 0 {
		return models.Attendee{}, false, fmt.Errorf("%w: meetingId and userId are required", ErrMissingParameter)
	}
	if err := v.ensureMeeting(meetingId); err != nil {
		return models.Attendee{}, false, err
	}

	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	attendee, existed, err := v.registry.GetOrCreateAttendee(meetingId, userId, func() (models.Attendee, error) {
		attendee, err := v.provider.CreateAttendee(ctx, meetingId, userId)
		return attendee, conferencing.WrapError("create attendee", err)
	})
	if errors.Is(err, registry.ErrUnknownMeeting) {
		return models.Attendee{}, false, fmt.Errorf("%w: %s", ErrMeetingNotFound, meetingId)
	} else if err != nil {
		return models.Attendee{}, false, err
	}

	if !existed && v.history != nil {
		if err := v.history.RecordJoined(meetingId); err != nil {
			log.Warn().Err(err).Str("meeting", meetingId).Msg("Unable to record meeting history...")
		}
	}

	log.Debug().
		Str("meeting", meetingId).
		Str("user", userId).
		Str("attendee", attendee.AttendeeId).
		Bool("rejoining", existed).
		Msg("User joined meeting.")

	return attendee, existed, nil
}

// CreateLegacyAttendee always creates a fresh attendee under a synthesized
// user id and leaves the registry alone. Repeated calls by the same person
// produce duplicate attendees at the provider, callers relying on that
// keep working.
func (v *Gateway) CreateLegacyAttendee(ctx context.Context, meetingId string) (models.Attendee, error) {
	if len(meetingId) == 0 {
		return models.Attendee{}, fmt.Errorf("%w: meetingId is required", ErrMissingParameter)
	}
	if err := v.ensureMeeting(meetingId); err != nil {
		return models.Attendee{}, err
	}

	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	userId := NewLegacyUserID()
	attendee, err := v.provider.CreateAttendee(ctx, meetingId, userId)
	if err != nil {
		return models.Attendee{}, conferencing.WrapError("create attendee", err)
	}

	log.Warn().
		Str("meeting", meetingId).
		Str("user", userId).
		Msg("Legacy attendee created without registry bookkeeping, duplicates are possible.")

	return attendee, nil
}

// LeaveMeeting deletes the attendee at the provider and then drops the
// local record, by user id when given, otherwise by attendee id.
func (v *Gateway) LeaveMeeting(ctx context.Context, meetingId, attendeeId, userId string) error {
	if len(meetingId) == 0 || len(attendeeId) == 0 {
		return fmt.Errorf("%w: meetingId and attendeeId are required", ErrMissingParameter)
	}
	if err := v.ensureMeeting(meetingId); err != nil {
		return err
	}

	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	if err := v.provider.DeleteAttendee(ctx, meetingId, attendeeId); err != nil {
		return conferencing.WrapError("delete attendee", err)
	}

	if len(userId) > 0 {
		v.registry.RemoveAttendee(meetingId, userId)
	} else if owner, ok := v.registry.RemoveAttendeeByID(meetingId, attendeeId); ok {
		userId = owner
	}

	log.Debug().
		Str("meeting", meetingId).
		Str("attendee", attendeeId).
		Str("user", userId).
		Msg("Attendee left meeting.")

	return nil
}

// EndMeeting deletes the meeting at the provider and drops it with all of
// its attendees from the registry.
func (v *Gateway) EndMeeting(ctx context.Context, meetingId string) error {
	if len(meetingId) == 0 {
		return fmt.Errorf("%w: meetingId is required", ErrMissingParameter)
	}
	if err := v.ensureMeeting(meetingId); err != nil {
		return err
	}

	ctx, cancel := v.withTimeout(ctx)
	defer cancel()

	if err := v.provider.DeleteMeeting(ctx, meetingId); err != nil {
		return conferencing.WrapError("delete meeting", err)
	}

	v.registry.RemoveMeeting(meetingId)

	if v.history != nil {
		if err := v.history.RecordEnded(meetingId); err != nil {
			log.Warn().Err(err).Str("meeting", meetingId).Msg("Unable to record meeting history...")
		}
	}

	log.Info().Str("meeting", meetingId).Msg("Meeting ended.")

	return nil
}

func (v *Gateway) ListMeetings() []registry.MeetingSummary {
	return v.registry.ListMeetings()
}
