package conferencing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/twitchtv/twirp"
)

type roomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
	RemoveParticipant(ctx context.Context, req *livekit.RoomParticipantIdentity) (*livekit.RemoveParticipantResponse, error)
}

type LiveKitConfig struct {
	Endpoint        string
	ApiKey          string
	ApiSecret       string
	TokenDuration   time.Duration
	EmptyTimeout    uint32
	MaxParticipants uint32
}

// LiveKitProvider maps meetings onto LiveKit rooms. An attendee is a
// participant identity with a signed access token, the room name is used
// as meeting id and the participant identity as attendee id.
type LiveKitProvider struct {
	rooms  roomService
	config LiveKitConfig
}

func NewLiveKitProvider(config LiveKitConfig) *LiveKitProvider {
	host := "https://" + config.Endpoint
	return &LiveKitProvider{
		rooms:  lksdk.NewRoomServiceClient(host, config.ApiKey, config.ApiSecret),
		config: config,
	}
}

type roomMetadata struct {
	ExternalMeetingId string `json:"external_meeting_id"`
	MediaRegion       string `json:"media_region"`
}

func (v *LiveKitProvider) CreateMeeting(ctx context.Context, req CreateMeetingRequest) (models.Meeting, error) {
	metadata, _ := jsoniter.MarshalToString(roomMetadata{
		ExternalMeetingId: req.ExternalMeetingId,
		MediaRegion:       req.MediaRegion,
	})

	room, err := v.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            req.ClientRequestToken,
		EmptyTimeout:    v.config.EmptyTimeout,
		MaxParticipants: v.config.MaxParticipants,
		Metadata:        metadata,
	})
	if err != nil {
		return models.Meeting{}, fmt.Errorf("remote livekit error: %v", err)
	}

	return models.Meeting{
		MeetingId:         room.GetName(),
		ExternalMeetingId: req.ExternalMeetingId,
		MediaRegion:       req.MediaRegion,
		MediaPlacement: map[string]string{
			"SignalingUrl": "wss://" + v.config.Endpoint,
			"RoomSid":      room.GetSid(),
		},
	}, nil
}

func (v *LiveKitProvider) CreateAttendee(ctx context.Context, meetingId, externalUserId string) (models.Attendee, error) {
	attendeeId := uuid.NewString()
	metadata, _ := jsoniter.MarshalToString(map[string]string{
		"external_user_id": externalUserId,
	})

	grant := &auth.VideoGrant{
		Room:     meetingId,
		RoomJoin: true,
	}
	tk := auth.NewAccessToken(v.config.ApiKey, v.config.ApiSecret)
	tk.AddGrant(grant).
		SetIdentity(attendeeId).
		SetName(externalUserId).
		SetMetadata(metadata).
		SetValidFor(v.config.TokenDuration)

	token, err := tk.ToJWT()
	if err != nil {
		return models.Attendee{}, fmt.Errorf("unable to sign livekit token: %v", err)
	}

	return models.Attendee{
		MeetingId:      meetingId,
		AttendeeId:     attendeeId,
		ExternalUserId: externalUserId,
		JoinToken:      token,
	}, nil
}

// DeleteAttendee removes the participant from the room. A participant that
// never connected is not known to LiveKit, which counts as success.
func (v *LiveKitProvider) DeleteAttendee(ctx context.Context, meetingId, attendeeId string) error {
	_, err := v.rooms.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     meetingId,
		Identity: attendeeId,
	})
	if err != nil && !isTwirpNotFound(err) {
		return fmt.Errorf("remote livekit error: %v", err)
	}
	return nil
}

// DeleteMeeting closes the room. Rooms closed by the empty timeout are
// already gone, which counts as success.
func (v *LiveKitProvider) DeleteMeeting(ctx context.Context, meetingId string) error {
	_, err := v.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{
		Room: meetingId,
	})
	if err != nil && !isTwirpNotFound(err) {
		return fmt.Errorf("remote livekit error: %v", err)
	}
	return nil
}

func isTwirpNotFound(err error) bool {
	var terr twirp.Error
	return errors.As(err, &terr) && terr.Code() == twirp.NotFound
}
