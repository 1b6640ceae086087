package conferencing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MemoryProvider is a self-contained provider for local development and
// tests. Join tokens are HS256 JWTs signed with the configured secret.
type MemoryProvider struct {
	secret        []byte
	tokenDuration time.Duration

	mu       sync.Mutex
	meetings map[string]map[string]models.Attendee
}

type JoinClaims struct {
	MeetingId  string `json:"meeting_id"`
	AttendeeId string `json:"attendee_id"`
	jwt.RegisteredClaims
}

func NewMemoryProvider(secret string, tokenDuration time.Duration) *MemoryProvider {
	return &MemoryProvider{
		secret:        []byte(secret),
		tokenDuration: tokenDuration,
		meetings:      make(map[string]map[string]models.Attendee),
	}
}

func (v *MemoryProvider) CreateMeeting(ctx context.Context, req CreateMeetingRequest) (models.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return models.Meeting{}, err
	}

	id := uuid.NewString()

	v.mu.Lock()
	v.meetings[id] = make(map[string]models.Attendee)
	v.mu.Unlock()

	return models.Meeting{
		MeetingId:         id,
		ExternalMeetingId: req.ExternalMeetingId,
		MediaRegion:       req.MediaRegion,
		MediaPlacement: map[string]string{
			"SignalingUrl": "memory://" + id,
		},
	}, nil
}

func (v *MemoryProvider) CreateAttendee(ctx context.Context, meetingId, externalUserId string) (models.Attendee, error) {
	if err := ctx.Err(); err != nil {
		return models.Attendee{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	attendees, ok := v.meetings[meetingId]
	if !ok {
		return models.Attendee{}, fmt.Errorf("meeting %s: %w", meetingId, ErrNotFound)
	}

	attendeeId := uuid.NewString()
	now := time.Now()
	claims := JoinClaims{
		MeetingId:  meetingId,
		AttendeeId: attendeeId,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalUserId,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.tokenDuration)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return models.Attendee{}, err
	}

	attendee := models.Attendee{
		MeetingId:      meetingId,
		AttendeeId:     attendeeId,
		ExternalUserId: externalUserId,
		JoinToken:      token,
	}
	attendees[attendeeId] = attendee
	return attendee, nil
}

// DeleteAttendee and DeleteMeeting treat unknown ids as already deleted,
// the same way LiveKit answers.
func (v *MemoryProvider) DeleteAttendee(ctx context.Context, meetingId, attendeeId string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if attendees, ok := v.meetings[meetingId]; ok {
		delete(attendees, attendeeId)
	}
	return nil
}

func (v *MemoryProvider) DeleteMeeting(ctx context.Context, meetingId string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.meetings, meetingId)
	return nil
}

// ParseJoinToken validates a join token issued by this provider.
func (v *MemoryProvider) ParseJoinToken(token string) (*JoinClaims, error) {
	var claims JoinClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// AttendeeCount reports how many attendees the provider holds for a meeting.
func (v *MemoryProvider) AttendeeCount(meetingId string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.meetings[meetingId])
}
