package conferencing

import (
	"context"
	"errors"
	"fmt"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
)

// ErrNotFound is reported by providers when the referenced meeting or
// attendee does not exist on their side.
var ErrNotFound = errors.New("not found on conferencing provider")

type CreateMeetingRequest struct {
	ClientRequestToken string
	MediaRegion        string
	ExternalMeetingId  string
}

// Provider is the control-plane surface of the managed conferencing service.
type Provider interface {
	CreateMeeting(ctx context.Context, req CreateMeetingRequest) (models.Meeting, error)
	CreateAttendee(ctx context.Context, meetingId, externalUserId string) (models.Attendee, error)
	DeleteAttendee(ctx context.Context, meetingId, attendeeId string) error
	DeleteMeeting(ctx context.Context, meetingId string) error
}

// ExternalServiceError wraps any failure of a provider call.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (v *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service error: %s: %v", v.Op, v.Err)
}

func (v *ExternalServiceError) Unwrap() error {
	return v.Err
}

func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Op: op, Err: err}
}
