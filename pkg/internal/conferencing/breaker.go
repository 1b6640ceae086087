package conferencing

import (
	"context"
	"errors"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// BreakerProvider fails calls fast while the wrapped provider keeps failing.
// It never retries.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerProvider(next Provider, config BreakerConfig) *BreakerProvider {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}

	settings := gobreaker.Settings{
		Name:         "conferencing",
		MaxRequests:  config.MaxRequests,
		Interval:     config.Interval,
		Timeout:      config.Timeout,
		IsSuccessful: isVendorHealthy,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Conferencing circuit breaker changed state...")
		},
	}

	return &BreakerProvider{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// isVendorHealthy keeps caller side errors out of the failure counts.
func isVendorHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrNotFound)
}

func (v *BreakerProvider) CreateMeeting(ctx context.Context, req CreateMeetingRequest) (models.Meeting, error) {
	out, err := v.cb.Execute(func() (any, error) {
		return v.next.CreateMeeting(ctx, req)
	})
	if err != nil {
		return models.Meeting{}, err
	}
	return out.(models.Meeting), nil
}

func (v *BreakerProvider) CreateAttendee(ctx context.Context, meetingId, externalUserId string) (models.Attendee, error) {
	out, err := v.cb.Execute(func() (any, error) {
		return v.next.CreateAttendee(ctx, meetingId, externalUserId)
	})
	if err != nil {
		return models.Attendee{}, err
	}
	return out.(models.Attendee), nil
}

func (v *BreakerProvider) DeleteAttendee(ctx context.Context, meetingId, attendeeId string) error {
	_, err := v.cb.Execute(func() (any, error) {
		return nil, v.next.DeleteAttendee(ctx, meetingId, attendeeId)
	})
	return err
}

func (v *BreakerProvider) DeleteMeeting(ctx context.Context, meetingId string) error {
	_, err := v.cb.Execute(func() (any, error) {
		return nil, v.next.DeleteMeeting(ctx, meetingId)
	})
	return err
}

func (v *BreakerProvider) State() gobreaker.State {
	return v.cb.State()
}
