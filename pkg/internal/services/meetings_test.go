package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/conferencing"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeProvider counts calls and fails the operations listed in failOn.
type fakeProvider struct {
	mu     sync.Mutex
	failOn map[string]error
	delay  time.Duration

	meetings  int32
	attendees int32
	calls     map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failOn: make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (v *fakeProvider) record(op string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls[op]++
	return v.failOn[op]
}

func (v *fakeProvider) fail(op string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failOn[op] = err
}

func (v *fakeProvider) count(op string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[op]
}

func (v *fakeProvider) CreateMeeting(ctx context.Context, req conferencing.CreateMeetingRequest) (models.Meeting, error) {
	if err := v.record("CreateMeeting"); err != nil {
		return models.Meeting{}, err
	}
	n := atomic.AddInt32(&v.meetings, 1)
	return models.Meeting{
		MeetingId:         fmt.Sprintf("meeting-%d", n),
		ExternalMeetingId: req.ExternalMeetingId,
		MediaRegion:       req.MediaRegion,
	}, nil
}

func (v *fakeProvider) CreateAttendee(ctx context.Context, meetingId, externalUserId string) (models.Attendee, error) {
	if v.delay > 0 {
		time.Sleep(v.delay)
	}
	if err := v.record("CreateAttendee"); err != nil {
		return models.Attendee{}, err
	}
	n := atomic.AddInt32(&v.attendees, 1)
	return models.Attendee{
		MeetingId:      meetingId,
		AttendeeId:     fmt.Sprintf("attendee-%d", n),
		ExternalUserId: externalUserId,
		JoinToken:      fmt.Sprintf("token-%d", n),
	}, nil
}

func (v *fakeProvider) DeleteAttendee(ctx context.Context, meetingId, attendeeId string) error {
	return v.record("DeleteAttendee")
}

func (v *fakeProvider) DeleteMeeting(ctx context.Context, meetingId string) error {
	return v.record("DeleteMeeting")
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) RecordCreated(meeting models.Meeting, hostUserId string) error {
	return m.Called(meeting, hostUserId).Error(0)
}

func (m *mockHistory) RecordJoined(meetingId string) error {
	return m.Called(meetingId).Error(0)
}

func (m *mockHistory) RecordEnded(meetingId string) error {
	return m.Called(meetingId).Error(0)
}

func (m *mockHistory) ListHistory(take, offset int) ([]models.MeetingHistory, int64, error) {
	args := m.Called(take, offset)
	return args.Get(0).([]models.MeetingHistory), args.Get(1).(int64), args.Error(2)
}

func newTestGateway(provider conferencing.Provider) (*Gateway, *registry.Registry) {
	reg := registry.New()
	return NewGateway(reg, provider, nil, GatewayConfig{MediaRegion: "us-east-1"}), reg
}

func TestGateway_CreateMeeting(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)

	meeting, host, err := gw.CreateMeeting(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, meeting.MeetingId)
	assert.Equal(t, "us-east-1", meeting.MediaRegion)
	assert.Regexp(t, `^Meeting-[0-9a-f]{5}$`, meeting.ExternalMeetingId)
	assert.Equal(t, "alice", host.ExternalUserId)

	list := gw.ListMeetings()
	require.Len(t, list, 1)
	assert.Equal(t, meeting.MeetingId, list[0].Meeting.MeetingId)
	assert.Equal(t, 1, list[0].AttendeeCount)
	assert.Equal(t, []string{"alice"}, list[0].UserIDs)
}

func TestGateway_CreateMeetingSynthesizesHost(t *testing.T) {
	gw, _ := newTestGateway(newFakeProvider())

	_, host, err := gw.CreateMeeting(context.Background(), "")
	require.NoError(t, err)
	assert.Regexp(t, `^host-[0-9a-f]{8}$`, host.ExternalUserId)

	list := gw.ListMeetings()
	assert.Equal(t, []string{host.ExternalUserId}, list[0].UserIDs)
}

func TestGateway_CreateMeetingFailures(t *testing.T) {
	t.Run("meeting", func(t *testing.T) {
		provider := newFakeProvider()
		provider.fail("CreateMeeting", errors.New("vendor down"))
		gw, _ := newTestGateway(provider)

		_, _, err := gw.CreateMeeting(context.Background(), "alice")
		var external *conferencing.ExternalServiceError
		require.ErrorAs(t, err, &external)
		assert.Equal(t, "create meeting", external.Op)
		assert.Empty(t, gw.ListMeetings())
		assert.Zero(t, provider.count("CreateAttendee"))
	})

	t.Run("host attendee", func(t *testing.T) {
		provider := newFakeProvider()
		provider.fail("CreateAttendee", errors.New("quota exceeded"))
		gw, _ := newTestGateway(provider)

		_, _, err := gw.CreateMeeting(context.Background(), "alice")
		var external *conferencing.ExternalServiceError
		require.ErrorAs(t, err, &external)
		assert.Equal(t, "create attendee", external.Op)
		assert.ErrorContains(t, err, "quota exceeded")
		assert.Empty(t, gw.ListMeetings())
		assert.Equal(t, 1, provider.count("DeleteMeeting"))
	})
}

func TestGateway_JoinMeetingIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	createdBefore := provider.count("CreateAttendee")

	first, existed, err := gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	require.NoError(t, err)
	assert.False(t, existed)

	for i := 0; i < 4; i++ {
		again, existed, err := gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
		require.NoError(t, err)
		assert.True(t, existed)
		assert.Equal(t, first.AttendeeId, again.AttendeeId)
	}

	assert.Equal(t, createdBefore+1, provider.count("CreateAttendee"))
	list := gw.ListMeetings()
	assert.Equal(t, 2, list[0].AttendeeCount)
	assert.Equal(t, []string{"alice", "bob"}, list[0].UserIDs)
}

func TestGateway_JoinMeetingHostRejoins(t *testing.T) {
	gw, _ := newTestGateway(newFakeProvider())
	ctx := context.Background()

	meeting, host, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)

	attendee, existed, err := gw.JoinMeeting(ctx, meeting.MeetingId, "alice")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, host, attendee)
}

func TestGateway_ConcurrentJoinCreatesOnce(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	provider.delay = 5 * time.Millisecond
	createdBefore := provider.count("CreateAttendee")

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attendee, _, err := gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
			assert.NoError(t, err)
			ids[i] = attendee.AttendeeId
		}(i)
	}
	wg.Wait()

	assert.Equal(t, createdBefore+1, provider.count("CreateAttendee"))
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGateway_JoinMeetingValidation(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	_, _, err := gw.JoinMeeting(ctx, "", "bob")
	assert.ErrorIs(t, err, ErrMissingParameter)
	_, _, err = gw.JoinMeeting(ctx, "meeting-1", "")
	assert.ErrorIs(t, err, ErrMissingParameter)

	_, _, err = gw.JoinMeeting(ctx, "does-not-exist", "bob")
	assert.ErrorIs(t, err, ErrMeetingNotFound)
	assert.Zero(t, provider.count("CreateAttendee"))
	assert.Empty(t, gw.ListMeetings())
}

func TestGateway_JoinMeetingExternalFailureLeavesRegistry(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	before := gw.ListMeetings()

	provider.fail("CreateAttendee", errors.New("throttled"))
	_, _, err = gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	var external *conferencing.ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, before, gw.ListMeetings())

	provider.fail("CreateAttendee", nil)
	_, existed, err := gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestGateway_CreateLegacyAttendeeIsNotIdempotent(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	before := gw.ListMeetings()

	first, err := gw.CreateLegacyAttendee(ctx, meeting.MeetingId)
	require.NoError(t, err)
	second, err := gw.CreateLegacyAttendee(ctx, meeting.MeetingId)
	require.NoError(t, err)

	assert.NotEqual(t, first.AttendeeId, second.AttendeeId)
	assert.NotEqual(t, first.ExternalUserId, second.ExternalUserId)
	assert.Regexp(t, `^user-[0-9a-f]{8}$`, first.ExternalUserId)
	assert.Equal(t, 3, provider.count("CreateAttendee"))
	assert.Equal(t, before, gw.ListMeetings())

	_, err = gw.CreateLegacyAttendee(ctx, "")
	assert.ErrorIs(t, err, ErrMissingParameter)
	_, err = gw.CreateLegacyAttendee(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrMeetingNotFound)
}

func TestGateway_LeaveMeeting(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	bob, _, err := gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	require.NoError(t, err)
	carol, _, err := gw.JoinMeeting(ctx, meeting.MeetingId, "carol")
	require.NoError(t, err)

	require.NoError(t, gw.LeaveMeeting(ctx, meeting.MeetingId, bob.AttendeeId, "bob"))
	list := gw.ListMeetings()
	assert.Equal(t, 2, list[0].AttendeeCount)
	assert.Equal(t, []string{"alice", "carol"}, list[0].UserIDs)

	require.NoError(t, gw.LeaveMeeting(ctx, meeting.MeetingId, carol.AttendeeId, ""))
	list = gw.ListMeetings()
	assert.Equal(t, []string{"alice"}, list[0].UserIDs)
	assert.Equal(t, 2, provider.count("DeleteAttendee"))
}

func TestGateway_LeaveMeetingFailures(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	assert.ErrorIs(t, gw.LeaveMeeting(ctx, "", "a", "bob"), ErrMissingParameter)
	assert.ErrorIs(t, gw.LeaveMeeting(ctx, "m", "", "bob"), ErrMissingParameter)
	assert.ErrorIs(t, gw.LeaveMeeting(ctx, "does-not-exist", "a", "bob"), ErrMeetingNotFound)
	assert.Zero(t, provider.count("DeleteAttendee"))

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	bob, _, err := gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	require.NoError(t, err)
	before := gw.ListMeetings()

	provider.fail("DeleteAttendee", errors.New("vendor down"))
	err = gw.LeaveMeeting(ctx, meeting.MeetingId, bob.AttendeeId, "bob")
	var external *conferencing.ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, before, gw.ListMeetings())
}

func TestGateway_EndMeetingCascades(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	other, _, err := gw.CreateMeeting(ctx, "dave")
	require.NoError(t, err)
	bob, _, err := gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	require.NoError(t, err)

	require.NoError(t, gw.EndMeeting(ctx, meeting.MeetingId))

	list := gw.ListMeetings()
	require.Len(t, list, 1)
	assert.Equal(t, other.MeetingId, list[0].Meeting.MeetingId)

	_, _, err = gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	assert.ErrorIs(t, err, ErrMeetingNotFound)
	assert.ErrorIs(t, gw.LeaveMeeting(ctx, meeting.MeetingId, bob.AttendeeId, "bob"), ErrMeetingNotFound)
	assert.ErrorIs(t, gw.EndMeeting(ctx, meeting.MeetingId), ErrMeetingNotFound)
}

func TestGateway_EndMeetingFailures(t *testing.T) {
	provider := newFakeProvider()
	gw, _ := newTestGateway(provider)
	ctx := context.Background()

	assert.ErrorIs(t, gw.EndMeeting(ctx, ""), ErrMissingParameter)
	assert.ErrorIs(t, gw.EndMeeting(ctx, "does-not-exist"), ErrMeetingNotFound)

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	before := gw.ListMeetings()

	provider.fail("DeleteMeeting", errors.New("vendor down"))
	err = gw.EndMeeting(ctx, meeting.MeetingId)
	var external *conferencing.ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, before, gw.ListMeetings())
}

func TestGateway_RecordsHistory(t *testing.T) {
	history := new(mockHistory)
	gw := NewGateway(registry.New(), newFakeProvider(), history, GatewayConfig{MediaRegion: "us-east-1"})
	ctx := context.Background()

	history.On("RecordCreated", mock.AnythingOfType("models.Meeting"), "alice").Return(nil).Once()
	history.On("RecordJoined", "meeting-1").Return(errors.New("database gone")).Once()
	history.On("RecordEnded", "meeting-1").Return(nil).Once()

	meeting, _, err := gw.CreateMeeting(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "meeting-1", meeting.MeetingId)

	_, _, err = gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	require.NoError(t, err)
	_, _, err = gw.JoinMeeting(ctx, meeting.MeetingId, "bob")
	require.NoError(t, err)

	require.NoError(t, gw.EndMeeting(ctx, meeting.MeetingId))
	history.AssertExpectations(t)
}

func TestGateway_Timeout(t *testing.T) {
	provider := conferencing.NewMemoryProvider("secret", time.Hour)
	gw := NewGateway(registry.New(), provider, nil, GatewayConfig{
		MediaRegion: "us-east-1",
		Timeout:     time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := gw.CreateMeeting(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gw.ListMeetings())
}
