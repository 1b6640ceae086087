package registry

import (
	"errors"
	"sync"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/samber/lo"
)

// ErrUnknownMeeting is returned by attendee operations against a meeting
// the registry does not hold.
var ErrUnknownMeeting = errors.New("unknown meeting")

type MeetingSummary struct {
	Meeting       models.Meeting
	AttendeeCount int
	UserIDs       []string
}

type meetingEntry struct {
	meeting models.Meeting

	// Attendees keyed by user id, plus a reverse index by attendee id.
	attendees  map[string]models.Attendee
	byAttendee map[string]string
	order      []string

	// Held across the attendee factory so creation is check-and-set per meeting.
	joinMu sync.Mutex
}

func newMeetingEntry(meeting models.Meeting) *meetingEntry {
	return &meetingEntry{
		meeting:    meeting,
		attendees:  make(map[string]models.Attendee),
		byAttendee: make(map[string]string),
	}
}

func (v *meetingEntry) removeUser(userId string) (models.Attendee, bool) {
	attendee, ok := v.attendees[userId]
	if !ok {
		return attendee, false
	}
	delete(v.attendees, userId)
	delete(v.byAttendee, attendee.AttendeeId)
	v.order = lo.Without(v.order, userId)
	return attendee, true
}

// Registry is the process-local mirror of meetings and attendees known to
// the conferencing provider. The zero value is not usable, use New.
type Registry struct {
	mu       sync.RWMutex
	meetings map[string]*meetingEntry
	order    []string
}

func New() *Registry {
	return &Registry{
		meetings: make(map[string]*meetingEntry),
	}
}

// PutMeeting inserts or replaces a meeting. Replacing resets its attendee table.
func (v *Registry) PutMeeting(meeting models.Meeting) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.meetings[meeting.MeetingId]; !ok {
		v.order = append(v.order, meeting.MeetingId)
	}
	v.meetings[meeting.MeetingId] = newMeetingEntry(meeting)
}

func (v *Registry) GetMeeting(meetingId string) (models.Meeting, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entry, ok := v.meetings[meetingId]
	if !ok {
		return models.Meeting{}, false
	}
	return entry.meeting, true
}

// ListMeetings returns a snapshot in meeting insertion order.
func (v *Registry) ListMeetings() []MeetingSummary {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]MeetingSummary, 0, len(v.order))
	for _, id := range v.order {
		entry := v.meetings[id]
		out = append(out, MeetingSummary{
			Meeting:       entry.meeting,
			AttendeeCount: len(entry.attendees),
			UserIDs:       append([]string{}, entry.order...),
		})
	}
	return out
}

// RemoveMeeting drops the meeting together with all of its attendees.
func (v *Registry) RemoveMeeting(meetingId string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.meetings[meetingId]; !ok {
		return
	}
	delete(v.meetings, meetingId)
	v.order = lo.Without(v.order, meetingId)
}

// GetOrCreateAttendee returns the attendee stored for the user, or calls
// factory and stores its result. The factory is never called on a hit and
// never called twice concurrently for the same meeting.
func (v *Registry) GetOrCreateAttendee(
	meetingId, userId string,
	factory func() (models.Attendee, error),
) (models.Attendee, bool, error) {
	v.mu.RLock()
	entry, ok := v.meetings[meetingId]
	v.mu.RUnlock()
	if !ok {
		return models.Attendee{}, false, ErrUnknownMeeting
	}

	entry.joinMu.Lock()
	defer entry.joinMu.Unlock()

	v.mu.RLock()
	if v.meetings[meetingId] != entry {
		v.mu.RUnlock()
		return models.Attendee{}, false, ErrUnknownMeeting
	}
	if existing, ok := entry.attendees[userId]; ok {
		v.mu.RUnlock()
		return existing, true, nil
	}
	v.mu.RUnlock()

	attendee, err := factory()
	if err != nil {
		return models.Attendee{}, false, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// The meeting may have ended or been replaced while the factory ran.
	if v.meetings[meetingId] != entry {
		return models.Attendee{}, false, ErrUnknownMeeting
	}
	entry.attendees[userId] = attendee
	entry.byAttendee[attendee.AttendeeId] = userId
	entry.order = append(entry.order, userId)
	return attendee, false, nil
}

func (v *Registry) RemoveAttendee(meetingId, userId string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if entry, ok := v.meetings[meetingId]; ok {
		entry.removeUser(userId)
	}
}

// RemoveAttendeeByID removes an attendee by the provider assigned id and
// reports which user it belonged to.
func (v *Registry) RemoveAttendeeByID(meetingId, attendeeId string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.meetings[meetingId]
	if !ok {
		return "", false
	}
	userId, ok := entry.byAttendee[attendeeId]
	if !ok {
		return "", false
	}
	entry.removeUser(userId)
	return userId, true
}
