package models

// Meeting mirrors a conference hosted by the conferencing provider.
// Field names follow the provider wire shape so clients can hand the
// object straight to the client SDK.
type Meeting struct {
	MeetingId         string            `json:"MeetingId"`
	ExternalMeetingId string            `json:"ExternalMeetingId"`
	MediaRegion       string            `json:"MediaRegion"`
	MediaPlacement    map[string]string `json:"MediaPlacement,omitempty"`
}

// Attendee is the join credential of one user inside one meeting.
type Attendee struct {
	MeetingId      string `json:"MeetingId,omitempty"`
	AttendeeId     string `json:"AttendeeId"`
	ExternalUserId string `json:"ExternalUserId"`
	JoinToken      string `json:"JoinToken"`
}
