package models

import (
	"time"

	"gorm.io/datatypes"
)

// MeetingHistory is the persisted trace of a meeting. The live registry
// never reads it back.
type MeetingHistory struct {
	BaseModel

	EndedAt *time.Time `json:"ended_at"`

	MeetingID         string            `json:"meeting_id" gorm:"uniqueIndex;size:256"`
	ExternalMeetingID string            `json:"external_meeting_id"`
	MediaRegion       string            `json:"media_region"`
	HostUserID        string            `json:"host_user_id"`
	AttendeeCount     int               `json:"attendee_count"`
	Placement         datatypes.JSONMap `json:"placement"`
}
