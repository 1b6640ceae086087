package services

import (
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HistoryRecorder keeps an audit trail of meetings beyond the process lifetime.
type HistoryRecorder interface {
	RecordCreated(meeting models.Meeting, hostUserId string) error
	RecordJoined(meetingId string) error
	RecordEnded(meetingId string) error
	ListHistory(take, offset int) ([]models.MeetingHistory, int64, error)
}

type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (v *HistoryStore) RecordCreated(meeting models.Meeting, hostUserId string) error {
	placement := datatypes.JSONMap{}
	for key, value := range meeting.MediaPlacement {
		placement[key] = value
	}

	record := models.MeetingHistory{
		MeetingID:         meeting.MeetingId,
		ExternalMeetingID: meeting.ExternalMeetingId,
		MediaRegion:       meeting.MediaRegion,
		HostUserID:        hostUserId,
		AttendeeCount:     1,
		Placement:         placement,
	}
	return v.db.Create(&record).Error
}

func (v *HistoryStore) RecordJoined(meetingId string) error {
	return v.db.Model(&models.MeetingHistory{}).
		Where("meeting_id = ?", meetingId).
		UpdateColumn("attendee_count", gorm.Expr("attendee_count + ?", 1)).Error
}

func (v *HistoryStore) RecordEnded(meetingId string) error {
	return v.db.Model(&models.MeetingHistory{}).
		Where("meeting_id = ? AND ended_at IS NULL", meetingId).
		Update("ended_at", lo.ToPtr(time.Now())).Error
}

func (v *HistoryStore) ListHistory(take, offset int) ([]models.MeetingHistory, int64, error) {
	if take > 100 || take <= 0 {
		take = 100
	}

	var count int64
	if err := v.db.Model(&models.MeetingHistory{}).Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var records []models.MeetingHistory
	if err := v.db.
		Limit(take).
		Offset(offset).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return records, count, err
	}
	return records, count, nil
}
