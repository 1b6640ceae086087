package services

import (
	"fmt"

	"github.com/google/uuid"
)

func shortToken(length int) string {
	return uuid.NewString()[:length]
}

func NewExternalMeetingID() string {
	return fmt.Sprintf("Meeting-%s", shortToken(5))
}

func NewHostUserID() string {
	return fmt.Sprintf("host-%s", shortToken(8))
}

func NewLegacyUserID() string {
	return fmt.Sprintf("user-%s", shortToken(8))
}
