package services

import "errors"

var (
	ErrMissingParameter = errors.New("missing required parameter")
	ErrMeetingNotFound  = errors.New("meeting does not exist or has already ended")
)
