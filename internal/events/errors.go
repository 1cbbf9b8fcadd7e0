package events

import "errors"

// Sentinel errors returned by the events store and service.
var (
	ErrEventNotFound   = errors.New("event not found")
	ErrTitleExists     = errors.New("event title already in use")
	ErrReportNotFound  = errors.New("report not found")
	ErrSpeakerNotFound = errors.New("speaker not found")
	ErrNotSpeaker      = errors.New("user does not hold the speaker role")
	ErrPastDate        = errors.New("event date is in the past")
	ErrInvalidQuery    = errors.New("invalid query")
)
