package domain

import "time"

// Event is a conference event row in the event table.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

// Report is a talk scheduled for an event. SpeakerID is nil until an
// organizer assigns a speaker; a user counts as an event's speaker iff
// at least one of its reports names them.
type Report struct {
	ID        int64  `json:"id"`
	Topic     string `json:"topic"`
	EventID   int64  `json:"event_id"`
	SpeakerID *int64 `json:"speaker_id"`
}
