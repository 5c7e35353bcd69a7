package store

import "time"

type ArchivedSelection struct {
	RoomID        string
	RoomName      string
	ParticipantID string
	SelectedAt    time.Time
	ArchivedAt    time.Time
}
