package room

import (
	"encoding/json"
	"time"
)

// ParticipantStatus tracks where a participant is in the presentation flow
type ParticipantStatus string

const (
	StatusQueued   ParticipantStatus = "queued"
	StatusActive   ParticipantStatus = "active"
	StatusFinished ParticipantStatus = "finished"
	StatusDisabled ParticipantStatus = "disabled"
)

type ParticipantRole string

const (
	RoleOrganizer ParticipantRole = "organizer"
	RoleGuest     ParticipantRole = "guest"
)

// RoomStatus is the room lifecycle state
type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomActive    RoomStatus = "active"
	RoomPaused    RoomStatus = "paused"
	RoomCompleted RoomStatus = "completed"
	RoomExpired   RoomStatus = "expired"
)

type Participant struct {
	ID             string            `json:"id"`
	DisplayName    string            `json:"displayName"`
	Status         ParticipantStatus `json:"status"`
	Role           ParticipantRole   `json:"role"`
	JoinedAt       time.Time         `json:"joinedAt"`
	LastUpdatedAt  time.Time         `json:"lastUpdatedAt"`
	LastSelectedAt *time.Time        `json:"lastSelectedAt,omitempty"`
}

// WheelConfig controls the selection wheel behavior for a room
type WheelConfig struct {
	MinSpinMS             int  `json:"minSpinDurationMs"`
	MaxSpinMS             int  `json:"maxSpinDurationMs"`
	ExcludeFinished       bool `json:"excludeFinished"`
	AllowRepeatSelections bool `json:"allowRepeatSelections"`
}

// SelectionRecord is one entry of the append-only selection log
type SelectionRecord struct {
	ParticipantID string    `json:"participantId"`
	SelectedAt    time.Time `json:"selectedAt"`
}

// Room is the authoritative snapshot passed between layers.
// ID must be a version-4 UUID; the transport group name is derived from it.
type Room struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Status             RoomStatus        `json:"status"`
	Participants       []Participant     `json:"participants"`
	OrganizerID        string            `json:"organizerId"`
	CreatedAt          time.Time         `json:"createdAt"`
	LastUpdatedAt      time.Time         `json:"lastUpdatedAt"`
	ExpiresAt          time.Time         `json:"expiresAt"`
	CurrentPresenterID *string           `json:"currentPresenterId,omitempty"`
	WheelConfig        WheelConfig       `json:"wheelConfig"`
	SelectionHistory   []SelectionRecord `json:"selectionHistory,omitempty"`
}

// WheelState is derived from the presenter, never stored independently
type WheelState struct {
	SelectedParticipantID string `json:"selectedParticipantId,omitempty"`
}

// TimerState is derived from the presenter, never stored independently
type TimerState struct {
	Active        bool   `json:"active"`
	ParticipantID string `json:"participantId,omitempty"`
}

// MarshalBinary lets the room be stored directly in redis
func (r Room) MarshalBinary() ([]byte, error) { return json.Marshal(r) }

// UnmarshalBinary restores a room from its redis value
func (r *Room) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, r) }

// SessionActive reports whether the room is in its live phase
func (r *Room) SessionActive() bool { return r.Status == RoomActive }

// Wheel derives the wheel state from the current presenter
func (r *Room) Wheel() WheelState {
	if r.CurrentPresenterID == nil {
		return WheelState{}
	}
	return WheelState{SelectedParticipantID: *r.CurrentPresenterID}
}

// Timer derives the timer state from the current presenter
func (r *Room) Timer() TimerState {
	if r.CurrentPresenterID == nil {
		return TimerState{}
	}
	return TimerState{Active: true, ParticipantID: *r.CurrentPresenterID}
}

// Clone returns a deep copy so cached snapshots never alias caller state
func (r *Room) Clone() *Room {
	cp := *r
	if r.CurrentPresenterID != nil {
		id := *r.CurrentPresenterID
		cp.CurrentPresenterID = &id
	}
	cp.Participants = make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		if p.LastSelectedAt != nil {
			t := *p.LastSelectedAt
			p.LastSelectedAt = &t
		}
		cp.Participants[i] = p
	}
	if r.SelectionHistory != nil {
		cp.SelectionHistory = append([]SelectionRecord(nil), r.SelectionHistory...)
	}
	return &cp
}
