package room

import "time"

// Event names on the wire. Clients subscribe by name inside a room group.
const (
	EventConnected         = "connected" // join ack, sent once per connection
	EventRoomStateUpdate   = "room_state_update"
	EventParticipantUpdate = "participant_update"
	EventWheelSpin         = "wheel_spin"
	EventTimerUpdate       = "timer_update"
	EventRoomMessage       = "room_message"
	EventConnectionError   = "connection_error"
)

// StateEventPayload is the full-state broadcast payload. Diffing decides
// whether to send; the content sent is always the complete snapshot.
type StateEventPayload struct {
	RoomID           string        `json:"roomId"`
	Participants     []Participant `json:"participants"`
	CurrentPresenter *string       `json:"currentPresenter,omitempty"`
	WheelState       WheelState    `json:"wheelState"`
	TimerState       TimerState    `json:"timerState"`
	SessionActive    bool          `json:"sessionActive"`
	Timestamp        time.Time     `json:"timestamp"`
}

type ParticipantEventPayload struct {
	RoomID      string      `json:"roomId"`
	Participant Participant `json:"participant"`
	Action      ChangeType  `json:"action"`
	Timestamp   time.Time   `json:"timestamp"`
}

type WheelSpinPayload struct {
	RoomID         string    `json:"roomId"`
	SelectedID     string    `json:"selectedParticipantId"`
	SpinDurationMS int       `json:"spinDurationMs"`
	Timestamp      time.Time `json:"timestamp"`
}

type TimerUpdatePayload struct {
	RoomID    string     `json:"roomId"`
	Timer     TimerState `json:"timer"`
	Timestamp time.Time  `json:"timestamp"`
}

type RoomMessagePayload struct {
	RoomID    string    `json:"roomId"`
	From      string    `json:"from,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	RoomID    string    `json:"roomId,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// StateEvent projects a full snapshot to its wire payload
func StateEvent(r *Room) StateEventPayload {
	return StateEventPayload{
		RoomID:           r.ID,
		Participants:     r.Participants,
		CurrentPresenter: r.CurrentPresenterID,
		WheelState:       r.Wheel(),
		TimerState:       r.Timer(),
		SessionActive:    r.SessionActive(),
		Timestamp:        time.Now().UTC(),
	}
}

// ParticipantEvent projects a single-entity change to its wire payload
func ParticipantEvent(roomID string, p Participant, action ChangeType) ParticipantEventPayload {
	return ParticipantEventPayload{
		RoomID:      roomID,
		Participant: p,
		Action:      action,
		Timestamp:   time.Now().UTC(),
	}
}
