package room

import "time"

// ChangeType classifies one participant-level change
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

type ParticipantChange struct {
	Type        ChangeType   `json:"type"`
	Participant Participant  `json:"participant"`
	Previous    *Participant `json:"previousParticipant,omitempty"`
}

// PresenterChange is an explicit tri-state: unchanged, cleared, or set to an id.
// A plain nullable string cannot distinguish "no change" from "presenter cleared".
type PresenterChange struct {
	Changed bool    `json:"changed"`
	ID      *string `json:"id"` // nil while Changed means the presenter was cleared
}

// Unchanged reports the no-change state
func (c PresenterChange) Unchanged() bool { return !c.Changed }

// Cleared reports the presenter transitioning to none
func (c PresenterChange) Cleared() bool { return c.Changed && c.ID == nil }

type WheelStateChange struct {
	Selected WheelState `json:"selected"`
}

type TimerStateChange struct {
	Timer TimerState `json:"timer"`
}

// Diff is the minimal field-level change set between two snapshots
type Diff struct {
	HasChanges          bool                `json:"hasChanges"`
	ParticipantChanges  []ParticipantChange `json:"participantChanges,omitempty"`
	SessionActiveChange *bool               `json:"sessionActiveChange,omitempty"` // nil means unchanged
	PresenterChange     PresenterChange     `json:"currentPresenterChange"`
	WheelChange         *WheelStateChange   `json:"wheelStateChanges,omitempty"`
	TimerChange         *TimerStateChange   `json:"timerStateChanges,omitempty"`
}

// CalculateDiff compares two snapshots and returns the minimal change set.
// prev == nil means first observation: every participant is "added" and the
// presenter is recorded even when null, since null is meaningful then.
// Pure and deterministic, no I/O.
func CalculateDiff(prev, cur *Room) Diff {
	var d Diff

	if prev == nil {
		d.ParticipantChanges = make([]ParticipantChange, 0, len(cur.Participants))
		for _, p := range cur.Participants {
			d.ParticipantChanges = append(d.ParticipantChanges, ParticipantChange{Type: ChangeAdded, Participant: p})
		}
		active := cur.SessionActive()
		d.SessionActiveChange = &active
		d.PresenterChange = PresenterChange{Changed: true, ID: cur.CurrentPresenterID}
	} else {
		prevByID := make(map[string]Participant, len(prev.Participants))
		for _, p := range prev.Participants {
			prevByID[p.ID] = p
		}

		// Iterate current in order for stable diff output
		seen := make(map[string]struct{}, len(cur.Participants))
		for _, p := range cur.Participants {
			seen[p.ID] = struct{}{}
			old, ok := prevByID[p.ID]
			if !ok {
				d.ParticipantChanges = append(d.ParticipantChanges, ParticipantChange{Type: ChangeAdded, Participant: p})
				continue
			}
			if participantChanged(old, p) {
				prevCopy := old
				d.ParticipantChanges = append(d.ParticipantChanges, ParticipantChange{Type: ChangeUpdated, Participant: p, Previous: &prevCopy})
			}
		}
		for _, p := range prev.Participants {
			if _, ok := seen[p.ID]; !ok {
				prevCopy := p
				d.ParticipantChanges = append(d.ParticipantChanges, ParticipantChange{Type: ChangeRemoved, Participant: p, Previous: &prevCopy})
			}
		}

		if prev.SessionActive() != cur.SessionActive() {
			active := cur.SessionActive()
			d.SessionActiveChange = &active
		}
		if presenterChanged(prev.CurrentPresenterID, cur.CurrentPresenterID) {
			d.PresenterChange = PresenterChange{Changed: true, ID: cur.CurrentPresenterID}
		}
	}

	// Wheel/timer are derived from presenter transitions, not diffed on their own
	if d.PresenterChange.Changed {
		d.WheelChange = &WheelStateChange{Selected: cur.Wheel()}
		d.TimerChange = &TimerStateChange{Timer: cur.Timer()}
	}

	d.HasChanges = len(d.ParticipantChanges) > 0 ||
		d.SessionActiveChange != nil ||
		d.PresenterChange.Changed ||
		d.WheelChange != nil ||
		d.TimerChange != nil
	return d
}

// participantChanged is the conservative update trigger: any observable field
func participantChanged(a, b Participant) bool {
	if a.Status != b.Status || a.Role != b.Role || a.DisplayName != b.DisplayName {
		return true
	}
	if !a.LastUpdatedAt.Equal(b.LastUpdatedAt) {
		return true
	}
	return !timePtrEqual(a.LastSelectedAt, b.LastSelectedAt)
}

func presenterChanged(a, b *string) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	return *a != *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}
