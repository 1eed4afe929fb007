package core

import (
	"time"

	"github.com/dkeye/SoundSync/internal/domain"
)

type EventType string

const (
	EventRoomChanged   EventType = "room_state"
	EventRoomClosed    EventType = "room_closed"
	EventVoteChanged   EventType = "vote_state"
	EventVoteClosed    EventType = "vote_closed"
	EventSkipRequested EventType = "skip_requested"
)

// Event is immutable once published. Room and Vote are full snapshots,
// never deltas.
type Event struct {
	Type   EventType     `json:"type"`
	RoomID domain.RoomID `json:"room_id"`
	Room   *RoomSnapshot `json:"room,omitempty"`
	Vote   *VoteSnapshot `json:"vote,omitempty"`
	At     time.Time     `json:"at"`
}
