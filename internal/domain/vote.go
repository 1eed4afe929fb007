package domain

import "time"

type Ballot string

const (
	BallotUp   Ballot = "up"
	BallotDown Ballot = "down"
)

func (b Ballot) Valid() bool {
	return b == BallotUp || b == BallotDown
}

// VoteSession collects ballots for exactly one track of one room.
type VoteSession struct {
	RoomID    RoomID              `json:"room_id"`
	TrackID   TrackID             `json:"track_id"`
	StartedAt time.Time           `json:"started_at"`
	Deadline  time.Time           `json:"deadline"`
	Ballots   map[MemberID]Ballot `json:"ballots"`
	Closed    bool                `json:"closed"`
	Passed    bool                `json:"passed"`
}

func (v *VoteSession) Count(b Ballot) int {
	n := 0
	for _, cast := range v.Ballots {
		if cast == b {
			n++
		}
	}
	return n
}

// RequiredVotes is the Down quorum for a room of n members: ceil(n/2).
func RequiredVotes(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 1) / 2
}
