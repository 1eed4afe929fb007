package domain

import (
	"maps"
	"time"
)

type RoomID string

type RoomState string

const (
	RoomActive   RoomState = "active"
	RoomOrphaned RoomState = "orphaned"
	RoomClosed   RoomState = "closed"
)

const DefaultHostName = "Anonymous DJ"

// Room is the mutable per-room record. It is owned by the registry and only
// changed under that room's lock.
type Room struct {
	ID           RoomID               `json:"id"`
	Name         string               `json:"name"`
	HostID       MemberID             `json:"host_id"`
	HostName     string               `json:"host_name"`
	Location     *Location            `json:"location,omitempty"`
	Members      map[MemberID]*Member `json:"members"`
	CurrentTrack *Track               `json:"current_track,omitempty"`
	Playing      bool                 `json:"playing"`
	BadVoteCount int                  `json:"bad_vote_count"`
	State        RoomState            `json:"state"`
	CreatedAt    time.Time            `json:"created_at"`

	// Epoch changes every time the current track changes.
	Epoch uint64       `json:"epoch"`
	Vote  *VoteSession `json:"vote,omitempty"`
}

// Clone returns a copy that shares nothing mutable with r.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	out := *r
	out.Members = make(map[MemberID]*Member, len(r.Members))
	for id, m := range r.Members {
		mc := *m
		out.Members[id] = &mc
	}
	if r.Location != nil {
		loc := *r.Location
		out.Location = &loc
	}
	out.Vote = r.Vote.Clone()
	return &out
}

func (r *Room) HasMember(id MemberID) bool {
	_, ok := r.Members[id]
	return ok
}

func (r *Room) IsHost(id MemberID) bool {
	return r.State == RoomActive && r.HostID == id
}

// Clone for vote sessions; ballots are copied.
func (v *VoteSession) Clone() *VoteSession {
	if v == nil {
		return nil
	}
	out := *v
	out.Ballots = maps.Clone(v.Ballots)
	if out.Ballots == nil {
		out.Ballots = make(map[MemberID]Ballot)
	}
	return &out
}
