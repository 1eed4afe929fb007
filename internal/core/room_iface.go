package core

import (
	"cmp"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/dkeye/SoundSync/internal/domain"
)

// MemberDTO is a read-only view for APIs.
type MemberDTO struct {
	ID          domain.MemberID `json:"id"`
	DisplayName string          `json:"display_name"`
	Role        domain.Role     `json:"role"`
	JoinedAt    time.Time       `json:"joined_at"`
}

// RoomSnapshot is a point-in-time copy of a room. It is never updated in
// place; consumers replace the previous one.
type RoomSnapshot struct {
	ID           domain.RoomID    `json:"id"`
	Name         string           `json:"name"`
	HostID       domain.MemberID  `json:"host_id"`
	HostName     string           `json:"host_name"`
	State        domain.RoomState `json:"state"`
	Location     *domain.Location `json:"location,omitempty"`
	CurrentTrack *domain.Track    `json:"current_track,omitempty"`
	Playing      bool             `json:"playing"`
	Members      []MemberDTO      `json:"members"`
	MemberCount  int              `json:"member_count"`
	BadVoteCount int              `json:"bad_vote_count"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NewRoomSnapshot copies r; the caller must hold the room's lock.
func NewRoomSnapshot(r *domain.Room) RoomSnapshot {
	members := lo.MapToSlice(r.Members, func(_ domain.MemberID, m *domain.Member) MemberDTO {
		return MemberDTO{ID: m.ID, DisplayName: m.DisplayName, Role: m.Role, JoinedAt: m.JoinedAt}
	})
	slices.SortFunc(members, func(a, b MemberDTO) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	snap := RoomSnapshot{
		ID:           r.ID,
		Name:         r.Name,
		HostID:       r.HostID,
		HostName:     r.HostName,
		State:        r.State,
		Playing:      r.Playing,
		Members:      members,
		MemberCount:  len(members),
		BadVoteCount: r.BadVoteCount,
		CreatedAt:    r.CreatedAt,
	}
	if r.Location != nil {
		loc := *r.Location
		snap.Location = &loc
	}
	if r.CurrentTrack != nil {
		t := *r.CurrentTrack
		snap.CurrentTrack = &t
	}
	return snap
}

// VoteSnapshot is what the UI shows next to the skip buttons.
type VoteSnapshot struct {
	RoomID                   domain.RoomID  `json:"room_id"`
	TrackID                  domain.TrackID `json:"track_id,omitempty"`
	Open                     bool           `json:"open"`
	Passed                   bool           `json:"passed"`
	DeadlineRemainingSeconds int            `json:"deadline_remaining_seconds"`
	BadVoteCount             int            `json:"bad_vote_count"`
	UpVoteCount              int            `json:"up_vote_count"`
	RequiredVotes            int            `json:"required_votes"`
}

// NewVoteSnapshot describes r's vote state at now; the caller holds the lock.
func NewVoteSnapshot(r *domain.Room, now time.Time) VoteSnapshot {
	snap := VoteSnapshot{
		RoomID:        r.ID,
		BadVoteCount:  r.BadVoteCount,
		RequiredVotes: domain.RequiredVotes(len(r.Members)),
	}
	if r.CurrentTrack != nil {
		snap.TrackID = r.CurrentTrack.ID
	}
	v := r.Vote
	if v == nil {
		return snap
	}
	snap.UpVoteCount = v.Count(domain.BallotUp)
	snap.Passed = v.Passed
	snap.Open = !v.Closed && now.Before(v.Deadline)
	if snap.Open {
		remaining := v.Deadline.Sub(now)
		snap.DeadlineRemainingSeconds = int((remaining + time.Second - 1) / time.Second)
	}
	return snap
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	Name        string        `json:"name"`
	MemberCount int           `json:"member_count"`
}
