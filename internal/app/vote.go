package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

const DefaultVoteWindow = 10 * time.Second

// deadline is the armed timeout of one room's open vote.
type deadline struct {
	epoch uint64
	track domain.TrackID
	stop  func() bool
}

// VoteCoordinator runs the per-track skip vote. The session itself lives on
// the room and is only touched under the room's lock; the coordinator only
// tracks the pending deadline timers.
type VoteCoordinator struct {
	rooms  *Registry
	window time.Duration
	// afterFunc is swapped in tests to control deadline timers.
	afterFunc func(d time.Duration, f func()) (stop func() bool)

	mu        sync.Mutex
	deadlines map[domain.RoomID]deadline
}

func NewVoteCoordinator(rooms *Registry, window time.Duration) *VoteCoordinator {
	if window <= 0 {
		window = DefaultVoteWindow
	}
	v := &VoteCoordinator{
		rooms:  rooms,
		window: window,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		deadlines: make(map[domain.RoomID]deadline),
	}
	rooms.onVoteEnded(v.cancel)
	return v
}

// CastVote records one immutable ballot for the room's current track.
func (v *VoteCoordinator) CastVote(ctx context.Context, member domain.MemberID, id domain.RoomID, ballot domain.Ballot) (core.VoteSnapshot, error) {
	if !ballot.Valid() {
		return core.VoteSnapshot{}, fmt.Errorf("cast vote: %w: ballot %q", domain.ErrInvalidInput, ballot)
	}

	var (
		snap    core.VoteSnapshot
		opened  bool
		skipped bool
	)
	err := v.rooms.modify(ctx, id, func(r *domain.Room) (bool, error) {
		if !r.HasMember(member) {
			return false, fmt.Errorf("cast vote in %s: %w: member %s", id, domain.ErrNotFound, member)
		}
		if r.CurrentTrack == nil {
			return false, fmt.Errorf("cast vote in %s: %w: nothing playing", id, domain.ErrInvalidState)
		}
		now := v.rooms.now()
		s := r.Vote
		if s == nil || s.TrackID != r.CurrentTrack.ID {
			s = &domain.VoteSession{
				RoomID:    r.ID,
				TrackID:   r.CurrentTrack.ID,
				StartedAt: now,
				Deadline:  now.Add(v.window),
				Ballots:   make(map[domain.MemberID]domain.Ballot),
			}
			r.Vote = s
			r.BadVoteCount = 0
			opened = true
		}
		if s.Closed || !now.Before(s.Deadline) {
			return false, fmt.Errorf("cast vote in %s: %w", id, domain.ErrVotingClosed)
		}
		if _, ok := s.Ballots[member]; ok {
			return false, fmt.Errorf("cast vote in %s: %w", id, domain.ErrAlreadyVoted)
		}
		s.Ballots[member] = ballot
		r.BadVoteCount = s.Count(domain.BallotDown)
		skipped = resolveQuorum(r)
		return true, nil
	}, func(r *domain.Room, _ bool) {
		now := v.rooms.now()
		snap = core.NewVoteSnapshot(r, now)
		if opened && !r.Vote.Closed {
			v.armDeadline(r)
		}
		v.rooms.emitRoom(r, nil)
		if skipped {
			v.cancel(r.ID)
			v.rooms.emitSkip(r)
		}
		log.Debug().Str("module", "app.vote").Str("room_id", string(r.ID)).Str("member_id", string(member)).
			Str("ballot", string(ballot)).Int("bad_votes", snap.BadVoteCount).Int("required", snap.RequiredVotes).Msg("ballot cast")
	})
	if err != nil {
		return core.VoteSnapshot{}, err
	}
	return snap, nil
}

// VoteState reports the room's vote for display.
func (v *VoteCoordinator) VoteState(_ context.Context, id domain.RoomID) (core.VoteSnapshot, error) {
	var snap core.VoteSnapshot
	err := v.rooms.view(id, func(r *domain.Room) error {
		snap = core.NewVoteSnapshot(r, v.rooms.now())
		return nil
	})
	return snap, err
}

// armDeadline schedules the timeout for the session just opened on r. The
// callback carries the epoch and track it was armed for and does nothing if
// either moved on.
func (v *VoteCoordinator) armDeadline(r *domain.Room) {
	id, epoch, track := r.ID, r.Epoch, r.Vote.TrackID
	stop := v.afterFunc(r.Vote.Deadline.Sub(v.rooms.now()), func() { v.expire(id, epoch, track) })

	v.mu.Lock()
	defer v.mu.Unlock()
	if old, ok := v.deadlines[id]; ok {
		old.stop()
	}
	v.deadlines[id] = deadline{epoch: epoch, track: track, stop: stop}
}

// cancel stops the pending deadline of room id, if any.
func (v *VoteCoordinator) cancel(id domain.RoomID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if d, ok := v.deadlines[id]; ok {
		d.stop()
		delete(v.deadlines, id)
	}
}

func (v *VoteCoordinator) pending(id domain.RoomID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.deadlines[id]
	return ok
}

func (v *VoteCoordinator) expire(id domain.RoomID, epoch uint64, track domain.TrackID) {
	v.mu.Lock()
	if d, ok := v.deadlines[id]; ok && d.epoch == epoch && d.track == track {
		delete(v.deadlines, id)
	}
	v.mu.Unlock()

	var closed bool
	err := v.rooms.modify(context.Background(), id, func(r *domain.Room) (bool, error) {
		s := r.Vote
		if r.Epoch != epoch || s == nil || s.TrackID != track || s.Closed {
			return false, nil
		}
		s.Closed = true
		closed = true
		return true, nil
	}, func(r *domain.Room, _ bool) {
		if !closed {
			log.Debug().Str("module", "app.vote").Str("room_id", string(id)).Msg("stale vote deadline ignored")
			return
		}
		now := v.rooms.now()
		snap := core.NewVoteSnapshot(r, now)
		v.rooms.emit(core.Event{Type: core.EventVoteClosed, RoomID: r.ID, Vote: &snap, At: now})
		log.Info().Str("module", "app.vote").Str("room_id", string(id)).Int("bad_votes", snap.BadVoteCount).Msg("vote timed out")
	})
	if err != nil {
		log.Debug().Err(err).Str("module", "app.vote").Str("room_id", string(id)).Msg("vote deadline on missing room")
	}
}

// resolveQuorum closes r's open vote once Down ballots reach ceil(N/2).
// It reports true only on the transition, so a skip is requested once.
func resolveQuorum(r *domain.Room) bool {
	s := r.Vote
	if s == nil || s.Closed {
		return false
	}
	required := domain.RequiredVotes(len(r.Members))
	if required == 0 || s.Count(domain.BallotDown) < required {
		return false
	}
	s.Closed = true
	s.Passed = true
	return true
}
