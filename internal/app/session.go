package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

// Sessions holds the DJ-side operations of a room: current track and
// play/pause. Only the host of an Active room may issue them.
type Sessions struct {
	rooms   *Registry
	player  core.Player
	catalog core.Catalog
}

func NewSessions(rooms *Registry, player core.Player, catalog core.Catalog) *Sessions {
	return &Sessions{rooms: rooms, player: player, catalog: catalog}
}

func authorizeDJ(r *domain.Room, actor domain.MemberID, op string) error {
	if r.State != domain.RoomActive {
		return fmt.Errorf("%s in %s: %w: room is %s", op, r.ID, domain.ErrInvalidState, r.State)
	}
	if r.HostID != actor {
		return fmt.Errorf("%s in %s: %w: %s is not the host", op, r.ID, domain.ErrUnauthorized, actor)
	}
	return nil
}

// SetCurrentTrack replaces the track, resets the bad-vote count and drops any
// vote in flight. The epoch bump makes pending deadline timers inert.
func (s *Sessions) SetCurrentTrack(ctx context.Context, id domain.RoomID, actor domain.MemberID, track domain.Track) (core.RoomSnapshot, error) {
	if !track.Valid() {
		return core.RoomSnapshot{}, fmt.Errorf("set track in %s: %w: track without id", id, domain.ErrInvalidInput)
	}
	var (
		snap core.RoomSnapshot
		cmd  uint64
	)
	err := s.rooms.modify(ctx, id, func(r *domain.Room) (bool, error) {
		if err := authorizeDJ(r, actor, "set track"); err != nil {
			return false, err
		}
		t := track
		r.CurrentTrack = &t
		r.BadVoteCount = 0
		r.Vote = nil
		r.Epoch++
		return true, nil
	}, func(r *domain.Room, _ bool) {
		snap = core.NewRoomSnapshot(r)
		if r.Playing {
			cmd = s.rooms.issueCommand()
		}
		s.rooms.voteEnded(r.ID)
		s.rooms.emitRoom(r, &snap)
		vs := core.NewVoteSnapshot(r, s.rooms.now())
		s.rooms.emit(core.Event{Type: core.EventVoteChanged, RoomID: r.ID, Vote: &vs, At: s.rooms.now()})
		log.Info().Str("module", "app.session").Str("room_id", string(id)).Str("track_id", string(track.ID)).Msg("track changed")
	})
	if err != nil {
		return core.RoomSnapshot{}, err
	}
	if cmd != 0 {
		s.drive(ctx, id, cmd, &track)
	}
	return snap, nil
}

func (s *Sessions) RequestPlay(ctx context.Context, id domain.RoomID, actor domain.MemberID) (core.RoomSnapshot, error) {
	return s.setPlaying(ctx, id, actor, true)
}

func (s *Sessions) RequestPause(ctx context.Context, id domain.RoomID, actor domain.MemberID) (core.RoomSnapshot, error) {
	return s.setPlaying(ctx, id, actor, false)
}

func (s *Sessions) setPlaying(ctx context.Context, id domain.RoomID, actor domain.MemberID, playing bool) (core.RoomSnapshot, error) {
	op := "pause"
	if playing {
		op = "play"
	}
	var (
		snap  core.RoomSnapshot
		track *domain.Track
		cmd   uint64
	)
	err := s.rooms.modify(ctx, id, func(r *domain.Room) (bool, error) {
		if err := authorizeDJ(r, actor, op); err != nil {
			return false, err
		}
		if playing && r.CurrentTrack == nil {
			return false, fmt.Errorf("%s in %s: %w: no track loaded", op, id, domain.ErrInvalidState)
		}
		if r.Playing == playing {
			return false, nil
		}
		r.Playing = playing
		return true, nil
	}, func(r *domain.Room, ok bool) {
		snap = core.NewRoomSnapshot(r)
		if r.CurrentTrack != nil {
			t := *r.CurrentTrack
			track = &t
		}
		if ok {
			cmd = s.rooms.issueCommand()
			s.rooms.emitRoom(r, &snap)
			log.Info().Str("module", "app.session").Str("room_id", string(id)).Bool("playing", playing).Msg("playback toggled")
		}
	})
	if err != nil {
		return core.RoomSnapshot{}, err
	}
	switch {
	case cmd == 0:
	case playing:
		s.drive(ctx, id, cmd, track)
	default:
		s.drive(ctx, id, cmd, nil)
	}
	return snap, nil
}

// drive forwards the committed playback state to the output device. It runs
// outside the room lock; a command overtaken by a later commit is skipped.
// Device errors are logged, state is already final.
func (s *Sessions) drive(ctx context.Context, id domain.RoomID, cmd uint64, track *domain.Track) {
	if s.player == nil {
		return
	}
	var err error
	ran := s.rooms.runCommand(id, cmd, func() {
		if track != nil {
			err = s.player.Play(ctx, id, *track)
		} else {
			err = s.player.Pause(ctx, id)
		}
	})
	if !ran {
		log.Debug().Str("module", "app.session").Str("room_id", string(id)).Uint64("cmd", cmd).Msg("stale device command skipped")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "app.session").Str("room_id", string(id)).Msg("output device command failed")
	}
}

// SearchTracks queries the catalog. It never touches room state.
func (s *Sessions) SearchTracks(ctx context.Context, query string) ([]domain.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" || s.catalog == nil {
		return []domain.Track{}, nil
	}
	tracks, err := s.catalog.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w: %v", query, domain.ErrUnavailable, err)
	}
	if tracks == nil {
		tracks = []domain.Track{}
	}
	return tracks, nil
}
