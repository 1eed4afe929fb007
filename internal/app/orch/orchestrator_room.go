package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

// Create opens a room hosted by host, leaving the host's current room first.
func (o *Orchestrator) Create(
	ctx context.Context,
	host domain.Identity,
	name string,
	track *domain.Track,
	loc *domain.Location,
) (core.RoomSnapshot, error) {
	if !host.CanHost {
		return core.RoomSnapshot{}, fmt.Errorf("create room: %w: member %s cannot host", domain.ErrUnauthorized, host.MemberID)
	}
	from, err := o.leaveCurrent(ctx, host.MemberID, "")
	if err != nil {
		return core.RoomSnapshot{}, err
	}
	id, err := o.Rooms.CreateRoom(ctx, host, name, track, loc)
	if err != nil {
		if from != "" {
			o.moved(host.MemberID, from, "")
		}
		return core.RoomSnapshot{}, err
	}
	o.moved(host.MemberID, from, id)
	return o.Rooms.GetRoom(ctx, id)
}

// Join moves member into id. A member already in another room leaves it
// first; joining the current room again is a no-op.
func (o *Orchestrator) Join(ctx context.Context, member domain.Identity, id domain.RoomID) (core.RoomSnapshot, error) {
	target, err := o.Rooms.GetRoom(ctx, id)
	if err != nil {
		return core.RoomSnapshot{}, err
	}
	if target.State != domain.RoomActive && !isMember(target, member.MemberID) {
		return core.RoomSnapshot{}, fmt.Errorf("join room %s: %w: room is %s", id, domain.ErrInvalidState, target.State)
	}
	from, err := o.leaveCurrent(ctx, member.MemberID, id)
	if err != nil {
		return core.RoomSnapshot{}, err
	}
	snap, err := o.Rooms.JoinRoom(ctx, member, id)
	if err != nil {
		if from != "" {
			o.moved(member.MemberID, from, "")
		}
		return core.RoomSnapshot{}, err
	}
	o.moved(member.MemberID, from, id)
	return snap, nil
}

// Leave takes member out of whatever room it is in and returns that room.
func (o *Orchestrator) Leave(ctx context.Context, member domain.MemberID) (domain.RoomID, error) {
	id, ok := o.Rooms.RoomOf(member)
	if !ok {
		return "", fmt.Errorf("leave: %w: member %s is in no room", domain.ErrNotFound, member)
	}
	if err := o.LeaveRoom(ctx, member, id); err != nil {
		return "", err
	}
	return id, nil
}

// LeaveRoom takes member out of room id.
func (o *Orchestrator) LeaveRoom(ctx context.Context, member domain.MemberID, id domain.RoomID) error {
	if err := o.Rooms.LeaveRoom(ctx, member, id); err != nil {
		return err
	}
	o.moved(member, id, "")
	return nil
}

func (o *Orchestrator) Close(ctx context.Context, actor domain.MemberID, id domain.RoomID) error {
	return o.Rooms.CloseRoom(ctx, actor, id)
}

// leaveCurrent leaves member's room unless it is keep, and returns the room
// it left.
func (o *Orchestrator) leaveCurrent(ctx context.Context, member domain.MemberID, keep domain.RoomID) (domain.RoomID, error) {
	from, ok := o.Rooms.RoomOf(member)
	if !ok || from == keep {
		return "", nil
	}
	err := o.Rooms.LeaveRoom(ctx, member, from)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	log.Info().Str("module", "orch").Str("member_id", string(member)).Str("from_room", string(from)).Msg("left previous room")
	return from, nil
}

func isMember(snap core.RoomSnapshot, member domain.MemberID) bool {
	for _, m := range snap.Members {
		if m.ID == member {
			return true
		}
	}
	return false
}
