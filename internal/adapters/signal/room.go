package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

type roomStateFrame struct {
	Type string            `json:"type"`
	Room core.RoomSnapshot `json:"room"`
	Vote core.VoteSnapshot `json:"vote"`
}

// sendRoomState answers with the full room and vote snapshots.
func (ctl *SignalWSController) sendRoomState(ctx context.Context, c *WsSignalConn, id domain.RoomID) {
	room, err := ctl.Orch.Rooms.GetRoom(ctx, id)
	if err != nil {
		ctl.sendError(c, "room_state", err)
		return
	}
	vote, err := ctl.Orch.Votes.VoteState(ctx, id)
	if err != nil {
		ctl.sendError(c, "room_state", err)
		return
	}
	_ = ctl.sendJSON(c, roomStateFrame{Type: string(core.EventRoomChanged), Room: room, Vote: vote})
}

func (ctl *SignalWSController) handleCreateRoom(ctx context.Context, c *WsSignalConn, data []byte) {
	if ctl.limited(c, "create_room") {
		return
	}
	var p struct {
		Name     string           `json:"name"`
		Track    *domain.Track    `json:"track,omitempty"`
		Location *domain.Location `json:"location,omitempty"`
	}
	if !ctl.decode(c, "create_room", data, &p) {
		return
	}
	snap, err := ctl.Orch.Create(ctx, c.who, p.Name, p.Track, p.Location)
	if err != nil {
		ctl.sendError(c, "create_room", err)
		return
	}
	log.Info().Str("module", "signal").Str("member_id", string(c.who.MemberID)).Str("room_id", string(snap.ID)).Msg("create_room")
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, c *WsSignalConn, data []byte) {
	if ctl.limited(c, "join") {
		return
	}
	var p struct {
		Room domain.RoomID `json:"room"`
	}
	if !ctl.decode(c, "join", data, &p) {
		return
	}
	if _, err := ctl.Orch.Join(ctx, c.who, p.Room); err != nil {
		ctl.sendError(c, "join", err)
		return
	}
	log.Info().Str("module", "signal").Str("member_id", string(c.who.MemberID)).Str("room_id", string(p.Room)).Msg("join")
}

// handleLeave leaves the current room; the socket stays open. The room state
// and left frames come from MemberMoved.
func (ctl *SignalWSController) handleLeave(ctx context.Context, c *WsSignalConn) {
	id, err := ctl.Orch.Leave(ctx, c.who.MemberID)
	if err != nil {
		ctl.sendError(c, "leave", err)
		return
	}
	log.Info().Str("module", "signal").Str("member_id", string(c.who.MemberID)).Str("room_id", string(id)).Msg("leave")
}

func (ctl *SignalWSController) handleCloseRoom(ctx context.Context, c *WsSignalConn) {
	id, ok := ctl.currentRoom(c, "close_room")
	if !ok {
		return
	}
	if err := ctl.Orch.Close(ctx, c.who.MemberID, id); err != nil {
		ctl.sendError(c, "close_room", err)
		return
	}
	log.Info().Str("module", "signal").Str("member_id", string(c.who.MemberID)).Str("room_id", string(id)).Msg("close_room")
}

func (ctl *SignalWSController) handleNearby(c *WsSignalConn, data []byte) {
	var p struct {
		Location *domain.Location `json:"location,omitempty"`
		Limit    int              `json:"limit,omitempty"`
	}
	if !ctl.decode(c, "nearby", data, &p) {
		return
	}
	if !p.Location.Valid() {
		p.Location = nil
	}
	_ = ctl.sendJSON(c, map[string]any{
		"type":  "nearby",
		"rooms": ctl.Orch.NearbyRooms(p.Location, p.Limit),
	})
}

func (ctl *SignalWSController) currentRoom(c *WsSignalConn, request string) (domain.RoomID, bool) {
	id, ok := ctl.Orch.Rooms.RoomOf(c.who.MemberID)
	if !ok {
		ctl.sendError(c, request, domain.ErrNotFound)
		return "", false
	}
	return id, true
}
