package signal

import (
	"context"

	"github.com/dkeye/SoundSync/internal/domain"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	_ = ctl.sendJSON(conn, resp)
}

// handleVote answers with the vote state; the room's followers get it through
// the event stream as well.
func (ctl *SignalWSController) handleVote(ctx context.Context, c *WsSignalConn, data []byte) {
	if ctl.limited(c, "vote") {
		return
	}
	var p struct {
		Ballot domain.Ballot `json:"ballot"`
	}
	if !ctl.decode(c, "vote", data, &p) {
		return
	}
	id, ok := ctl.currentRoom(c, "vote")
	if !ok {
		return
	}
	snap, err := ctl.Orch.Votes.CastVote(ctx, c.who.MemberID, id, p.Ballot)
	if err != nil {
		ctl.sendError(c, "vote", err)
		return
	}
	_ = ctl.sendJSON(c, map[string]any{
		"type": "vote_state",
		"vote": snap,
	})
}

func (ctl *SignalWSController) handleSetTrack(ctx context.Context, c *WsSignalConn, data []byte) {
	var p struct {
		Track domain.Track `json:"track"`
	}
	if !ctl.decode(c, "set_track", data, &p) {
		return
	}
	id, ok := ctl.currentRoom(c, "set_track")
	if !ok {
		return
	}
	if _, err := ctl.Orch.Sessions.SetCurrentTrack(ctx, id, c.who.MemberID, p.Track); err != nil {
		ctl.sendError(c, "set_track", err)
	}
}

func (ctl *SignalWSController) handlePlayback(ctx context.Context, c *WsSignalConn, play bool) {
	request := "pause"
	if play {
		request = "play"
	}
	id, ok := ctl.currentRoom(c, request)
	if !ok {
		return
	}
	var err error
	if play {
		_, err = ctl.Orch.Sessions.RequestPlay(ctx, id, c.who.MemberID)
	} else {
		_, err = ctl.Orch.Sessions.RequestPause(ctx, id, c.who.MemberID)
	}
	if err != nil {
		ctl.sendError(c, request, err)
	}
}

func (ctl *SignalWSController) handleSearch(ctx context.Context, c *WsSignalConn, data []byte) {
	var p struct {
		Query string `json:"query"`
	}
	if !ctl.decode(c, "search", data, &p) {
		return
	}
	tracks, err := ctl.Orch.Sessions.SearchTracks(ctx, p.Query)
	if err != nil {
		ctl.sendError(c, "search", err)
		return
	}
	_ = ctl.sendJSON(c, map[string]any{
		"type":   "tracks",
		"query":  p.Query,
		"tracks": tracks,
	})
}
