package signal

import (
	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(
	conn *WsSignalConn,
) {
	resp := struct {
		Type        string          `json:"type"`
		MemberID    domain.MemberID `json:"member_id"`
		DisplayName string          `json:"display_name"`
		CanHost     bool            `json:"can_host"`
		Room        domain.RoomID   `json:"room,omitempty"`
		RoomName    string          `json:"room_name,omitempty"`
	}{
		Type:        "whoami",
		MemberID:    conn.who.MemberID,
		DisplayName: conn.who.DisplayName,
		CanHost:     conn.who.CanHost,
	}
	if id, ok := ctl.Orch.Rooms.RoomOf(conn.who.MemberID); ok {
		resp.Room = id
		if info, ok := ctl.roomInfo(id); ok {
			resp.RoomName = info.Name
		}
	}
	_ = ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) roomInfo(id domain.RoomID) (core.RoomInfo, bool) {
	for _, info := range ctl.Orch.Rooms.List() {
		if info.ID == id {
			return info, true
		}
	}
	return core.RoomInfo{}, false
}
