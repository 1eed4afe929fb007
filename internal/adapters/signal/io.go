package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

func (ctl *SignalWSController) writePump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// forwardEvents pushes the followed room's events to the client. A kicked
// subscription or a full send queue closes the socket; the client reconnects
// and gets a fresh snapshot.
func (ctl *SignalWSController) forwardEvents(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.sub.C():
			if !ok {
				log.Warn().Str("module", "signal").Str("member_id", string(c.who.MemberID)).Msg("event subscription dropped")
				c.Close()
				return
			}
			if err := ctl.sendJSON(c, ev); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("member_id", string(c.who.MemberID)).Msg("event not delivered")
				c.Close()
				return
			}
			if ev.Type == core.EventRoomClosed {
				ctl.Orch.Events.Unfollow(c.sub, ev.RoomID)
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("member_id", string(c.who.MemberID)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.onDisconnect(c)
	}()

	wait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("member_id", string(c.who.MemberID)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(wait))
			ctl.handleSignal(ctx, c, data)
		}
	}
}

type envelope struct {
	Type string `json:"type"`
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "", domain.ErrInvalidInput)
		return
	}

	switch env.Type {
	case "create_room":
		ctl.handleCreateRoom(ctx, c, data)
	case "join":
		ctl.handleJoin(ctx, c, data)
	case "leave":
		ctl.handleLeave(ctx, c)
	case "close_room":
		ctl.handleCloseRoom(ctx, c)
	case "vote":
		ctl.handleVote(ctx, c, data)
	case "set_track":
		ctl.handleSetTrack(ctx, c, data)
	case "play":
		ctl.handlePlayback(ctx, c, true)
	case "pause":
		ctl.handlePlayback(ctx, c, false)
	case "nearby":
		ctl.handleNearby(c, data)
	case "search":
		ctl.handleSearch(ctx, c, data)
	case "ping":
		ctl.handlePing(c)
	case "whoami":
		ctl.handleWhoAmI(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, env.Type, domain.ErrInvalidInput)
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return err
	}
	return c.TrySend(b)
}

type errorFrame struct {
	Type    string           `json:"type"`
	Request string           `json:"request,omitempty"`
	Error   domain.ErrorKind `json:"error"`
	Message string           `json:"message"`
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, request string, err error) {
	_ = ctl.sendJSON(c, errorFrame{
		Type:    "error",
		Request: request,
		Error:   domain.KindOf(err),
		Message: err.Error(),
	})
}

// decode unmarshals a command payload, answering bad_payload on failure.
func (ctl *SignalWSController) decode(c *WsSignalConn, request string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", request).Msg("bad payload")
		ctl.sendError(c, request, domain.ErrInvalidInput)
		return false
	}
	return true
}

// limited answers rate_limited when the member is over its command budget.
func (ctl *SignalWSController) limited(c *WsSignalConn, request string) bool {
	if ctl.opts.Limiter.Allow(c.who.MemberID) {
		return false
	}
	ctl.sendError(c, request, domain.ErrRateLimited)
	return true
}
