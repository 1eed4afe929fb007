package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/adapters/identity"
	"github.com/dkeye/SoundSync/internal/app"
	"github.com/dkeye/SoundSync/internal/app/orch"
	"github.com/dkeye/SoundSync/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	Limiter    *RoomRateLimiter
}

// SignalWSController serves the push channel. One controller is shared by
// every connection; all sockets of a member follow the member's room.
type SignalWSController struct {
	Orch *orch.Orchestrator
	opts Options

	mu    sync.Mutex
	conns map[domain.MemberID]map[*WsSignalConn]struct{}
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &SignalWSController{
		Orch:  o,
		opts:  opts,
		conns: make(map[domain.MemberID]map[*WsSignalConn]struct{}),
	}
}

// WsSignalConn is one client socket. Frames are queued on send and written by
// the write pump only.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte
	sub  *app.Subscription
	who  domain.Identity

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	who := identity.FromContext(c)
	log.Info().Str("module", "signal").Str("member_id", string(who.MemberID)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan []byte, sendBuffer),
		who:  who,
	}
	conn.sub = ctl.Orch.Events.Subscribe("")
	ctl.attach(conn)
	room, _ := ctl.Orch.Rooms.RoomOf(who.MemberID)
	ctl.Orch.Events.Follow(conn.sub, room)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, conn)
	go ctl.forwardEvents(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, conn)

	if room != "" {
		ctl.sendRoomState(ctx, conn, room)
	}
}

func (ctl *SignalWSController) attach(c *WsSignalConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	member := c.who.MemberID
	if ctl.conns[member] == nil {
		ctl.conns[member] = make(map[*WsSignalConn]struct{})
	}
	ctl.conns[member][c] = struct{}{}
}

// detach reports whether c was the member's last connection.
func (ctl *SignalWSController) detach(c *WsSignalConn) bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	member := c.who.MemberID
	delete(ctl.conns[member], c)
	if len(ctl.conns[member]) > 0 {
		return false
	}
	delete(ctl.conns, member)
	return true
}

func (ctl *SignalWSController) connsOf(member domain.MemberID) []*WsSignalConn {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	out := make([]*WsSignalConn, 0, len(ctl.conns[member]))
	for c := range ctl.conns[member] {
		out = append(out, c)
	}
	return out
}

// MemberMoved retargets every socket of member, whichever transport made the
// move, and sends the new room state or a left frame.
func (ctl *SignalWSController) MemberMoved(member domain.MemberID, from, to domain.RoomID) {
	for _, c := range ctl.connsOf(member) {
		ctl.Orch.Events.Follow(c.sub, to)
		if to != "" {
			ctl.sendRoomState(context.Background(), c, to)
			continue
		}
		_ = ctl.sendJSON(c, map[string]any{
			"type": "left",
			"room": from,
		})
	}
}

var _ orch.MoveWatcher = (*SignalWSController)(nil)

// onDisconnect drops presence: the member's last socket closing counts as
// leaving its room.
func (ctl *SignalWSController) onDisconnect(conn *WsSignalConn) {
	ctl.Orch.Events.Unsubscribe(conn.sub)
	member := conn.who.MemberID
	if !ctl.detach(conn) {
		return
	}
	ctl.opts.Limiter.Forget(member)
	id, err := ctl.Orch.Leave(context.Background(), member)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("module", "signal").Str("member_id", string(member)).Msg("leave on disconnect")
		}
		return
	}
	log.Info().Str("module", "signal").Str("member_id", string(member)).Str("room_id", string(id)).Msg("left on disconnect")
}
