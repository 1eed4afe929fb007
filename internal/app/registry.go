package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

const (
	MaxRoomNameLen = 36
	roomIDLen      = 12
)

// roomEntry is the unit of locking. room is nil once the room is deleted.
// cmdMu orders the room's output device commands outside mu.
type roomEntry struct {
	mu   sync.Mutex
	room *domain.Room

	cmdMu   sync.Mutex
	lastCmd uint64
}

type RegistryConfig struct {
	Store        core.RoomStore
	Events       core.EventSink
	History      *History
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Registry is the authoritative directory of rooms and their members.
// Each room is mutated under its own lock; the directory lock only guards
// lookups, inserts and deletes.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomEntry

	memMu   sync.Mutex
	members map[domain.MemberID]domain.RoomID

	cmdSeq atomic.Uint64

	store        core.RoomStore
	events       core.EventSink
	history      *History
	storeTimeout time.Duration
	now          func() time.Time

	// endHooks run under the room lock when a room's vote is over: discarded,
	// passed on leave, or the room closed.
	endHooks []func(domain.RoomID)
}

func NewRegistry(cfg RegistryConfig) *Registry {
	g := &Registry{
		rooms:        make(map[domain.RoomID]*roomEntry),
		members:      make(map[domain.MemberID]domain.RoomID),
		store:        cfg.Store,
		events:       cfg.Events,
		history:      cfg.History,
		storeTimeout: cfg.StoreTimeout,
		now:          cfg.Now,
	}
	if g.store == nil {
		g.store = nopStore{}
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// truncateName cuts name to at most n bytes without splitting a rune.
func truncateName(name string, n int) string {
	if len(name) <= n {
		return name
	}
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

func newRoomID() domain.RoomID {
	return domain.RoomID(strings.ReplaceAll(uuid.NewString(), "-", "")[:roomIDLen])
}

// CreateRoom registers a new Active room hosted by host.
func (g *Registry) CreateRoom(
	ctx context.Context,
	host domain.Identity,
	name string,
	track *domain.Track,
	loc *domain.Location,
) (domain.RoomID, error) {
	if !host.CanHost {
		return "", fmt.Errorf("create room: %w: member %s cannot host", domain.ErrUnauthorized, host.MemberID)
	}
	if track != nil && !track.Valid() {
		return "", fmt.Errorf("create room: %w: track without id", domain.ErrInvalidInput)
	}
	hostName := host.DisplayName
	if hostName == "" {
		hostName = domain.DefaultHostName
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = hostName + "'s Room"
	}
	name = truncateName(name, MaxRoomNameLen)
	if !loc.Valid() {
		loc = nil
	}

	entry := &roomEntry{}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	g.mu.Lock()
	id := newRoomID()
	for g.rooms[id] != nil {
		id = newRoomID()
	}
	g.rooms[id] = entry
	g.mu.Unlock()

	if _, err := g.claim(host.MemberID, id); err != nil {
		g.dropEntry(id, entry)
		return "", fmt.Errorf("create room: %w", err)
	}

	now := g.now()
	room := &domain.Room{
		ID:        id,
		Name:      name,
		HostID:    host.MemberID,
		HostName:  hostName,
		Location:  loc,
		Members:   map[domain.MemberID]*domain.Member{host.MemberID: domain.NewMember(host, domain.RoleHost, now)},
		State:     domain.RoomActive,
		CreatedAt: now,
		Epoch:     1,
	}
	if track != nil {
		t := *track
		room.CurrentTrack = &t
	}

	if err := g.persist(ctx, room); err != nil {
		g.release(host.MemberID, id)
		g.dropEntry(id, entry)
		return "", err
	}
	entry.room = room

	snap := core.NewRoomSnapshot(room)
	if g.history != nil {
		g.history.RecordHosted(host.MemberID, snap)
	}
	g.emit(core.Event{Type: core.EventRoomChanged, RoomID: id, Room: &snap, At: now})
	log.Info().Str("module", "app.registry").Str("room_id", string(id)).Str("host", string(host.MemberID)).Msg("room created")
	return id, nil
}

// JoinRoom adds member as a listener. Joining a room one is already in is a
// no-op that still returns a fresh snapshot.
func (g *Registry) JoinRoom(ctx context.Context, member domain.Identity, id domain.RoomID) (core.RoomSnapshot, error) {
	fresh, err := g.claim(member.MemberID, id)
	if err != nil {
		return core.RoomSnapshot{}, fmt.Errorf("join room %s: %w", id, err)
	}

	var snap core.RoomSnapshot
	err = g.modify(ctx, id, func(r *domain.Room) (bool, error) {
		if r.HasMember(member.MemberID) {
			return false, nil
		}
		if r.State != domain.RoomActive {
			return false, fmt.Errorf("join room %s: %w: room is %s", id, domain.ErrInvalidState, r.State)
		}
		r.Members[member.MemberID] = domain.NewMember(member, domain.RoleListener, g.now())
		return true, nil
	}, func(r *domain.Room, changed bool) {
		snap = core.NewRoomSnapshot(r)
		if !changed {
			return
		}
		g.emitRoom(r, &snap)
		log.Info().Str("module", "app.registry").Str("room_id", string(id)).Str("member_id", string(member.MemberID)).Msg("member joined")
	})
	if err != nil {
		if fresh {
			g.release(member.MemberID, id)
		}
		return core.RoomSnapshot{}, err
	}
	if g.history != nil {
		g.history.RecordJoin(member.MemberID, snap)
	}
	return snap, nil
}

// LeaveRoom removes member. A departing host orphans the room; the last
// member out deletes it.
func (g *Registry) LeaveRoom(ctx context.Context, member domain.MemberID, id domain.RoomID) error {
	var skip bool
	err := g.modify(ctx, id, func(r *domain.Room) (bool, error) {
		if !r.HasMember(member) {
			return false, fmt.Errorf("leave room %s: %w: member %s", id, domain.ErrNotFound, member)
		}
		delete(r.Members, member)
		switch {
		case len(r.Members) == 0:
			r.State = domain.RoomClosed
			r.Playing = false
			r.Epoch++
		case member == r.HostID && r.State == domain.RoomActive:
			r.State = domain.RoomOrphaned
			r.Playing = false
		}
		if r.State != domain.RoomClosed {
			skip = resolveQuorum(r)
		}
		return true, nil
	}, func(r *domain.Room, _ bool) {
		g.release(member, id)
		log.Info().Str("module", "app.registry").Str("room_id", string(id)).Str("member_id", string(member)).Str("state", string(r.State)).Msg("member left")
		if r.State == domain.RoomClosed {
			g.closeLocked(r)
			return
		}
		g.emitRoom(r, nil)
		if skip {
			g.voteEnded(id)
			g.emitSkip(r)
		}
	})
	return err
}

// CloseRoom is the host's explicit shutdown of an Active room.
func (g *Registry) CloseRoom(ctx context.Context, actor domain.MemberID, id domain.RoomID) error {
	var members []domain.MemberID
	err := g.modify(ctx, id, func(r *domain.Room) (bool, error) {
		if r.HostID != actor {
			return false, fmt.Errorf("close room %s: %w", id, domain.ErrUnauthorized)
		}
		if r.State != domain.RoomActive {
			return false, fmt.Errorf("close room %s: %w: room is %s", id, domain.ErrInvalidState, r.State)
		}
		for m := range r.Members {
			members = append(members, m)
		}
		r.State = domain.RoomClosed
		r.Playing = false
		r.Epoch++
		return true, nil
	}, func(r *domain.Room, _ bool) {
		for _, m := range members {
			g.release(m, id)
		}
		g.closeLocked(r)
	})
	return err
}

func (g *Registry) GetRoom(_ context.Context, id domain.RoomID) (core.RoomSnapshot, error) {
	var snap core.RoomSnapshot
	err := g.view(id, func(r *domain.Room) error {
		snap = core.NewRoomSnapshot(r)
		return nil
	})
	return snap, err
}

// ListVisible returns snapshots of every Active room.
func (g *Registry) ListVisible() []core.RoomSnapshot {
	entries := g.entries()
	out := make([]core.RoomSnapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.room != nil && e.room.State == domain.RoomActive {
			out = append(out, core.NewRoomSnapshot(e.room))
		}
		e.mu.Unlock()
	}
	return out
}

func (g *Registry) List() []core.RoomInfo {
	entries := g.entries()
	out := make([]core.RoomInfo, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.room != nil {
			out = append(out, core.RoomInfo{ID: e.room.ID, Name: e.room.Name, MemberCount: len(e.room.Members)})
		}
		e.mu.Unlock()
	}
	return out
}

// RoomOf reports the room member is currently active in.
func (g *Registry) RoomOf(member domain.MemberID) (domain.RoomID, bool) {
	g.memMu.Lock()
	defer g.memMu.Unlock()
	id, ok := g.members[member]
	return id, ok
}

func (g *Registry) entries() []*roomEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*roomEntry, 0, len(g.rooms))
	for _, e := range g.rooms {
		out = append(out, e)
	}
	return out
}

func (g *Registry) lookup(id domain.RoomID) (*roomEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.rooms[id]
	return e, ok
}

// view runs fn on the live room under its lock. fn must not mutate r.
func (g *Registry) view(id domain.RoomID, fn func(r *domain.Room) error) error {
	e, ok := g.lookup(id)
	if !ok {
		return fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.room == nil || e.room.State == domain.RoomClosed {
		return fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}
	return fn(e.room)
}

// modify applies fn to a copy of the room under the room's lock. When fn
// reports a change the copy is persisted and swapped in; a failing store
// leaves the live room untouched. after runs with the committed room while
// the lock is still held, so events of one room keep their order.
func (g *Registry) modify(
	ctx context.Context,
	id domain.RoomID,
	fn func(next *domain.Room) (bool, error),
	after func(committed *domain.Room, changed bool),
) error {
	e, ok := g.lookup(id)
	if !ok {
		return fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.room == nil || e.room.State == domain.RoomClosed {
		return fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}

	next := e.room.Clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if changed {
		if err := g.persist(ctx, next); err != nil {
			return err
		}
		e.room = next
	}
	if after != nil {
		after(e.room, changed)
	}
	if e.room.State == domain.RoomClosed {
		e.room = nil
		g.dropEntry(id, e)
	}
	return nil
}

func (g *Registry) persist(ctx context.Context, r *domain.Room) error {
	if g.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.storeTimeout)
		defer cancel()
	}
	var err error
	if r.State == domain.RoomClosed {
		err = g.store.DeleteRoom(ctx, r.ID)
	} else {
		err = g.store.SaveRoom(ctx, r)
	}
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("room_id", string(r.ID)).Msg("store write failed")
		return fmt.Errorf("room %s: %w: %v", r.ID, domain.ErrUnavailable, err)
	}
	return nil
}

func (g *Registry) dropEntry(id domain.RoomID, e *roomEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[id] == e {
		delete(g.rooms, id)
	}
}

func (g *Registry) claim(member domain.MemberID, id domain.RoomID) (bool, error) {
	g.memMu.Lock()
	defer g.memMu.Unlock()
	if cur, ok := g.members[member]; ok {
		if cur == id {
			return false, nil
		}
		return false, fmt.Errorf("%w: member %s is active in room %s", domain.ErrInvalidState, member, cur)
	}
	g.members[member] = id
	return true, nil
}

func (g *Registry) release(member domain.MemberID, id domain.RoomID) {
	g.memMu.Lock()
	defer g.memMu.Unlock()
	if g.members[member] == id {
		delete(g.members, member)
	}
}

// issueCommand numbers an output device command. Call it under the room lock
// so numbers follow commit order.
func (g *Registry) issueCommand() uint64 {
	return g.cmdSeq.Add(1)
}

// runCommand runs fn for room id unless a later command already ran. It
// reports whether fn ran.
func (g *Registry) runCommand(id domain.RoomID, seq uint64, fn func()) bool {
	e, ok := g.lookup(id)
	if !ok {
		return false
	}
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()
	if seq <= e.lastCmd {
		return false
	}
	e.lastCmd = seq
	fn()
	return true
}

// onVoteEnded registers fn; it must be called before the registry is used.
func (g *Registry) onVoteEnded(fn func(domain.RoomID)) {
	g.endHooks = append(g.endHooks, fn)
}

func (g *Registry) voteEnded(id domain.RoomID) {
	for _, fn := range g.endHooks {
		fn(id)
	}
}

// closeLocked announces a room that just reached Closed.
func (g *Registry) closeLocked(r *domain.Room) {
	g.voteEnded(r.ID)
	snap := core.NewRoomSnapshot(r)
	g.emit(core.Event{Type: core.EventRoomClosed, RoomID: r.ID, Room: &snap, At: g.now()})
	log.Info().Str("module", "app.registry").Str("room_id", string(r.ID)).Msg("room closed")
}

// emitRoom publishes the room snapshot and, when a vote exists, the vote
// state whose quorum depends on the member count.
func (g *Registry) emitRoom(r *domain.Room, snap *core.RoomSnapshot) {
	if snap == nil {
		s := core.NewRoomSnapshot(r)
		snap = &s
	}
	now := g.now()
	g.emit(core.Event{Type: core.EventRoomChanged, RoomID: r.ID, Room: snap, At: now})
	if r.Vote != nil {
		vs := core.NewVoteSnapshot(r, now)
		g.emit(core.Event{Type: core.EventVoteChanged, RoomID: r.ID, Vote: &vs, At: now})
	}
	if g.history != nil {
		g.history.ObserveRoom(*snap)
	}
}

func (g *Registry) emitSkip(r *domain.Room) {
	now := g.now()
	vs := core.NewVoteSnapshot(r, now)
	g.emit(core.Event{Type: core.EventSkipRequested, RoomID: r.ID, Vote: &vs, At: now})
	g.emit(core.Event{Type: core.EventVoteClosed, RoomID: r.ID, Vote: &vs, At: now})
	log.Info().Str("module", "app.registry").Str("room_id", string(r.ID)).Int("bad_votes", r.BadVoteCount).Msg("skip requested")
}

func (g *Registry) emit(ev core.Event) {
	if g.events != nil {
		g.events.Publish(ev)
	}
}

type nopStore struct{}

func (nopStore) SaveRoom(context.Context, *domain.Room) error   { return nil }
func (nopStore) DeleteRoom(context.Context, domain.RoomID) error { return nil }
