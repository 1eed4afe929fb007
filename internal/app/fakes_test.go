package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Publish(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(t core.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t core.EventType) (core.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return core.Event{}, false
}

var errStoreDown = errors.New("store down")

type memStore struct {
	mu      sync.Mutex
	rooms   map[domain.RoomID]*domain.Room
	deleted []domain.RoomID
	fail    atomic.Bool
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (s *memStore) SaveRoom(_ context.Context, r *domain.Room) error {
	if s.fail.Load() {
		return errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r.Clone()
	return nil
}

func (s *memStore) DeleteRoom(_ context.Context, id domain.RoomID) error {
	if s.fail.Load() {
		return errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memStore) get(id domain.RoomID) (*domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

type playCall struct {
	room  domain.RoomID
	track *domain.Track
}

type fakePlayer struct {
	mu    sync.Mutex
	calls []playCall
	err   error
}

func (p *fakePlayer) Play(_ context.Context, room domain.RoomID, track domain.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, playCall{room: room, track: &track})
	return p.err
}

func (p *fakePlayer) Pause(_ context.Context, room domain.RoomID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, playCall{room: room})
	return p.err
}

func (p *fakePlayer) history() []playCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]playCall{}, p.calls...)
}

type fakeCatalog struct {
	tracks []domain.Track
	err    error
}

func (c fakeCatalog) Search(context.Context, string) ([]domain.Track, error) {
	return c.tracks, c.err
}

// pendingTimers collects deadline callbacks instead of scheduling them.
// fire runs a callback even after Stop, so tests can replay stale timers.
type pendingTimers struct {
	mu      sync.Mutex
	fns     []func()
	stopped []bool
}

func (p *pendingTimers) afterFunc(_ time.Duration, f func()) func() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.fns)
	p.fns = append(p.fns, f)
	p.stopped = append(p.stopped, false)
	return func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		was := p.stopped[i]
		p.stopped[i] = true
		return !was
	}
}

func (p *pendingTimers) isStopped(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped[i]
}

func (p *pendingTimers) fire(i int) {
	p.mu.Lock()
	f := p.fns[i]
	p.mu.Unlock()
	f()
}

func (p *pendingTimers) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fns)
}

type fixture struct {
	clock    *fakeClock
	events   *recorder
	store    *memStore
	history  *History
	player   *fakePlayer
	timers   *pendingTimers
	rooms    *Registry
	sessions *Sessions
	votes    *VoteCoordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:   newFakeClock(),
		events:  &recorder{},
		store:   newMemStore(),
		history: NewHistory(),
		player:  &fakePlayer{},
		timers:  &pendingTimers{},
	}
	f.history.now = f.clock.Now
	f.rooms = NewRegistry(RegistryConfig{
		Store:   f.store,
		Events:  f.events,
		History: f.history,
		Now:     f.clock.Now,
	})
	f.sessions = NewSessions(f.rooms, f.player, fakeCatalog{})
	f.votes = NewVoteCoordinator(f.rooms, DefaultVoteWindow)
	f.votes.afterFunc = f.timers.afterFunc
	return f
}

func host(id string) domain.Identity {
	return domain.Identity{MemberID: domain.MemberID(id), DisplayName: id, CanHost: true}
}

func listener(id string) domain.Identity {
	return domain.Identity{MemberID: domain.MemberID(id), DisplayName: id}
}

var (
	starboy        = domain.Track{ID: "t-starboy", Title: "Starboy", Artist: "The Weeknd"}
	blindingLights = domain.Track{ID: "t-blinding", Title: "Blinding Lights", Artist: "The Weeknd"}
)

// roomWith creates a room hosted by "dj" playing starboy, with the given
// listeners joined.
func (f *fixture) roomWith(t *testing.T, listeners ...string) domain.RoomID {
	t.Helper()
	id, err := f.rooms.CreateRoom(context.Background(), host("dj"), "Friday", &starboy, nil)
	require.NoError(t, err)
	for _, l := range listeners {
		_, err := f.rooms.JoinRoom(context.Background(), listener(l), id)
		require.NoError(t, err)
	}
	return id
}
