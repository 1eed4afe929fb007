package app

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

const DefaultSubscriberBuffer = 32

// Subscription receives the events of one room, or of every room when
// created by SubscribeAll. An empty room matches nothing. C is closed when the
// subscription ends.
type Subscription struct {
	id     uint64
	room   domain.RoomID
	all    bool
	ch     chan core.Event
	missed atomic.Int32
	closed bool
}

func (s *Subscription) C() <-chan core.Event { return s.ch }

func (s *Subscription) Missed() int32 { return s.missed.Load() }

// Broker fans events out to subscribers without ever blocking a publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	policy Policy
}

func NewBroker(buffer int, policy Policy) *Broker {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Broker{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		policy: policy,
	}
}

func (b *Broker) Subscribe(room domain.RoomID) *Subscription {
	return b.SubscribeBuffered(room, b.buffer)
}

func (b *Broker) SubscribeBuffered(room domain.RoomID, buffer int) *Subscription {
	return b.add(&Subscription{room: room, ch: make(chan core.Event, buffer)})
}

func (b *Broker) SubscribeAll() *Subscription {
	return b.add(&Subscription{all: true, ch: make(chan core.Event, b.buffer)})
}

func (b *Broker) add(sub *Subscription) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Follow retargets sub to another room; an empty room follows nothing until
// the next call.
func (b *Broker) Follow(sub *Subscription, room domain.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub.room = room
}

// Unfollow stops sub following room; a sub already retargeted elsewhere is
// left alone.
func (b *Broker) Unfollow(sub *Subscription, room domain.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.room == room {
		sub.room = ""
	}
}

func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(sub)
}

func (b *Broker) dropLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(b.subs, sub.id)
	close(sub.ch)
}

func (b *Broker) Publish(ev core.Event) {
	var kick []*Subscription

	b.mu.RLock()
	for _, sub := range b.subs {
		if !sub.all && (sub.room == "" || sub.room != ev.RoomID) {
			continue
		}
		select {
		case sub.ch <- ev:
			continue
		default:
		}
		switch b.policy.OnBackPressure(sub) {
		case KickSubscriber:
			kick = append(kick, sub)
		case MarkSlow:
			sub.missed.Add(1)
		case DropEvent, NoAction:
		}
	}
	b.mu.RUnlock()

	if len(kick) == 0 {
		return
	}
	b.mu.Lock()
	for _, sub := range kick {
		b.dropLocked(sub)
		log.Warn().Str("module", "app.broker").Uint64("sub", sub.id).Str("room_id", string(sub.room)).Msg("subscriber kicked on backpressure")
	}
	b.mu.Unlock()
}

func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

var _ core.EventSink = (*Broker)(nil)
