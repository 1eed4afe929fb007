package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

func roomEvent(room domain.RoomID) core.Event {
	return core.Event{Type: core.EventRoomChanged, RoomID: room}
}

func drain(sub *Subscription) []core.Event {
	var out []core.Event
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBroker_RoutesByRoom(t *testing.T) {
	b := NewBroker(4, nil)
	a := b.Subscribe("a")
	all := b.SubscribeAll()
	none := b.Subscribe("")

	b.Publish(roomEvent("a"))
	b.Publish(roomEvent("b"))

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(all), 2)
	assert.Empty(t, drain(none))
}

func TestBroker_Follow(t *testing.T) {
	b := NewBroker(4, nil)
	sub := b.Subscribe("a")

	b.Follow(sub, "b")
	b.Publish(roomEvent("a"))
	b.Publish(roomEvent("b"))

	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, domain.RoomID("b"), got[0].RoomID)
}

func TestBroker_UnfollowOnlyMatchingRoom(t *testing.T) {
	b := NewBroker(4, nil)
	sub := b.Subscribe("a")

	b.Unfollow(sub, "old")
	b.Publish(roomEvent("a"))
	assert.Len(t, drain(sub), 1)

	b.Unfollow(sub, "a")
	b.Publish(roomEvent("a"))
	assert.Empty(t, drain(sub))
}

func TestBroker_SimplePolicyKicksSlowSubscriber(t *testing.T) {
	b := NewBroker(1, SimplePolicy{})
	slow := b.Subscribe("a")
	fast := b.SubscribeBuffered("a", 8)

	b.Publish(roomEvent("a"))
	b.Publish(roomEvent("a"))

	assert.Equal(t, 1, b.Len())
	_, ok := <-slow.C()
	assert.True(t, ok, "buffered event is still delivered")
	_, ok = <-slow.C()
	assert.False(t, ok, "channel closed after kick")
	assert.Len(t, drain(fast), 2)

	b.Unsubscribe(slow)
	assert.Equal(t, 1, b.Len())
}

func TestBroker_TolerantPolicy(t *testing.T) {
	b := NewBroker(1, TolerantPolicy{Limit: 2})
	sub := b.SubscribeAll()

	for range 3 {
		b.Publish(roomEvent("a"))
	}
	assert.Equal(t, int32(2), sub.Missed())
	assert.Equal(t, 1, b.Len())

	b.Publish(roomEvent("a"))
	assert.Equal(t, 0, b.Len())
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker(0, nil)
	sub := b.Subscribe("a")
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	_, ok := <-sub.C()
	assert.False(t, ok)
	b.Publish(roomEvent("a"))
	assert.Equal(t, 0, b.Len())
}
