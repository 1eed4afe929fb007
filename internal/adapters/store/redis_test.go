package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SoundSync/internal/app"
	"github.com/dkeye/SoundSync/internal/config"
	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisStore) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(config.RedisConfig{Addr: mr.Addr(), Timeout: time.Second})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client, NewRedisStore(client)
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	mr, client, s := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	room := &domain.Room{
		ID:       "abc123def456",
		Name:     "Rooftop",
		HostID:   "dj",
		HostName: "DJ",
		Members: map[domain.MemberID]*domain.Member{
			"dj":  {ID: "dj", Role: domain.RoleHost, JoinedAt: now},
			"ana": {ID: "ana", Role: domain.RoleListener, JoinedAt: now},
		},
		CurrentTrack: &domain.Track{ID: "t1", Title: "Starboy"},
		State:        domain.RoomActive,
		CreatedAt:    now,
		Epoch:        3,
		Vote: &domain.VoteSession{
			RoomID:  "abc123def456",
			TrackID: "t1",
			Ballots: map[domain.MemberID]domain.Ballot{"ana": domain.BallotDown},
		},
	}
	require.NoError(t, s.SaveRoom(ctx, room))
	assert.True(t, mr.Exists("soundsync:room:abc123def456"))

	got, err := s.LoadRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Name, got.Name)
	assert.Len(t, got.Members, 2)
	assert.Equal(t, uint64(3), got.Epoch)
	assert.Equal(t, domain.BallotDown, got.Vote.Ballots["ana"])

	require.NoError(t, s.DeleteRoom(ctx, room.ID))
	_, err = s.LoadRoom(ctx, room.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisStore_BacksRegistry(t *testing.T) {
	mr, _, s := setupTestRedis(t)
	ctx := context.Background()
	reg := app.NewRegistry(app.RegistryConfig{Store: s, StoreTimeout: time.Second})

	id, err := reg.CreateRoom(ctx, domain.Identity{MemberID: "dj", CanHost: true}, "Live", nil, nil)
	require.NoError(t, err)
	_, err = reg.JoinRoom(ctx, domain.Identity{MemberID: "ana"}, id)
	require.NoError(t, err)

	stored, err := s.LoadRoom(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.Members, 2)

	mr.SetError("READONLY replica")
	_, err = reg.JoinRoom(ctx, domain.Identity{MemberID: "ben"}, id)
	require.ErrorIs(t, err, domain.ErrUnavailable)
	mr.SetError("")

	snap, err := reg.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.MemberCount)

	require.NoError(t, reg.LeaveRoom(ctx, "ana", id))
	require.NoError(t, reg.LeaveRoom(ctx, "dj", id))
	assert.False(t, mr.Exists("soundsync:room:"+string(id)))
}

func TestRedisStore_PublishEvent(t *testing.T) {
	_, client, s := setupTestRedis(t)
	ctx := context.Background()

	ev := core.Event{
		Type:   core.EventSkipRequested,
		RoomID: "r1",
		Vote:   &core.VoteSnapshot{RoomID: "r1", Passed: true, BadVoteCount: 2, RequiredVotes: 2},
		At:     time.Unix(1714593600, 0),
	}
	_, err := s.PublishEvent(ctx, ev)
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, EventStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "skip_requested", msgs[0].Values["type"])
	assert.Equal(t, "r1", msgs[0].Values["room_id"])
	assert.Equal(t, "1714593600", msgs[0].Values["timestamp"])

	var decoded core.Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.True(t, decoded.Vote.Passed)
}

func TestRedisStore_MirrorEvents(t *testing.T) {
	_, client, s := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := app.NewBroker(8, nil)
	done := make(chan error, 1)
	go func() { done <- s.MirrorEvents(ctx, broker) }()
	require.Eventually(t, func() bool { return broker.Len() == 1 }, time.Second, 5*time.Millisecond)

	broker.Publish(core.Event{Type: core.EventRoomChanged, RoomID: "a", At: time.Now()})
	broker.Publish(core.Event{Type: core.EventRoomClosed, RoomID: "b", At: time.Now()})

	require.Eventually(t, func() bool {
		n, err := client.XLen(context.Background(), EventStream).Result()
		return err == nil && n == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("mirror did not stop")
	}
	assert.Equal(t, 0, broker.Len())
}
