package app

import (
	"context"
	"errors"
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

func TestSetCurrentTrack_HostOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.roomWith(t, "ana")

	_, err := f.sessions.SetCurrentTrack(ctx, id, "ana", blindingLights)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	snap, err := f.rooms.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, starboy.ID, snap.CurrentTrack.ID, "rejected command leaves state alone")

	snap, err = f.sessions.SetCurrentTrack(ctx, id, "dj", blindingLights)
	require.NoError(t, err)
	assert.Equal(t, blindingLights.ID, snap.CurrentTrack.ID)
	assert.Equal(t, 0, snap.BadVoteCount)

	_, err = f.sessions.SetCurrentTrack(ctx, id, "dj", domain.Track{Title: "no id"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetCurrentTrack_ResetsBadVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.roomWith(t, "ana", "ben", "cleo")

	_, err := f.votes.CastVote(ctx, "ana", id, domain.BallotDown)
	require.NoError(t, err)
	snap, err := f.rooms.GetRoom(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, snap.BadVoteCount)

	snap, err = f.sessions.SetCurrentTrack(ctx, id, "dj", blindingLights)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.BadVoteCount)

	ev, ok := f.events.last(core.EventVoteChanged)
	require.True(t, ok)
	assert.Equal(t, blindingLights.ID, ev.Vote.TrackID)
	assert.Equal(t, 0, ev.Vote.BadVoteCount)
}

func TestPlayback_OrphanedRoomRejectsCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.roomWith(t, "ana")
	require.NoError(t, f.rooms.LeaveRoom(ctx, "dj", id))

	_, err := f.sessions.SetCurrentTrack(ctx, id, "dj", blindingLights)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.sessions.RequestPlay(ctx, id, "ana")
	require.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.sessions.RequestPause(ctx, id, "ana")
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestPlayback_PlayPause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.roomWith(t, "ana")

	_, err := f.sessions.RequestPlay(ctx, id, "ana")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, f.player.history())

	snap, err := f.sessions.RequestPlay(ctx, id, "dj")
	require.NoError(t, err)
	assert.True(t, snap.Playing)

	changes := f.events.count(core.EventRoomChanged)
	snap, err = f.sessions.RequestPlay(ctx, id, "dj")
	require.NoError(t, err)
	assert.True(t, snap.Playing)
	assert.Equal(t, changes, f.events.count(core.EventRoomChanged), "repeat play is not a change")

	_, err = f.sessions.SetCurrentTrack(ctx, id, "dj", blindingLights)
	require.NoError(t, err)

	snap, err = f.sessions.RequestPause(ctx, id, "dj")
	require.NoError(t, err)
	assert.False(t, snap.Playing)

	calls := f.player.history()
	require.Len(t, calls, 3)
	assert.Equal(t, starboy.ID, calls[0].track.ID)
	assert.Equal(t, blindingLights.ID, calls[1].track.ID)
	assert.Nil(t, calls[2].track)
}

func TestPlayback_PlayWithoutTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.rooms.CreateRoom(ctx, host("dj"), "Empty deck", nil, nil)
	require.NoError(t, err)

	_, err = f.sessions.RequestPlay(ctx, id, "dj")
	require.ErrorIs(t, err, domain.ErrInvalidState)

	snap, err := f.sessions.RequestPause(ctx, id, "dj")
	require.NoError(t, err)
	assert.False(t, snap.Playing)
}

func TestPlayback_DeviceErrorDoesNotFailCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.roomWith(t)
	f.player.err = errors.New("speaker unplugged")

	snap, err := f.sessions.RequestPlay(ctx, id, "dj")
	require.NoError(t, err)
	assert.True(t, snap.Playing)
}

func TestPlayback_DoesNotTouchVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.roomWith(t, "ana", "ben", "cleo")

	_, err := f.votes.CastVote(ctx, "ana", id, domain.BallotDown)
	require.NoError(t, err)
	_, err = f.sessions.RequestPlay(ctx, id, "dj")
	require.NoError(t, err)

	snap, err := f.votes.VoteState(ctx, id)
	require.NoError(t, err)
	assert.True(t, snap.Open)
	assert.Equal(t, 1, snap.BadVoteCount)
}

func TestSearchTracks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tracks, err := f.sessions.SearchTracks(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, tracks)

	s := NewSessions(f.rooms, nil, fakeCatalog{tracks: []domain.Track{starboy}})
	tracks, err = s.SearchTracks(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, []domain.Track{starboy}, tracks)

	s = NewSessions(f.rooms, nil, fakeCatalog{})
	tracks, err = s.SearchTracks(ctx, "nothing")
	require.NoError(t, err)
	assert.NotNil(t, tracks)
	assert.Empty(t, tracks)

	s = NewSessions(f.rooms, nil, fakeCatalog{err: errors.New("timeout")})
	_, err = s.SearchTracks(ctx, "star")
	require.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestPlayback_OvertakenDeviceCommandSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.roomWith(t)

	play := f.rooms.issueCommand()
	pause := f.rooms.issueCommand()

	// The later pause reaches the device first; the earlier play is dropped.
	f.sessions.drive(ctx, id, pause, nil)
	f.sessions.drive(ctx, id, play, &starboy)

	calls := f.player.history()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].track)
}

func TestPlayback_ConcurrentTogglesEndOnCommittedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.roomWith(t)

	var wg conc.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			var err error
			if i%2 == 0 {
				_, err = f.sessions.RequestPlay(ctx, id, "dj")
			} else {
				_, err = f.sessions.RequestPause(ctx, id, "dj")
			}
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	snap, err := f.rooms.GetRoom(ctx, id)
	require.NoError(t, err)
	calls := f.player.history()
	if snap.Playing {
		require.NotEmpty(t, calls)
		assert.NotNil(t, calls[len(calls)-1].track, "device ends playing")
	} else if len(calls) > 0 {
		assert.Nil(t, calls[len(calls)-1].track, "device ends paused")
	}
}
