// Package playback drives the DJ's output device.
package playback

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

// LogPlayer records commands and logs them. Audio itself is played by the
// DJ's client.
type LogPlayer struct {
	mu      sync.Mutex
	playing map[domain.RoomID]domain.Track
}

func NewLogPlayer() *LogPlayer {
	return &LogPlayer{playing: make(map[domain.RoomID]domain.Track)}
}

func (p *LogPlayer) Play(_ context.Context, room domain.RoomID, track domain.Track) error {
	p.mu.Lock()
	p.playing[room] = track
	p.mu.Unlock()
	log.Info().Str("module", "adapters.playback").Str("room_id", string(room)).Str("track_id", string(track.ID)).Str("ref", track.PlayableRef).Msg("play")
	return nil
}

func (p *LogPlayer) Pause(_ context.Context, room domain.RoomID) error {
	p.mu.Lock()
	delete(p.playing, room)
	p.mu.Unlock()
	log.Info().Str("module", "adapters.playback").Str("room_id", string(room)).Msg("pause")
	return nil
}

// NowPlaying reports what the device was last told to play in room.
func (p *LogPlayer) NowPlaying(room domain.RoomID) (domain.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.playing[room]
	return t, ok
}

var _ core.Player = (*LogPlayer)(nil)
