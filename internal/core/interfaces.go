package core

import (
	"context"

	"github.com/dkeye/SoundSync/internal/domain"
)

// Catalog resolves a query to playable tracks. It may return an empty slice.
type Catalog interface {
	Search(ctx context.Context, query string) ([]domain.Track, error)
}

// Player issues playback commands to the DJ's output device.
type Player interface {
	Play(ctx context.Context, room domain.RoomID, track domain.Track) error
	Pause(ctx context.Context, room domain.RoomID) error
}

// RoomStore is the shared, remotely readable copy of room records.
// Implementations must be safe for concurrent use.
type RoomStore interface {
	SaveRoom(ctx context.Context, room *domain.Room) error
	DeleteRoom(ctx context.Context, id domain.RoomID) error
}

// EventSink receives every event the core emits. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// IdentityProvider supplies the normalized identity of a caller.
type IdentityProvider interface {
	Identify(ctx context.Context, token string, displayName string) (domain.Identity, error)
}
