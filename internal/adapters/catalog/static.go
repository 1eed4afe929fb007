// Package catalog resolves track queries for the DJ.
package catalog

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

// DemoTracks seeds the built-in catalog.
var DemoTracks = []domain.Track{
	{ID: "track1", Title: "Starboy", Artist: "The Weeknd, Daft Punk", ArtURI: "https://images.pexels.com/photos/1763075/pexels-photo-1763075.jpeg", PlayableRef: "spotify:track:1"},
	{ID: "track2", Title: "Blinding Lights", Artist: "The Weeknd", ArtURI: "https://images.pexels.com/photos/2097616/pexels-photo-2097616.jpeg", PlayableRef: "spotify:track:2"},
	{ID: "track3", Title: "Save Your Tears", Artist: "The Weeknd", ArtURI: "https://images.pexels.com/photos/1293374/pexels-photo-1293374.jpeg", PlayableRef: "spotify:track:3"},
	{ID: "track4", Title: "After Hours", Artist: "The Weeknd", ArtURI: "https://images.pexels.com/photos/2123790/pexels-photo-2123790.jpeg", PlayableRef: "spotify:track:4"},
	{ID: "track5", Title: "In Your Eyes", Artist: "The Weeknd", ArtURI: "https://images.pexels.com/photos/2118046/pexels-photo-2118046.jpeg", PlayableRef: "spotify:track:5"},
}

// Static matches a case-insensitive substring of title or artist over a
// fixed track list.
type Static struct {
	tracks []domain.Track
}

func NewStatic(tracks []domain.Track) *Static {
	return &Static{tracks: append([]domain.Track{}, tracks...)}
}

func (s *Static) Search(_ context.Context, query string) ([]domain.Track, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return lo.Filter(s.tracks, func(t domain.Track, _ int) bool {
		return strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Artist), q)
	}), nil
}

var _ core.Catalog = (*Static)(nil)
