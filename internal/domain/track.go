package domain

type TrackID string

// Track is immutable once attached to a room; it is replaced, never edited.
type Track struct {
	ID          TrackID `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	ArtURI      string  `json:"art_uri,omitempty"`
	PlayableRef string  `json:"playable_ref"`
}

func (t *Track) Valid() bool {
	return t != nil && t.ID != ""
}
