package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SoundSync/internal/domain"
)

func titles(tracks []domain.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Title
	}
	return out
}

func TestStatic_Search(t *testing.T) {
	c := NewStatic(DemoTracks)
	ctx := context.Background()

	got, err := c.Search(ctx, "your")
	require.NoError(t, err)
	assert.Equal(t, []string{"Save Your Tears", "In Your Eyes"}, titles(got))

	got, err = c.Search(ctx, "DAFT")
	require.NoError(t, err)
	assert.Equal(t, []string{"Starboy"}, titles(got), "artist matches too")

	got, err = c.Search(ctx, "weeknd")
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = c.Search(ctx, "mozart")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemote_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tracks", r.URL.Path)
		assert.Equal(t, "lights", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":[{"id":"track2","title":"Blinding Lights","artist":"The Weeknd","playable_ref":"spotify:track:2"}]}`))
	}))
	defer srv.Close()

	got, err := NewRemote(srv.URL, time.Second).Search(context.Background(), "lights")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TrackID("track2"), got[0].ID)
	assert.Equal(t, "spotify:track:2", got[0].PlayableRef)
}

func TestRemote_SearchError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, time.Second).Search(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load(), "client errors are not retried")
}
