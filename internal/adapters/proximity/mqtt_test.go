package proximity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SoundSync/internal/domain"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type observed []domain.ProximitySample

func (o *observed) Observe(s domain.ProximitySample) { *o = append(*o, s) }

func TestDecode(t *testing.T) {
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	s, err := Decode([]byte(`{"source_id":"dj","distance_m":1.5,"observed_at":1714593600123}`), now)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberID("dj"), s.SourceID)
	assert.Equal(t, 1.5, s.EstimatedDistanceMeters)
	assert.Equal(t, int64(1714593600123), s.ObservedAt.UnixMilli())

	s, err = Decode([]byte(`{"source_id":"dj","distance_m":0}`), now)
	require.NoError(t, err)
	assert.Equal(t, now, s.ObservedAt)
	assert.Zero(t, s.EstimatedDistanceMeters)

	for _, bad := range []string{
		`not json`,
		`{"distance_m":1}`,
		`{"source_id":"dj"}`,
		`{"source_id":"dj","distance_m":-2}`,
	} {
		_, err := Decode([]byte(bad), now)
		assert.Error(t, err, bad)
	}
}

func TestHandler_ForwardsValidSamples(t *testing.T) {
	var got observed
	h := Handler(&got)

	h(nil, fakeMessage{topic: "soundsync/proximity/dev1", payload: []byte(`{"source_id":"dj","distance_m":2}`)})
	h(nil, fakeMessage{topic: "soundsync/proximity/dev1", payload: []byte(`{"source_id":""}`)})

	require.Len(t, got, 1)
	assert.Equal(t, domain.MemberID("dj"), got[0].SourceID)
}
