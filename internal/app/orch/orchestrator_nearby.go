package orch

import (
	"github.com/dkeye/SoundSync/internal/app/discovery"
	"github.com/dkeye/SoundSync/internal/domain"
)

// NearbyRooms ranks every visible room for a caller at self. limit <= 0
// means no limit.
func (o *Orchestrator) NearbyRooms(self *domain.Location, limit int) []discovery.Nearby {
	out := []discovery.Nearby{}
	for n := range o.Nearby.RankNearby(self, o.Rooms.ListVisible()) {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, n)
	}
	return out
}

// Observe feeds a short-range sighting to the ranker.
func (o *Orchestrator) Observe(s domain.ProximitySample) {
	o.Nearby.Observe(s)
}
