// Package discovery turns location and short-range sightings into an ordered
// list of nearby rooms.
package discovery

import (
	"cmp"
	"iter"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

const (
	earthRadiusMeters = 6371008.8

	DefaultStrongRangeMeters = 3.0
	DefaultSightingTTL       = 30 * time.Second
)

// Nearby is one ranked room. Known is false when no distance could be
// estimated; such rooms come last.
type Nearby struct {
	Room           core.RoomSnapshot `json:"room"`
	DistanceMeters float64           `json:"distance_m"`
	Known          bool              `json:"known"`
	ShortRange     bool              `json:"short_range"`
}

type sighting struct {
	distance   float64
	observedAt time.Time
}

type Config struct {
	StrongRangeMeters float64
	SightingTTL       time.Duration
}

// Ranker keeps the latest short-range sighting per host device.
type Ranker struct {
	mu        sync.RWMutex
	sightings map[domain.MemberID]sighting

	strongRange float64
	ttl         time.Duration
	now         func() time.Time
}

func NewRanker(cfg Config) *Ranker {
	if cfg.StrongRangeMeters <= 0 {
		cfg.StrongRangeMeters = DefaultStrongRangeMeters
	}
	if cfg.SightingTTL <= 0 {
		cfg.SightingTTL = DefaultSightingTTL
	}
	return &Ranker{
		sightings:   make(map[domain.MemberID]sighting),
		strongRange: cfg.StrongRangeMeters,
		ttl:         cfg.SightingTTL,
		now:         time.Now,
	}
}

// Observe folds a proximity sample in. Older samples for the same source
// never replace newer ones.
func (rk *Ranker) Observe(s domain.ProximitySample) {
	if s.SourceID == "" || s.EstimatedDistanceMeters < 0 || math.IsNaN(s.EstimatedDistanceMeters) {
		return
	}
	if s.ObservedAt.IsZero() {
		s.ObservedAt = rk.now()
	}
	rk.mu.Lock()
	defer rk.mu.Unlock()
	if cur, ok := rk.sightings[s.SourceID]; ok && cur.observedAt.After(s.ObservedAt) {
		return
	}
	rk.sightings[s.SourceID] = sighting{distance: s.EstimatedDistanceMeters, observedAt: s.ObservedAt}
	log.Debug().Str("module", "discovery").Str("source_id", string(s.SourceID)).Float64("distance_m", s.EstimatedDistanceMeters).Msg("sighting")
}

// Prune forgets sightings older than the TTL.
func (rk *Ranker) Prune() int {
	cutoff := rk.now().Add(-rk.ttl)
	rk.mu.Lock()
	defer rk.mu.Unlock()
	n := 0
	for id, s := range rk.sightings {
		if s.observedAt.Before(cutoff) {
			delete(rk.sightings, id)
			n++
		}
	}
	return n
}

func (rk *Ranker) freshSighting(host domain.MemberID, now time.Time) (sighting, bool) {
	rk.mu.RLock()
	defer rk.mu.RUnlock()
	s, ok := rk.sightings[host]
	if !ok || now.Sub(s.observedAt) > rk.ttl {
		return sighting{}, false
	}
	return s, true
}

// Estimate returns the best distance guess for room seen from self.
// A fresh short-range sighting of the host wins over GPS.
func (rk *Ranker) Estimate(self *domain.Location, room core.RoomSnapshot) Nearby {
	n := Nearby{Room: room}
	if s, ok := rk.freshSighting(room.HostID, rk.now()); ok {
		n.Known, n.ShortRange = true, true
		n.DistanceMeters = s.distance
		if s.distance <= rk.strongRange {
			n.DistanceMeters = 0
		}
		return n
	}
	if self.Valid() && room.Location.Valid() {
		n.Known = true
		n.DistanceMeters = Haversine(*self, *room.Location)
	}
	return n
}

// RankNearby yields rooms nearest first. Each iteration recomputes the
// ranking from the inputs, so the sequence can be ranged over repeatedly.
func (rk *Ranker) RankNearby(self *domain.Location, rooms []core.RoomSnapshot) iter.Seq[Nearby] {
	return func(yield func(Nearby) bool) {
		ranked := lo.Map(rooms, func(r core.RoomSnapshot, _ int) Nearby {
			return rk.Estimate(self, r)
		})
		slices.SortStableFunc(ranked, compareNearby)
		for _, n := range ranked {
			if !yield(n) {
				return
			}
		}
	}
}

// tier sorts rooms with a distance first, then rooms that have a location,
// then rooms without one.
func (n Nearby) tier() int {
	switch {
	case n.Known:
		return 0
	case n.Room.Location.Valid():
		return 1
	default:
		return 2
	}
}

func compareNearby(a, b Nearby) int {
	if c := cmp.Compare(a.tier(), b.tier()); c != 0 {
		return c
	}
	if a.Known {
		if c := cmp.Compare(a.DistanceMeters, b.DistanceMeters); c != 0 {
			return c
		}
	}
	if c := b.Room.CreatedAt.Compare(a.Room.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Room.ID, b.Room.ID)
}

// Haversine is the great-circle distance in meters.
func Haversine(a, b domain.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
