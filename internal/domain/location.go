package domain

import "time"

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// ProximitySample is a short-range sighting of a device. Never persisted.
type ProximitySample struct {
	SourceID                MemberID  `json:"source_id"`
	EstimatedDistanceMeters float64   `json:"distance_m"`
	ObservedAt              time.Time `json:"observed_at"`
}
