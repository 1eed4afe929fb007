package app

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

const (
	recentRoomsLimit = 5
	hostedRoomsLimit = 20
)

type HistoryEntry struct {
	RoomID    domain.RoomID `json:"id"`
	Name      string        `json:"name"`
	HostName  string        `json:"host_name"`
	Listeners int           `json:"listeners"`
	At        time.Time     `json:"date"`
}

type MemberHistory struct {
	Recent []HistoryEntry `json:"recent_rooms"`
	Hosted []HistoryEntry `json:"host_history"`
}

// History remembers, per member, the rooms recently joined and the rooms
// hosted with their peak listener count.
type History struct {
	mu     sync.Mutex
	recent map[domain.MemberID][]HistoryEntry
	hosted map[domain.MemberID][]HistoryEntry
	now    func() time.Time
}

func NewHistory() *History {
	return &History{
		recent: make(map[domain.MemberID][]HistoryEntry),
		hosted: make(map[domain.MemberID][]HistoryEntry),
		now:    time.Now,
	}
}

func entryOf(snap core.RoomSnapshot, at time.Time) HistoryEntry {
	return HistoryEntry{
		RoomID:    snap.ID,
		Name:      snap.Name,
		HostName:  snap.HostName,
		Listeners: snap.MemberCount,
		At:        at,
	}
}

// RecordJoin puts the room at the front of member's recent list.
func (h *History) RecordJoin(member domain.MemberID, snap core.RoomSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := lo.Reject(h.recent[member], func(e HistoryEntry, _ int) bool { return e.RoomID == snap.ID })
	list = append([]HistoryEntry{entryOf(snap, h.now())}, list...)
	h.recent[member] = lo.Slice(list, 0, recentRoomsLimit)
}

func (h *History) RecordHosted(host domain.MemberID, snap core.RoomSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := append([]HistoryEntry{entryOf(snap, h.now())}, h.hosted[host]...)
	h.hosted[host] = lo.Slice(list, 0, hostedRoomsLimit)
}

// ObserveRoom raises the peak listener count of the host's entry.
func (h *History) ObserveRoom(snap core.RoomSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.hosted[snap.HostID]
	for i := range list {
		if list[i].RoomID == snap.ID && snap.MemberCount > list[i].Listeners {
			list[i].Listeners = snap.MemberCount
		}
	}
}

func (h *History) Of(member domain.MemberID) MemberHistory {
	h.mu.Lock()
	defer h.mu.Unlock()
	return MemberHistory{
		Recent: append([]HistoryEntry{}, h.recent[member]...),
		Hosted: append([]HistoryEntry{}, h.hosted[member]...),
	}
}
