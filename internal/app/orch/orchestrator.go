package orch

import (
	"github.com/dkeye/SoundSync/internal/app"
	"github.com/dkeye/SoundSync/internal/app/discovery"
	"github.com/dkeye/SoundSync/internal/domain"
)

// MoveWatcher learns where a member went after a create, join or leave. to
// is empty when the member left without entering another room.
type MoveWatcher interface {
	MemberMoved(member domain.MemberID, from, to domain.RoomID)
}

// Orchestrator is the entry point transports talk to. It owns no state; every
// field is shared with the rest of the process.
type Orchestrator struct {
	Rooms    *app.Registry
	Sessions *app.Sessions
	Votes    *app.VoteCoordinator
	Nearby   *discovery.Ranker
	Events   *app.Broker
	History  *app.History

	watchers []MoveWatcher
}

// Watch registers w. Call it before serving requests.
func (o *Orchestrator) Watch(w MoveWatcher) {
	o.watchers = append(o.watchers, w)
}

func (o *Orchestrator) moved(member domain.MemberID, from, to domain.RoomID) {
	for _, w := range o.watchers {
		w.MemberMoved(member, from, to)
	}
}
