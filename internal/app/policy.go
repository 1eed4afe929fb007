package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickSubscriber
	DropEvent
)

// Policy decides what happens to a subscriber whose buffer is full.
type Policy interface {
	OnBackPressure(sub *Subscription) BackpressureAction
}

// SimplePolicy drops the subscriber. Its transport is expected to close the
// connection so the client reconnects and reloads a full snapshot, which
// keeps delivery at-least-once from the client's point of view.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*Subscription) BackpressureAction {
	return KickSubscriber
}

// TolerantPolicy lets a subscriber miss up to Limit events before kicking it.
type TolerantPolicy struct {
	Limit int32
}

func (p TolerantPolicy) OnBackPressure(sub *Subscription) BackpressureAction {
	if sub.Missed() >= p.Limit {
		return KickSubscriber
	}
	return MarkSlow
}
