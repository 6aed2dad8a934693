package sched

// TriggerBus coalesces change notifications into re-evaluation triggers.
// Every mutation of the service set, the request set or the channel
// configuration publishes here; the renewal worker drains it. A full pass
// reconciles everything, so pending triggers collapse into one.
type TriggerBus struct {
	ch chan struct{}
}

func NewTriggerBus() *TriggerBus {
	return &TriggerBus{ch: make(chan struct{}, 1)}
}

// Publish never blocks: if a trigger is already pending the new one merges
// into it.
func (b *TriggerBus) Publish() {
	select {
	case b.ch <- struct{}{}:
	default:
	}
}

func (b *TriggerBus) C() <-chan struct{} { return b.ch }
