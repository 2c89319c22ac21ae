package command

import (
	"slices"
	"sync"
)

type subscriber struct {
	id int
	fn func(Event)
}

// Bus delivers events to the subscribers of one session. Subscribers are called synchronously, in
// subscription order, on the goroutine that published; they must not block.
type Bus struct {
	mu        sync.Mutex
	nextSubID int
	subs      []subscriber
}

// NewBus returns a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that unregisters it. Unsubscribing twice is a
// no-op.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
	}
}

// Publish hands ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	subs := slices.Clone(b.subs)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
