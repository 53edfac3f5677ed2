// Package events allows for the registering and receiving of node events.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Event is the document delivered to every registered receiver.
type Event struct {
	Kind string    `json:"kind"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	m  map[string]chan []byte
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]chan []byte),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive events.
func (evt *Events) Acquire(id string) <-chan []byte {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if exists {
		return ch
	}

	// A message is dropped when the receiver is not ready, this buffer
	// gives a slow websocket writer room to catch up.
	const messageBuffer = 100

	evt.m[id] = make(chan []byte, messageBuffer)
	return evt.m[id]
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Send marshals the event and signals it to every registered channel.
// Send will not block waiting for a receiver on any given channel. It is
// safe to call Send on a nil value.
func (evt *Events) Send(kind string, data any) {
	if evt == nil {
		return
	}

	doc, err := json.Marshal(Event{Kind: kind, Time: time.Now().UTC(), Data: data})
	if err != nil {
		doc, _ = json.Marshal(Event{Kind: "error", Time: time.Now().UTC(), Data: err.Error()})
	}

	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- doc:
		default:
		}
	}
}
