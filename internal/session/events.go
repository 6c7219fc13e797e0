package session

import (
	"sync"
	"time"

	"github.com/goodtune/punchclock/internal/model"
)

// EventType identifies what an Event carries.
type EventType string

const (
	EventState   EventType = "state"
	EventTick    EventType = "tick"
	EventIdle    EventType = "idle"
	EventBreak   EventType = "break"
	EventWarning EventType = "warning"
)

// Event is published to subscribers of a Controller.
type Event struct {
	Type      EventType
	State     State
	SessionID string
	Elapsed   time.Duration
	Interval  *model.Interval
	Break     *model.Break
	Err       error
	At        time.Time
}

// broadcaster fans events out to subscribers without ever blocking the publisher.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// publish reports how many subscribers missed the event.
func (b *broadcaster) publish(ev Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
