package gaming

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DisplayForever shows a message until it is explicitly removed by a
// qualifying state change.
const DisplayForever = time.Duration(1<<63 - 1)

// MessageDisplay shows operator-facing messages on the EGM screen.
type MessageDisplay interface {
	Show(id uuid.UUID, text string, duration time.Duration)
	Remove(id uuid.UUID)

	// RemoveSticky clears every message shown without an expiry. The engine
	// calls it when gameplay resumes.
	RemoveSticky()
}

// LocalDisplay keeps the currently shown messages in memory.
type LocalDisplay struct {
	mu       sync.Mutex
	messages map[uuid.UUID]string
	sticky   map[uuid.UUID]bool
}

// NewLocalDisplay creates an empty display.
func NewLocalDisplay() *LocalDisplay {
	return &LocalDisplay{
		messages: make(map[uuid.UUID]string),
		sticky:   make(map[uuid.UUID]bool),
	}
}

func (d *LocalDisplay) Show(id uuid.UUID, text string, duration time.Duration) {
	d.mu.Lock()
	d.messages[id] = text
	if duration <= 0 || duration == DisplayForever {
		d.sticky[id] = true
	}
	d.mu.Unlock()

	if duration > 0 && duration != DisplayForever {
		time.AfterFunc(duration, func() { d.Remove(id) })
	}
}

func (d *LocalDisplay) Remove(id uuid.UUID) {
	d.mu.Lock()
	delete(d.messages, id)
	delete(d.sticky, id)
	d.mu.Unlock()
}

func (d *LocalDisplay) RemoveSticky() {
	d.mu.Lock()
	for id := range d.sticky {
		delete(d.messages, id)
		delete(d.sticky, id)
	}
	d.mu.Unlock()
}

// Showing reports whether the message is currently displayed.
func (d *LocalDisplay) Showing(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.messages[id]
	return ok
}

// Active counts the messages currently displayed.
func (d *LocalDisplay) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}
