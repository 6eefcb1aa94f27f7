package metrics

import (
	"math"

	"swarmlog/internal/record"
)

// EventCursor walks a time-ordered formation event sequence alongside a
// time-ordered row sequence. It never moves backwards.
type EventCursor struct {
	events    []record.FormationEvent
	tolerance float64
	j         int
}

// NewEventCursor creates a cursor at the first event
func NewEventCursor(events []record.FormationEvent, tolerance float64) *EventCursor {
	return &EventCursor{events: events, tolerance: tolerance}
}

// Seek advances past every earlier event that does not match t and returns
// the event at the cursor. ok is false when that event is further than the
// tolerance from t or the events are exhausted.
func (c *EventCursor) Seek(t float64) (record.FormationEvent, bool) {
	for c.j < len(c.events) {
		e := c.events[c.j]
		if math.Abs(e.Time-t) < c.tolerance || e.Time > t {
			break
		}
		c.j++
	}

	if c.j >= len(c.events) {
		return record.FormationEvent{}, false
	}

	e := c.events[c.j]
	return e, math.Abs(e.Time-t) < c.tolerance
}

// Index returns the position of the cursor
func (c *EventCursor) Index() int {
	return c.j
}
