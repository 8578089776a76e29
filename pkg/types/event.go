package types

import "time"

// lifecycle events written to the activity log
type Event string

const (
	EventQueued  Event = "QUEUED"
	EventPassed  Event = "PASSED"
	EventTimeout Event = "TIMEOUT"
	EventRemoved Event = "REMOVED"
)

func (e Event) String() string { return string(e) }

type LogEntry struct {
	Holder    string
	Event     Event
	Timestamp time.Time
}
