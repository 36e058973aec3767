package domain

import "time"

// EventKind classifies a normalized producer event.
type EventKind string

const (
	Joined         EventKind = "joined"
	Left           EventKind = "left"
	Switched       EventKind = "switched"
	StartedPlaying EventKind = "started_playing"
	StoppedPlaying EventKind = "stopped_playing"
)

// User identifies an event subject. Name is the display form,
// ID is the stable identifier used for last-write-wins collapsing.
type User struct {
	ID   string
	Name string
}

// Event is the canonical form every adapter normalizes into.
// Immutable once built: the aggregator copies what it keeps.
type Event struct {
	SourceKey      string
	Subject        User
	Kind           EventKind
	Game           string // set for presence events only
	OccurredAt     time.Time
	ContextMembers []User
}

// Valid reports whether the event carries enough to be aggregated.
// Adapters drop and log anything else.
func (e Event) Valid() bool {
	if e.SourceKey == "" || e.Subject.Name == "" && e.Subject.ID == "" {
		return false
	}
	switch e.Kind {
	case Joined, Left, Switched, StartedPlaying, StoppedPlaying:
		return true
	}
	return false
}

// subjectKey prefers the stable ID over the display name.
func (e Event) subjectKey() string {
	if e.Subject.ID != "" {
		return e.Subject.ID
	}
	return e.Subject.Name
}
