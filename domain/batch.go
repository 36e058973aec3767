package domain

import "time"

// PendingBatch accumulates events for one source key during a cooldown
// window. Last status wins: a Joined followed by a Left for the same
// subject keeps only the Left. The batch is owned exclusively by the
// aggregator, which serializes all access per key.
type PendingBatch struct {
	SourceKey string
	Deadline  time.Time

	latest  map[string]Event // subject key -> last observed event
	order   []string         // subject keys in first-seen order
	members []User           // most recent occupants snapshot
}

func NewPendingBatch(sourceKey string, deadline time.Time) *PendingBatch {
	return &PendingBatch{
		SourceKey: sourceKey,
		Deadline:  deadline,
		latest:    make(map[string]Event),
	}
}

// Record overwrites any previously buffered state for the same subject
// and keeps the latest occupants snapshot.
func (b *PendingBatch) Record(e Event) {
	key := e.subjectKey()
	if _, seen := b.latest[key]; !seen {
		b.order = append(b.order, key)
	}
	b.latest[key] = e
	if e.ContextMembers != nil {
		b.members = e.ContextMembers
	}
}

func (b *PendingBatch) Empty() bool {
	return len(b.latest) == 0
}

// Drain classifies the buffered subjects by their last known kind and
// produces the digest for this window. Subjects keep first-seen order
// inside each group so the rendered text is stable.
func (b *PendingBatch) Drain(at time.Time) Digest {
	d := Digest{SourceKey: b.SourceKey, Members: b.members, WindowEnd: at}
	for _, key := range b.order {
		e := b.latest[key]
		switch e.Kind {
		case Joined:
			d.Joined = append(d.Joined, e.Subject)
		case Left:
			d.Left = append(d.Left, e.Subject)
		case Switched:
			d.Switched = append(d.Switched, e.Subject)
		case StartedPlaying:
			d.Playing = append(d.Playing, Activity{User: e.Subject, Game: e.Game})
		case StoppedPlaying:
			d.Stopped = append(d.Stopped, e.Subject)
		}
	}
	return d
}
