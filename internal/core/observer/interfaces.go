package observer

import (
	"time"

	"github.com/zeusync/smoke/internal/core/changes"
)

// Subject is anything that can post changes. SubjectKey must be unique per
// Registry; PotentialChanges is a capability declaration checked once at
// Attach time.
type Subject interface {
	SubjectKey() string
	PotentialChanges() changes.Mask
}

// Observer reacts to the changes of the subjects it is attached to.
//
// ChangeOccurred runs synchronously on the goroutine that posted the change.
// It must not assume the concrete type of subject: query the capability it
// needs and return nil when it is missing. A changes.None mask means the
// subject is going away and every reference to it must be released.
// Observers are used as map keys and must be comparable (pointer types).
type Observer interface {
	DesiredChanges() changes.Mask
	ChangeOccurred(subject Subject, changed changes.Mask) error
}

// ChangeDataProvider is implemented by subjects that carry auxiliary payloads
// for some change kinds, such as the contact list behind changes.Contact.
type ChangeDataProvider interface {
	ChangeData(kind changes.Mask) (any, bool)
}

// Monitor is notified after every PostChanges. Implementations can export
// metrics, tracing, or logs. Monitors should return quickly.
type Monitor interface {
	OnPosted(subjectKey string, changed changes.Mask, delivered int, err error, elapsed time.Duration)
}

// Edge is a read-only view of one subject to observer registration.
type Edge struct {
	ID       string
	Observer Observer
	Mask     changes.Mask
}

// Stats is a best-effort snapshot of registry counters.
type Stats struct {
	Subjects   int
	Edges      int
	Posts      uint64
	Deliveries uint64
	Errors     uint64
	Shutdowns  uint64
}
