package push

import "sync"

const maxRememberedEvents = 10_000

type EventRecorder interface {
	RecordEvent(userID, identifier, action string) (bool, error)
}

// Deduper accepts each (user, notification, action) report once. Clients
// can report the same notification from more than one OS callback.
type Deduper struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	store EventRecorder
}

func NewDeduper(store EventRecorder) *Deduper {
	return &Deduper{seen: make(map[string]struct{}), store: store}
}

// Process reports whether this is the first time the event is seen.
func (d *Deduper) Process(userID, identifier, action string) (bool, error) {
	key := userID + "\x00" + identifier + "\x00" + action

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	first, err := d.store.RecordEvent(userID, identifier, action)
	if err != nil {
		return false, err
	}
	if len(d.seen) >= maxRememberedEvents {
		clear(d.seen)
	}
	d.seen[key] = struct{}{}
	return first, nil
}
