package feedback

import (
	"sync"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

// EventKind names the mutation that produced an Event.
type EventKind string

const (
	EventReplaced EventKind = "replaced"
	EventMerged   EventKind = "merged"
	EventAdded    EventKind = "added"
	EventUpdated  EventKind = "updated"
	EventRemoved  EventKind = "removed"
	EventCleared  EventKind = "cleared"
)

// Event is published to subscribers after every mutation.
type Event struct {
	Kind     EventKind
	Affected int // records touched by the mutation
	Total    int // store size after the mutation
}

// Store holds the canonical ordered sequence of feedback records.
// Newest additions come first. All methods are safe for concurrent use;
// writers are serialized so every mutation is atomic and visible to the next read.
type Store struct {
	mu          sync.RWMutex
	records     []types.Feedback
	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSubID   int
}

// New creates an empty store
func New() *Store {
	return &Store{
		records:     []types.Feedback{},
		subscribers: make(map[int]func(Event)),
	}
}

// All returns a copy of the current records in store order.
func (s *Store) All() []types.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Feedback, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns the first record with the given id.
func (s *Store) Get(id string) (types.Feedback, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.records[i], true
	}
	return types.Feedback{}, false
}

// ReplaceAll discards the current contents and installs records as-is.
func (s *Store) ReplaceAll(records []types.Feedback) {
	s.mu.Lock()
	s.records = append([]types.Feedback{}, records...)
	total := len(s.records)
	s.mu.Unlock()

	s.publish(Event{Kind: EventReplaced, Affected: len(records), Total: total})
}

// Merge puts an imported batch in front of the existing records.
// Existing records are never removed.
func (s *Store) Merge(imported []types.Feedback) {
	if len(imported) == 0 {
		return
	}

	s.mu.Lock()
	merged := make([]types.Feedback, 0, len(imported)+len(s.records))
	merged = append(merged, imported...)
	merged = append(merged, s.records...)
	s.records = merged
	total := len(s.records)
	s.mu.Unlock()

	s.publish(Event{Kind: EventMerged, Affected: len(imported), Total: total})
}

// Add prepends one record. A record without status starts as pending.
func (s *Store) Add(record types.Feedback) {
	if record.Status == "" {
		record.Status = types.StatusPending
	}

	s.mu.Lock()
	s.records = append([]types.Feedback{record}, s.records...)
	total := len(s.records)
	s.mu.Unlock()

	s.publish(Event{Kind: EventAdded, Affected: 1, Total: total})
}

// Update merges patch into the first record matching id.
// Returns false, without error, when no record matches.
func (s *Store) Update(id string, patch types.Patch) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	patch.Apply(&s.records[i])
	total := len(s.records)
	s.mu.Unlock()

	s.publish(Event{Kind: EventUpdated, Affected: 1, Total: total})
	return true
}

// Remove deletes the first record matching id.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	total := len(s.records)
	s.mu.Unlock()

	s.publish(Event{Kind: EventRemoved, Affected: 1, Total: total})
	return true
}

// RemoveMany removes the first match of each id and returns how many were removed.
func (s *Store) RemoveMany(ids []string) int {
	s.mu.Lock()
	removed := 0
	for _, id := range ids {
		if i := s.indexOf(id); i >= 0 {
			s.records = append(s.records[:i], s.records[i+1:]...)
			removed++
		}
	}
	total := len(s.records)
	s.mu.Unlock()

	if removed > 0 {
		s.publish(Event{Kind: EventRemoved, Affected: removed, Total: total})
	}
	return removed
}

// SetStatus sets status on the first match of each id.
func (s *Store) SetStatus(ids []string, status types.Status) int {
	s.mu.Lock()
	updated := 0
	for _, id := range ids {
		if i := s.indexOf(id); i >= 0 {
			s.records[i].Status = status
			updated++
		}
	}
	total := len(s.records)
	s.mu.Unlock()

	if updated > 0 {
		s.publish(Event{Kind: EventUpdated, Affected: updated, Total: total})
	}
	return updated
}

// Clear removes every record. There is no recovery path.
func (s *Store) Clear() {
	s.mu.Lock()
	removed := len(s.records)
	s.records = []types.Feedback{}
	s.mu.Unlock()

	s.publish(Event{Kind: EventCleared, Affected: removed, Total: 0})
}

// Subscribe registers fn to be called after every mutation.
// The returned function releases the subscription.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

// publish runs outside the records lock so subscribers may read the store.
func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subscribers))
	for id := 0; id < s.nextSubID; id++ {
		if fn, ok := s.subscribers[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}
