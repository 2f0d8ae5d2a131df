// Package queue implements the bounded, ordered registry of pending
// submissions at the heart of the moderation gateway. The store is the sole
// owner of all Submission records: every accessor returns a copy, and every
// operation runs under one coarse store mutex so that concurrently racing
// moderator actions are linearized — exactly one mutating operation observes
// a given id present, all later ones observe ErrNotFound (remove-wins).
package queue

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is the default bound on pending + editing submissions.
const DefaultCapacity = 50

var (
	// ErrFull is returned by Enqueue when the store is at capacity.
	ErrFull = errors.New("queue: store is full")

	// ErrNotFound is returned when the submission id is not in the store,
	// either because it never existed or because a concurrent moderator
	// action already removed it. Callers treat it as a benign "already
	// handled" outcome, not a failure.
	ErrNotFound = errors.New("queue: submission not found")
)

// Store is the concurrent submission registry. Ids are assigned from a
// monotonic counter and never reused, so ascending id order is FIFO
// submission order.
type Store struct {
	mu       sync.Mutex
	capacity int
	nextID   int64
	items    map[int64]*Submission
}

// NewStore creates an empty store bounded to capacity entries. A capacity
// of zero or less falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		nextID:   1,
		items:    make(map[int64]*Submission),
	}
}

// Enqueue inserts a new pending submission and returns its assigned id.
// Returns ErrFull when the store already holds capacity entries; the id
// counter is not advanced for refused submissions.
func (s *Store) Enqueue(submitterID string, content Content, submittedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) >= s.capacity {
		return 0, ErrFull
	}

	id := s.nextID
	s.nextID++

	s.items[id] = &Submission{
		ID:              id,
		SubmitterID:     submitterID,
		Content:         content,
		OriginalText:    content.Text,
		OriginalCaption: content.Caption,
		Status:          StatusPending,
		SubmittedAt:     submittedAt,
		viewRefs:        make(map[string]string),
	}
	return id, nil
}

// Get returns a snapshot copy of the submission, or ErrNotFound.
func (s *Store) Get(id int64) (*Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sub.clone(), nil
}

// Position returns the 1-based rank of id among all stored submissions,
// ordered by ascending id, or ErrNotFound. The rank is computed against a
// consistent view of the id set: no partially-applied mutation is visible.
func (s *Store) Position(id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return 0, ErrNotFound
	}

	pos := 1
	for other := range s.items {
		if other < id {
			pos++
		}
	}
	return pos, nil
}

// Remove deletes the submission and returns its final snapshot. Removing an
// id that is already gone is a no-op returning ErrNotFound, never an error
// condition to escalate: two moderators deciding the same item concurrently
// is expected, and the first one wins.
func (s *Store) Remove(id int64) (*Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.items, id)
	return sub.clone(), nil
}

// SetEdited applies a moderator content override. The body lands in
// EditedText or EditedCaption according to the content kind; the original
// snapshot is never touched. Returns ErrNotFound if the submission was
// decided while the moderator was composing the edit.
func (s *Store) SetEdited(id int64, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}

	if sub.Content.IsMedia() {
		sub.EditedCaption = body
		sub.EditedText = ""
	} else {
		sub.EditedText = body
		sub.EditedCaption = ""
	}
	sub.Edited = true
	return nil
}

// SetStatus transitions the submission between pending and editing.
// Returns ErrNotFound if the id is gone.
func (s *Store) SetStatus(id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	return nil
}

// SetScreenFlag attaches a screening hint to the submission, shown to
// moderators alongside the preview. Returns ErrNotFound if the id is gone.
func (s *Store) SetScreenFlag(id int64, flag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	sub.ScreenFlag = flag
	return nil
}

// SetViewRef records the opaque handle of the rendered view delivered to a
// moderator, so later status changes update that view in place instead of
// sending a new one. A no-op if the submission is already gone.
func (s *Store) SetViewRef(id int64, moderatorID, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.items[id]; ok {
		sub.viewRefs[moderatorID] = handle
	}
}

// GetViewRef returns the rendered-view handle for a moderator, or "" if
// none was recorded or the submission is gone.
func (s *Store) GetViewRef(id int64, moderatorID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.items[id]; ok {
		return sub.viewRefs[moderatorID]
	}
	return ""
}

// ViewRefs returns a copy of the moderator -> handle map for a submission.
// Used by the transport to update every moderator's view after a decision.
func (s *Store) ViewRefs(id int64) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.items[id]
	if !ok {
		return nil
	}
	refs := make(map[string]string, len(sub.viewRefs))
	for mod, handle := range sub.viewRefs {
		refs[mod] = handle
	}
	return refs
}

// List returns snapshot copies of all stored submissions in ascending id
// order (FIFO submission order).
func (s *Store) List() []*Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Submission, 0, len(s.items))
	for _, sub := range s.items {
		out = append(out, sub.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the current number of stored submissions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Capacity returns the configured bound.
func (s *Store) Capacity() int {
	return s.capacity
}
