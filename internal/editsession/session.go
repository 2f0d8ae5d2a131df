// Package editsession tracks per-moderator edit sessions: a moderator's
// temporary claim that their next plain-text input is a content override for
// a specific submission, not a new submission. At most one session exists
// per moderator; starting a new edit silently abandons the old one.
//
// An edit session never blocks moderation: approve/reject on the target
// submission still succeeds while the session is open (remove-wins), and the
// orphaned session is discovered stale on its next use rather than being
// actively cancelled.
package editsession

import (
	"errors"
	"sync"

	"github.com/quietpost/gateway/internal/queue"
)

var (
	// ErrNoSession is returned by Consume when the moderator has no active
	// edit session, signalling the caller to route the input as a new
	// top-level submission instead.
	ErrNoSession = errors.New("editsession: no active session")

	// ErrGone is returned by Consume when the target submission was
	// decided by a concurrent moderator action while the edit was being
	// composed. The session is cleared as a side effect.
	ErrGone = errors.New("editsession: target submission already handled")
)

// Table maps moderators to the submission they are currently editing.
// One mutex guards the table; submission mutations go through the store,
// which has its own lock, and are never performed while holding ours.
type Table struct {
	mu    sync.Mutex
	store *queue.Store
	byMod map[string]int64 // moderatorID -> submissionID
}

// NewTable creates an empty edit-session table bound to the store.
func NewTable(store *queue.Store) *Table {
	return &Table{
		store: store,
		byMod: make(map[string]int64),
	}
}

// Begin opens an edit session for the moderator on the given submission and
// flips the submission's status to editing. Any prior session for the same
// moderator is overwritten; re-requesting an edit on the same id is an
// idempotent re-prompt. Returns queue.ErrNotFound if the submission is gone.
func (t *Table) Begin(moderatorID string, submissionID int64) error {
	if err := t.store.SetStatus(submissionID, queue.StatusEditing); err != nil {
		return err
	}

	t.mu.Lock()
	t.byMod[moderatorID] = submissionID
	t.mu.Unlock()
	return nil
}

// Cancel clears the moderator's session without touching the submission's
// stored content, and reverts the submission from editing back to pending so
// it shows as plainly eligible again. Cancelling with no active session or
// with the target already decided is a no-op.
func (t *Table) Cancel(moderatorID string) {
	t.mu.Lock()
	id, ok := t.byMod[moderatorID]
	delete(t.byMod, moderatorID)
	t.mu.Unlock()

	if ok {
		// The target may have been decided mid-session; reverting a gone
		// submission is a harmless ErrNotFound.
		_ = t.store.SetStatus(id, queue.StatusPending)
	}
}

// Active returns the submission id the moderator is editing and whether a
// session exists.
func (t *Table) Active(moderatorID string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byMod[moderatorID]
	return id, ok
}

// Consume applies body as the content override for the moderator's current
// edit target, clears the session, reverts the submission to pending, and
// returns the target id.
//
// Returns ErrNoSession when no edit is in progress. Returns ErrGone when the
// target was decided concurrently: the session was stale and has been
// cleared, and the caller should tell the moderator the item is already
// handled.
func (t *Table) Consume(moderatorID, body string) (int64, error) {
	t.mu.Lock()
	id, ok := t.byMod[moderatorID]
	if ok {
		delete(t.byMod, moderatorID)
	}
	t.mu.Unlock()

	if !ok {
		return 0, ErrNoSession
	}

	if err := t.store.SetEdited(id, body); err != nil {
		return id, ErrGone
	}
	_ = t.store.SetStatus(id, queue.StatusPending)
	return id, nil
}
