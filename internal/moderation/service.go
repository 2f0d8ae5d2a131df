// Package moderation implements the moderation state machine of the
// submission gateway: admission of new submissions through the rate limiter
// into the bounded queue, and arbitration of concurrent moderator actions
// over each queued item.
//
// The package performs no network I/O. Operations return views to render and
// effects (publish, submitter notice) for the transport adapter to deliver,
// and every transport call happens after the state transition has committed —
// a failed delivery is the adapter's problem and never rolls a transition
// back. Races between moderators are linearized by the store lock: exactly
// one mutating action observes a submission present, all later ones get
// queue.ErrNotFound and should be rendered as a benign "already handled"
// notice.
package moderation

import (
	"errors"
	"fmt"
	"time"

	"github.com/quietpost/gateway/internal/editsession"
	"github.com/quietpost/gateway/internal/metrics"
	"github.com/quietpost/gateway/internal/projection"
	"github.com/quietpost/gateway/internal/queue"
	"github.com/quietpost/gateway/internal/ratelimit"
	"github.com/quietpost/gateway/internal/screen"
)

// Accepted is the successful result of a submission: the assigned id and
// the queue standing reported back to the submitter.
type Accepted struct {
	ID        int64
	Position  int
	QueueSize int
}

// Result carries what a moderator action produced: the view to render back
// to the acting moderator, and the effects the adapter must deliver after
// the transition has committed.
type Result struct {
	View    projection.View
	Publish *PublishEffect
	Notice  *NoticeEffect

	// Decided marks terminal outcomes (approve/reject): every moderator's
	// stale view of the submission should be replaced with Result.View.
	// Snapshot is the removed submission as it stood at decision time, for
	// the adapter's audit trail.
	Decided  bool
	Snapshot *queue.Submission
}

// Service is the moderation gateway core. The moderator set is fixed at
// construction; concurrency is handled entirely by the component locks
// (store, limiter, edit-session table), so Service itself holds no mutex.
type Service struct {
	moderators map[string]struct{}
	store      *queue.Store
	limiter    *ratelimit.Limiter
	sessions   *editsession.Table
	previewLen int
}

// NewService wires the core components together. moderators must be
// non-empty; validating that is the config loader's job, before this point.
func NewService(moderators []string, store *queue.Store, limiter *ratelimit.Limiter, previewLen int) *Service {
	set := make(map[string]struct{}, len(moderators))
	for _, m := range moderators {
		set[m] = struct{}{}
	}
	return &Service{
		moderators: set,
		store:      store,
		limiter:    limiter,
		sessions:   editsession.NewTable(store),
		previewLen: previewLen,
	}
}

// IsModerator reports whether the actor is in the configured moderator set.
func (s *Service) IsModerator(actorID string) bool {
	_, ok := s.moderators[actorID]
	return ok
}

// Store exposes the submission store for the transport adapter's view-ref
// bookkeeping.
func (s *Service) Store() *queue.Store {
	return s.store
}

// SubmitContent admits a new submission. On success the submission is
// enqueued as pending, the rate limiter records the attempt, and the
// submitter's queue standing is returned.
//
// Failure modes, in check order: ErrBadRequest for an unknown content kind,
// *RateLimitedError with the wait time, queue.ErrFull when the queue is at
// capacity. A refused submission leaves no partial state: the limiter only
// records admitted submissions.
func (s *Service) SubmitContent(submitterID string, content queue.Content, now time.Time) (*Accepted, error) {
	if !queue.ValidKind(content.Kind) {
		return nil, fmt.Errorf("%w: unknown content kind %q", ErrBadRequest, content.Kind)
	}

	if ok, wait := s.limiter.Allow(submitterID, now); !ok {
		metrics.SubmissionsTotal.WithLabelValues("rate_limited").Inc()
		return nil, &RateLimitedError{Wait: wait}
	}

	id, err := s.store.Enqueue(submitterID, content, now)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("queue_full").Inc()
		return nil, err
	}
	s.limiter.Record(submitterID, now)

	if flag := screen.Check(bodyOf(content)); flag != "" {
		_ = s.store.SetScreenFlag(id, flag)
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	metrics.QueueSize.Set(float64(s.store.Len()))

	pos, err := s.store.Position(id)
	if err != nil {
		// Decided before we could even report the position; 0 reads as
		// "already being handled" downstream.
		pos = 0
	}
	return &Accepted{ID: id, Position: pos, QueueSize: s.store.Len()}, nil
}

// ModeratorAction validates and applies one moderator action on a
// submission. Approve and reject are the mutating, racing operations;
// request_edit/cancel_edit drive the edit-session table; details/back are
// pure re-renders.
//
// Errors: ErrUnauthorized, ErrBadRequest, or queue.ErrNotFound when a
// concurrent actor got there first (benign — render "already handled").
func (s *Service) ModeratorAction(actorID string, action Action, id int64) (*Result, error) {
	if !s.IsModerator(actorID) {
		metrics.ActionsTotal.WithLabelValues(string(action), "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	res, err := s.applyAction(actorID, action, id)
	metrics.ActionsTotal.WithLabelValues(string(action), resultLabel(err)).Inc()
	return res, err
}

func (s *Service) applyAction(actorID string, action Action, id int64) (*Result, error) {
	switch action {
	case ActionApprove:
		return s.decide(id, OutcomeApproved)
	case ActionReject:
		return s.decide(id, OutcomeRejected)

	case ActionRequestEdit:
		if err := s.sessions.Begin(actorID, id); err != nil {
			return nil, err
		}
		snap, err := s.store.Get(id)
		if err != nil {
			return nil, err
		}
		return &Result{View: projection.EditPrompt(snap)}, nil

	case ActionCancelEdit:
		s.sessions.Cancel(actorID)
		snap, err := s.store.Get(id)
		if err != nil {
			// Decided mid-session: cancelling is still fine, there is
			// just nothing left to re-render.
			return &Result{View: projection.AlreadyHandled(id)}, nil
		}
		return &Result{View: s.compactView(snap)}, nil

	case ActionDetails:
		snap, err := s.store.Get(id)
		if err != nil {
			return nil, err
		}
		pos, _ := s.store.Position(id)
		return &Result{View: projection.Details(snap, pos, s.store.Len())}, nil

	case ActionBack:
		snap, err := s.store.Get(id)
		if err != nil {
			return nil, err
		}
		return &Result{View: s.compactView(snap)}, nil
	}

	return nil, fmt.Errorf("%w: unknown action %q", ErrBadRequest, action)
}

// decide removes the submission and builds the terminal result. The Remove
// is the linearization point: whichever concurrent decision reaches the
// store first wins, every later one observes queue.ErrNotFound here.
func (s *Service) decide(id int64, outcome string) (*Result, error) {
	snap, err := s.store.Remove(id)
	if err != nil {
		return nil, err
	}

	metrics.QueueSize.Set(float64(s.store.Len()))
	metrics.DecisionDuration.Observe(time.Since(snap.SubmittedAt).Seconds())

	res := &Result{
		View:     projection.Decided(id, outcome),
		Notice:   &NoticeEffect{SubmitterID: snap.SubmitterID, Outcome: outcome},
		Decided:  true,
		Snapshot: snap,
	}
	if outcome == OutcomeApproved {
		res.Publish = &PublishEffect{
			SubmissionID: id,
			Content:      snap.Content,
			Body:         snap.PublishBody(),
		}
	}
	return res, nil
}

// ModeratorTextInput routes free-text input from a moderator. With an active
// edit session the text becomes the content override for the session's
// target and the refreshed view is returned for re-rendering; without one,
// editsession.ErrNoSession tells the caller to treat the input as a new
// top-level submission. A stale session (target decided concurrently)
// surfaces as queue.ErrNotFound.
func (s *Service) ModeratorTextInput(actorID, body string) (int64, *Result, error) {
	if !s.IsModerator(actorID) {
		return 0, nil, ErrUnauthorized
	}

	id, err := s.sessions.Consume(actorID, body)
	if err != nil {
		if errors.Is(err, editsession.ErrGone) {
			return id, nil, queue.ErrNotFound
		}
		return 0, nil, err
	}

	snap, err := s.store.Get(id)
	if err != nil {
		return id, nil, queue.ErrNotFound
	}
	return id, &Result{View: s.compactView(snap)}, nil
}

// ListPending returns the queue listing for a moderator, in submission
// order.
func (s *Service) ListPending(actorID string) ([]projection.ListEntry, error) {
	if !s.IsModerator(actorID) {
		return nil, ErrUnauthorized
	}
	return projection.ListPending(s.store.List()), nil
}

func (s *Service) compactView(snap *queue.Submission) projection.View {
	pos, _ := s.store.Position(snap.ID)
	return projection.Project(snap, pos, s.store.Len(), s.previewLen)
}

func bodyOf(content queue.Content) string {
	if content.IsMedia() {
		return content.Caption
	}
	return content.Text
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, queue.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}
