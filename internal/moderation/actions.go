package moderation

import (
	"errors"
	"fmt"
	"time"

	"github.com/quietpost/gateway/internal/queue"
)

// Action is the closed enumeration of moderator actions. Anything outside
// this set is a typed bad request, never a silent no-op.
type Action string

const (
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionRequestEdit Action = "request_edit"
	ActionCancelEdit  Action = "cancel_edit"
	ActionDetails     Action = "details"
	ActionBack        Action = "back"
)

var (
	// ErrUnauthorized is returned when the actor is not in the configured
	// moderator set. Always surfaced to the actor, never swallowed.
	ErrUnauthorized = errors.New("moderation: actor is not a moderator")

	// ErrBadRequest is returned for an unrecognized action or a malformed
	// action reference.
	ErrBadRequest = errors.New("moderation: bad request")
)

// ParseAction validates a wire action string against the closed enum.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionApprove, ActionReject, ActionRequestEdit, ActionCancelEdit,
		ActionDetails, ActionBack:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrBadRequest, s)
}

// Outcomes of a moderation decision, also used as the submitter notice verbs.
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
)

// RateLimitedError reports a denied submission together with the time the
// submitter has to wait before the oldest window entry expires.
type RateLimitedError struct {
	Wait time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("moderation: rate limited, retry in %s", e.Wait)
}

// PublishEffect is the externally-observable instruction to deliver approved
// content to the public channel. Body is the resolved publish body: the
// moderator override when one exists, otherwise the original.
type PublishEffect struct {
	SubmissionID int64
	Content      queue.Content
	Body         string
}

// NoticeEffect is the instruction to inform a submitter of their outcome.
type NoticeEffect struct {
	SubmitterID string
	Outcome     string
}
