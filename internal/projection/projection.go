// Package projection derives the human-readable moderator view from a
// submission's current state. Project and Details are pure functions with no
// hidden state: the transport layer calls them to render or re-render a
// moderator's message whenever the underlying submission changes.
package projection

import (
	"fmt"
	"strings"
	"time"

	"github.com/quietpost/gateway/internal/queue"
)

// DefaultPreviewLength is the rune budget for the inline content preview.
const DefaultPreviewLength = 300

// listPreviewLength is the shorter budget used in the pending-queue listing.
const listPreviewLength = 50

// Moderator actions offered on a rendered view. These are display
// affordances; the authoritative action enum lives in the moderation package.
const (
	ActionApprove     = "approve"
	ActionReject      = "reject"
	ActionRequestEdit = "request_edit"
	ActionCancelEdit  = "cancel_edit"
	ActionDetails     = "details"
	ActionBack        = "back"
)

// View is the rendered moderator-facing representation of a submission.
type View struct {
	Headline string   `json:"headline"`
	Body     string   `json:"body"`
	Actions  []string `json:"actions"`
}

// ListEntry is one line of the pending-queue listing.
type ListEntry struct {
	ID               int64  `json:"id"`
	SubmitterDisplay string `json:"submitter"`
	Kind             string `json:"kind"`
	Preview          string `json:"preview"`
}

// Project renders the compact moderation view: an edited-aware preview
// truncated to previewLen runes, the queue position, and the action set for
// the submission's status. A previewLen of zero or less falls back to
// DefaultPreviewLength.
func Project(sub *queue.Submission, position, queueSize, previewLen int) View {
	if previewLen <= 0 {
		previewLen = DefaultPreviewLength
	}

	headline := fmt.Sprintf("Submission #%d — %s", sub.ID, kindLabel(sub.Content.Kind))
	if sub.Edited {
		headline = "[edited] " + headline
	}

	preview := sub.PublishBody()
	if preview == "" {
		if sub.Content.IsMedia() {
			preview = "<media>"
		} else {
			preview = "<empty>"
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", sub.SubmitterID)
	fmt.Fprintf(&b, "Position: %d/%d\n", position, queueSize)
	if sub.ScreenFlag != "" {
		fmt.Fprintf(&b, "Flagged: %s\n", sub.ScreenFlag)
	}
	fmt.Fprintf(&b, "\n%s", truncate(preview, previewLen))

	return View{
		Headline: headline,
		Body:     b.String(),
		Actions:  actionsFor(sub.Status),
	}
}

// Details renders the expanded view: untruncated content, submitter
// identity, timestamp, and — once an edit exists — both the original and the
// override, so the audit trail stays visible right up to the decision.
func Details(sub *queue.Submission, position, queueSize int) View {
	headline := fmt.Sprintf("Submission #%d details", sub.ID)
	if sub.Edited {
		headline += " [edited]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", sub.SubmitterID)
	fmt.Fprintf(&b, "Submitted: %s\n", sub.SubmittedAt.Format(time.DateTime))
	fmt.Fprintf(&b, "Position: %d/%d\n", position, queueSize)
	fmt.Fprintf(&b, "Type: %s\n", kindLabel(sub.Content.Kind))
	if sub.ScreenFlag != "" {
		fmt.Fprintf(&b, "Flagged: %s\n", sub.ScreenFlag)
	}

	label := "Text"
	if sub.Content.IsMedia() {
		label = "Caption"
	}
	if sub.Edited {
		fmt.Fprintf(&b, "Original %s: %s\n", strings.ToLower(label), orNone(sub.OriginalBody()))
		fmt.Fprintf(&b, "Edited %s: %s\n", strings.ToLower(label), sub.PublishBody())
	} else {
		fmt.Fprintf(&b, "%s: %s\n", label, orNone(sub.OriginalBody()))
	}

	return View{
		Headline: headline,
		Body:     b.String(),
		Actions:  actionsFor(sub.Status),
	}
}

// Decided renders the terminal banner shown in place of a moderation view
// once the submission has been approved or rejected. No actions remain: a
// stale render must not stay actionable after the store confirms removal.
func Decided(id int64, outcome string) View {
	return View{
		Headline: fmt.Sprintf("Submission #%d %s", id, outcome),
		Actions:  nil,
	}
}

// AlreadyHandled renders the benign notice shown to a moderator whose action
// lost the race to a concurrent decision.
func AlreadyHandled(id int64) View {
	return View{
		Headline: fmt.Sprintf("Submission #%d was already handled", id),
		Actions:  nil,
	}
}

// EditPrompt renders the prompt shown when a moderator starts editing.
func EditPrompt(sub *queue.Submission) View {
	label := "text"
	if sub.Content.IsMedia() {
		label = "caption"
	}
	return View{
		Headline: fmt.Sprintf("Editing submission #%d", sub.ID),
		Body: fmt.Sprintf("Current %s: %s\n\nSend the new %s as your next message.",
			label, orNone(sub.PublishBody()), label),
		Actions: []string{ActionCancelEdit},
	}
}

// ListPending renders the queue listing for moderators, ordered as given
// (the store lists in ascending id order).
func ListPending(subs []*queue.Submission) []ListEntry {
	entries := make([]ListEntry, 0, len(subs))
	for _, sub := range subs {
		entries = append(entries, ListEntry{
			ID:               sub.ID,
			SubmitterDisplay: sub.SubmitterID,
			Kind:             kindLabel(sub.Content.Kind),
			Preview:          truncate(sub.PublishBody(), listPreviewLength),
		})
	}
	return entries
}

// actionsFor maps a submission status to its available moderator actions.
func actionsFor(status string) []string {
	switch status {
	case queue.StatusEditing:
		return []string{ActionApprove, ActionReject, ActionCancelEdit, ActionDetails}
	default:
		return []string{ActionApprove, ActionReject, ActionRequestEdit, ActionDetails}
	}
}

// truncate cuts s to at most limit runes, appending an ellipsis when
// anything was dropped. Rune-based so multi-byte content is never split.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

func kindLabel(kind string) string {
	if kind == queue.KindText {
		return "text"
	}
	return kind
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
