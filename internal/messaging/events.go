package messaging

// ReviewEvent is the payload broadcast on the review subject whenever a
// moderator view changes: a new submission arrives, an edit lands, or a
// decision ends the item's life. Each gateway instance re-renders it for its
// locally connected consoles with their own view refs.
type ReviewEvent struct {
	ID       int64    `json:"id"`
	Headline string   `json:"headline"`
	Body     string   `json:"body,omitempty"`
	Actions  []string `json:"actions,omitempty"`

	// Terminal marks a decided submission: consoles that never rendered
	// this item skip it instead of creating a view for a dead entry.
	Terminal bool `json:"terminal,omitempty"`

	// Refs carries the moderator -> view-ref map captured before a terminal
	// transition, since the store entry (and its refs) is gone by the time
	// the event is delivered.
	Refs map[string]string `json:"refs,omitempty"`
}

// PublishEvent is the payload on the publish subject: one piece of approved
// content for the publisher service to deliver to the public channel.
type PublishEvent struct {
	SubmissionID int64  `json:"submission_id"`
	Kind         string `json:"kind"`
	Body         string `json:"body"`
	FileRef      string `json:"file_ref,omitempty"`
}
