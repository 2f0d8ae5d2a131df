package queue

import "time"

// Content kinds. Text submissions carry only Text; media submissions carry a
// FileRef handle into the transport's media storage plus an optional Caption.
const (
	KindText     = "text"
	KindPhoto    = "photo"
	KindVideo    = "video"
	KindDocument = "document"
	KindVoice    = "voice"
)

// Submission statuses while the item is in the store. Approved and rejected
// are terminal outcomes, not statuses: a decided submission is removed from
// the store rather than kept around with a flag.
const (
	StatusPending = "pending"
	StatusEditing = "editing"
)

// Content is the tagged union of submittable payloads. Kind selects which
// fields are meaningful: KindText uses Text, every media kind uses FileRef
// and Caption.
type Content struct {
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	FileRef string `json:"file_ref,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// IsMedia reports whether the content carries a media payload.
func (c Content) IsMedia() bool {
	return c.Kind != KindText
}

// ValidKind reports whether kind is one of the known content kinds. Adding a
// new media kind means extending this switch and the Body helpers below.
func ValidKind(kind string) bool {
	switch kind {
	case KindText, KindPhoto, KindVideo, KindDocument, KindVoice:
		return true
	}
	return false
}

// Submission is one pending item in the moderation queue. The store owns all
// Submission records; callers only ever see copies.
type Submission struct {
	ID          int64
	SubmitterID string
	Content     Content

	// OriginalText and OriginalCaption are immutable snapshots of the
	// submitted content, retained for the audit/details view even after a
	// moderator edits the item.
	OriginalText    string
	OriginalCaption string

	// EditedText or EditedCaption holds a moderator-supplied override;
	// which one is meaningful follows Content.Kind, the other is always
	// empty. Edited distinguishes "override set" from "no edit yet" so an
	// edit to the empty string still takes effect.
	EditedText    string
	EditedCaption string
	Edited        bool

	// ScreenFlag carries a pre-moderation screening hint (e.g. "url",
	// "char_flood") shown to moderators. Empty when the content is clean.
	ScreenFlag string

	Status      string
	SubmittedAt time.Time

	viewRefs map[string]string // moderatorID -> rendered-view handle
}

// PublishBody returns the content that would be published right now: the
// moderator override when present, otherwise the original. Text submissions
// publish the text body, media submissions publish the caption.
func (s *Submission) PublishBody() string {
	if s.Content.IsMedia() {
		if s.Edited {
			return s.EditedCaption
		}
		return s.OriginalCaption
	}
	if s.Edited {
		return s.EditedText
	}
	return s.OriginalText
}

// OriginalBody returns the immutable submitted body for the content kind.
func (s *Submission) OriginalBody() string {
	if s.Content.IsMedia() {
		return s.OriginalCaption
	}
	return s.OriginalText
}

// clone returns a copy of the submission safe to hand outside the store.
// The view-ref map is not copied: handles are accessed only through the
// store's own ViewRef methods.
func (s *Submission) clone() *Submission {
	dup := *s
	dup.viewRefs = nil
	return &dup
}
