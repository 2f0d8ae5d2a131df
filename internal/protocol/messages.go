// Package protocol defines the WebSocket message types and structures used
// between gateway clients (submitters and moderator consoles) and the
// server. All messages are serialized as JSON and follow a consistent
// envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeIdentify  = "identify"
	TypeSubmit    = "submit"
	TypeAction    = "action"
	TypeEditInput = "edit_input"
	TypeQueueList = "queue_list"
	TypePing      = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated = "session_created"
	TypeIdentified     = "identified"
	TypeAccepted       = "accepted"
	TypeRateLimited    = "rate_limited"
	TypeQueueFull      = "queue_full"
	TypeBanned         = "banned"
	TypeReview         = "review"
	TypeOutcome        = "outcome"
	TypeQueueEntries   = "queue_entries"
	TypeError          = "error"
	TypePong           = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// IdentifyMsg upgrades an anonymous connection to a moderator console.
// ActorID must be in the configured moderator set and Secret must match the
// shared console secret.
type IdentifyMsg struct {
	Type    string `json:"type"`
	ActorID string `json:"actor_id"`
	Secret  string `json:"secret"`
}

// SubmitMsg carries a new submission. Kind selects the payload fields:
// "text" uses Text, media kinds use FileRef plus an optional Caption.
type SubmitMsg struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	FileRef string `json:"file_ref,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// ActionMsg is a moderator action on a queued submission.
type ActionMsg struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	ID     int64  `json:"id"`
}

// EditInputMsg is a moderator's free-text input. With an active edit session
// it becomes the content override; otherwise the server reports an error and
// the console should resend it as a SubmitMsg if it was meant as content.
type EditInputMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// QueueListMsg requests the pending-queue listing (moderators only).
type QueueListMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent when a new connection is established. The
// session id doubles as the submitter identity for anonymous clients.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// IdentifiedMsg confirms a successful moderator identification.
type IdentifiedMsg struct {
	Type    string `json:"type"`
	ActorID string `json:"actor_id"`
}

// AcceptedMsg reports a successful submission with its queue standing.
type AcceptedMsg struct {
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	Position  int    `json:"position"`
	QueueSize int    `json:"queue_size"`
}

// RateLimitedMsg reports a denied submission and the whole-seconds wait
// until a retry can succeed.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// QueueFullMsg reports that the moderation queue is at capacity.
type QueueFullMsg struct {
	Type     string `json:"type"`
	Capacity int    `json:"capacity"`
}

// BannedMsg reports that the submitter is banned.
type BannedMsg struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"` // seconds remaining
	Reason   string `json:"reason"`
}

// ReviewMsg delivers a rendered moderation view to a moderator console.
// Ref is the opaque view handle: a console receiving a ReviewMsg with a ref
// it has seen before updates that view in place instead of adding a new one.
type ReviewMsg struct {
	Type     string   `json:"type"`
	Ref      string   `json:"ref"`
	ID       int64    `json:"id"`
	Headline string   `json:"headline"`
	Body     string   `json:"body,omitempty"`
	Actions  []string `json:"actions"`
}

// OutcomeMsg informs a submitter of their submission's outcome.
type OutcomeMsg struct {
	Type    string `json:"type"`
	ID      int64  `json:"id"`
	Outcome string `json:"outcome"` // "approved" or "rejected"
}

// QueueEntry is one row of the pending-queue listing.
type QueueEntry struct {
	ID        int64  `json:"id"`
	Submitter string `json:"submitter"`
	Kind      string `json:"kind"`
	Preview   string `json:"preview"`
}

// QueueEntriesMsg is the pending-queue listing with occupancy stats.
type QueueEntriesMsg struct {
	Type     string       `json:"type"`
	Entries  []QueueEntry `json:"entries"`
	Total    int          `json:"total"`
	Capacity int          `json:"capacity"`
}

// ErrorMsg communicates an error condition to the client.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeIdentify:
		var m IdentifyMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSubmit:
		var m SubmitMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeAction:
		var m ActionMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeEditInput:
		var m EditInputMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeQueueList:
		var m QueueListMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
