package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid submit message
// ---------------------------------------------------------------------------

func TestParseClientMessage_Submit(t *testing.T) {
	input := []byte(`{"type":"submit","kind":"text","text":"hello world"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSubmit {
		t.Fatalf("expected type %q, got %q", TypeSubmit, msgType)
	}

	sm, ok := msg.(SubmitMsg)
	if !ok {
		t.Fatalf("expected SubmitMsg, got %T", msg)
	}
	if sm.Kind != "text" || sm.Text != "hello world" {
		t.Errorf("unexpected payload: %+v", sm)
	}
}

func TestParseClientMessage_MediaSubmit(t *testing.T) {
	input := []byte(`{"type":"submit","kind":"photo","file_ref":"f-123","caption":"a cat"}`)

	_, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sm := msg.(SubmitMsg)
	if sm.Kind != "photo" || sm.FileRef != "f-123" || sm.Caption != "a cat" {
		t.Errorf("unexpected payload: %+v", sm)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a moderator action message
// ---------------------------------------------------------------------------

func TestParseClientMessage_Action(t *testing.T) {
	input := []byte(`{"type":"action","action":"approve","id":42}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeAction {
		t.Fatalf("expected type %q, got %q", TypeAction, msgType)
	}

	am, ok := msg.(ActionMsg)
	if !ok {
		t.Fatalf("expected ActionMsg, got %T", msg)
	}
	if am.Action != "approve" || am.ID != 42 {
		t.Errorf("unexpected payload: %+v", am)
	}
}

// ---------------------------------------------------------------------------
// Test: Error cases
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"type":"self_destruct"}`)); err == nil {
		t.Fatal("expected error for unknown message type")
	}
}

func TestParseClientMessage_MissingType(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"kind":"text"}`)); err == nil {
		t.Fatal("expected error for missing type field")
	}
}

func TestParseClientMessage_InvalidJSON(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestParseClientMessage_ServerOnlyType(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"type":"review"}`)); err == nil {
		t.Fatal("server-only types must not parse as client messages")
	}
}

// ---------------------------------------------------------------------------
// Test: Creating server messages
// ---------------------------------------------------------------------------

func TestNewServerMessage_Review(t *testing.T) {
	payload := ReviewMsg{
		Ref:      "view-1",
		ID:       7,
		Headline: "Submission #7 — text",
		Body:     "From: abc\n\nhello",
		Actions:  []string{"approve", "reject", "request_edit", "details"},
	}

	data, err := NewServerMessage(TypeReview, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != TypeReview {
		t.Errorf("type = %v, want %q", decoded["type"], TypeReview)
	}
	if decoded["ref"] != "view-1" {
		t.Errorf("ref = %v", decoded["ref"])
	}
	if decoded["id"].(float64) != 7 {
		t.Errorf("id = %v", decoded["id"])
	}
}

func TestNewServerMessage_InjectsType(t *testing.T) {
	// The payload's zero Type field must be overwritten by the argument.
	data, err := NewServerMessage(TypeAccepted, AcceptedMsg{ID: 1, Position: 1, QueueSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]interface{}
	json.Unmarshal(data, &decoded)
	if decoded["type"] != TypeAccepted {
		t.Errorf("type = %v, want %q", decoded["type"], TypeAccepted)
	}
}
