package moderation

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quietpost/gateway/internal/editsession"
	"github.com/quietpost/gateway/internal/queue"
	"github.com/quietpost/gateway/internal/ratelimit"
)

const (
	mod1 = "mod-alice"
	mod2 = "mod-bob"
	sub1 = "submitter-1"
)

func newTestService(t *testing.T, capacity int, rule ratelimit.Rule) *Service {
	t.Helper()
	return NewService(
		[]string{mod1, mod2},
		queue.NewStore(capacity),
		ratelimit.NewLimiter(rule),
		300,
	)
}

func text(body string) queue.Content {
	return queue.Content{Kind: queue.KindText, Text: body}
}

func submit(t *testing.T, s *Service, submitter, body string) int64 {
	t.Helper()
	acc, err := s.SubmitContent(submitter, text(body), time.Now())
	if err != nil {
		t.Fatalf("SubmitContent(%q) error: %v", body, err)
	}
	return acc.ID
}

func TestSubmitContent_Accepted(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)

	acc, err := s.SubmitContent(sub1, text("hello"), time.Now())
	if err != nil {
		t.Fatalf("SubmitContent() error: %v", err)
	}
	if acc.ID != 1 || acc.Position != 1 || acc.QueueSize != 1 {
		t.Errorf("Accepted = %+v, want id=1 position=1/1", acc)
	}
}

func TestSubmitContent_RateLimited(t *testing.T) {
	rule := ratelimit.Rule{Limit: 3, Window: 300 * time.Second}
	s := newTestService(t, 50, rule)
	now := time.Now()

	for i := 0; i < rule.Limit; i++ {
		if _, err := s.SubmitContent(sub1, text("x"), now); err != nil {
			t.Fatalf("submission %d error: %v", i+1, err)
		}
	}

	_, err := s.SubmitContent(sub1, text("one too many"), now.Add(time.Second))
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rl.Wait <= 0 || rl.Wait > rule.Window {
		t.Errorf("wait = %v, want in (0, %v]", rl.Wait, rule.Window)
	}

	// After the quoted wait elapses, a retry succeeds.
	if _, err := s.SubmitContent(sub1, text("retry"), now.Add(time.Second).Add(rl.Wait).Add(time.Second)); err != nil {
		t.Fatalf("retry after wait should succeed, got %v", err)
	}
}

func TestSubmitContent_QueueFull(t *testing.T) {
	s := newTestService(t, 2, ratelimit.Rule{Limit: 100, Window: time.Minute})
	now := time.Now()

	s.SubmitContent("a", text("1"), now)
	s.SubmitContent("b", text("2"), now)

	if _, err := s.SubmitContent("c", text("3"), now); !errors.Is(err, queue.ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}

	// A full-queue refusal must not count against the submitter's window:
	// rejecting one item frees the slot for the same submitter.
	if _, err := s.ModeratorAction(mod1, ActionReject, 1); err != nil {
		t.Fatalf("reject error: %v", err)
	}
	if _, err := s.SubmitContent("c", text("3"), now); err != nil {
		t.Fatalf("submission after slot freed should succeed, got %v", err)
	}
}

func TestSubmitContent_UnknownKind(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)

	_, err := s.SubmitContent(sub1, queue.Content{Kind: "sticker"}, time.Now())
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for unknown kind, got %v", err)
	}
}

func TestSubmitContent_ScreeningFlag(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)
	id := submit(t, s, sub1, "visit https://spam.xyz/click now")

	snap, err := s.Store().Get(id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if snap.ScreenFlag != "url" {
		t.Errorf("ScreenFlag = %q, want %q", snap.ScreenFlag, "url")
	}
}

func TestModeratorAction_Unauthorized(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)
	id := submit(t, s, sub1, "hello")

	if _, err := s.ModeratorAction("random-user", ActionApprove, id); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// The submission must be untouched.
	if _, err := s.Store().Get(id); err != nil {
		t.Fatalf("submission should survive unauthorized action: %v", err)
	}
}

func TestModeratorAction_ApproveEmitsEffects(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)
	id := submit(t, s, sub1, "hello")

	res, err := s.ModeratorAction(mod1, ActionApprove, id)
	if err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if !res.Decided {
		t.Error("approve must mark the result decided")
	}
	if res.Publish == nil || res.Publish.Body != "hello" || res.Publish.SubmissionID != id {
		t.Errorf("Publish = %+v", res.Publish)
	}
	if res.Notice == nil || res.Notice.SubmitterID != sub1 || res.Notice.Outcome != OutcomeApproved {
		t.Errorf("Notice = %+v", res.Notice)
	}
	if len(res.View.Actions) != 0 {
		t.Errorf("terminal view must not be actionable: %v", res.View.Actions)
	}
	if _, err := s.Store().Get(id); !errors.Is(err, queue.ErrNotFound) {
		t.Error("approved submission must leave the store")
	}
}

func TestModeratorAction_RejectEmitsNoticeOnly(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)
	id := submit(t, s, sub1, "hello")

	res, err := s.ModeratorAction(mod1, ActionReject, id)
	if err != nil {
		t.Fatalf("reject error: %v", err)
	}
	if res.Publish != nil {
		t.Error("reject must not publish anything")
	}
	if res.Notice == nil || res.Notice.Outcome != OutcomeRejected {
		t.Errorf("Notice = %+v", res.Notice)
	}
}

func TestModeratorAction_ConcurrentDecisionSingleWinner(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)
	id := submit(t, s, sub1, "contested")

	var wg sync.WaitGroup
	type outcome struct {
		res *Result
		err error
	}
	results := make([]outcome, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		res, err := s.ModeratorAction(mod1, ActionApprove, id)
		results[0] = outcome{res, err}
	}()
	go func() {
		defer wg.Done()
		res, err := s.ModeratorAction(mod2, ActionReject, id)
		results[1] = outcome{res, err}
	}()
	wg.Wait()

	var applied, notFound, publishes int
	for _, r := range results {
		switch {
		case r.err == nil:
			applied++
			if r.res.Publish != nil {
				publishes++
			}
		case errors.Is(r.err, queue.ErrNotFound):
			notFound++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if applied != 1 || notFound != 1 {
		t.Fatalf("want exactly one winner and one loser, got applied=%d notFound=%d", applied, notFound)
	}
	if publishes > 1 {
		t.Fatalf("at most one publish effect may be emitted, got %d", publishes)
	}
}

func TestEditRoundTrip(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)
	id := submit(t, s, sub1, "hello")

	// requestEdit prompts with the current content.
	res, err := s.ModeratorAction(mod1, ActionRequestEdit, id)
	if err != nil {
		t.Fatalf("request_edit error: %v", err)
	}
	if !strings.Contains(res.View.Body, "hello") {
		t.Errorf("edit prompt should show current content: %q", res.View.Body)
	}

	// The moderator's next text input becomes the override.
	gotID, res, err := s.ModeratorTextInput(mod1, "hello world")
	if err != nil {
		t.Fatalf("text input error: %v", err)
	}
	if gotID != id {
		t.Errorf("edit applied to %d, want %d", gotID, id)
	}
	if !strings.Contains(res.View.Body, "hello world") {
		t.Errorf("re-rendered view should show the override: %q", res.View.Body)
	}

	// Details keeps both original and override visible.
	res, err = s.ModeratorAction(mod2, ActionDetails, id)
	if err != nil {
		t.Fatalf("details error: %v", err)
	}
	if !strings.Contains(res.View.Body, "Original text: hello") ||
		!strings.Contains(res.View.Body, "Edited text: hello world") {
		t.Errorf("details view = %q", res.View.Body)
	}

	// Approval publishes the override, not the original.
	res, err = s.ModeratorAction(mod2, ActionApprove, id)
	if err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if res.Publish.Body != "hello world" {
		t.Errorf("published %q, want the edited body", res.Publish.Body)
	}

	entries, err := s.ListPending(mod1)
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("queue should be empty after approval, got %d entries", len(entries))
	}
}

func TestModeratorTextInput_NoSession(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)

	_, _, err := s.ModeratorTextInput(mod1, "just chatting")
	if !errors.Is(err, editsession.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestModeratorTextInput_StaleSession(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)
	id := submit(t, s, sub1, "hello")

	s.ModeratorAction(mod1, ActionRequestEdit, id)

	// Another moderator approves while mod1 composes the edit: allowed by
	// design, the edit session goes stale.
	if _, err := s.ModeratorAction(mod2, ActionApprove, id); err != nil {
		t.Fatalf("approve during edit session error: %v", err)
	}

	_, _, err := s.ModeratorTextInput(mod1, "too late")
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("stale edit input should report not-found, got %v", err)
	}
}

func TestModeratorAction_CancelEdit(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)
	id := submit(t, s, sub1, "hello")

	s.ModeratorAction(mod1, ActionRequestEdit, id)
	res, err := s.ModeratorAction(mod1, ActionCancelEdit, id)
	if err != nil {
		t.Fatalf("cancel_edit error: %v", err)
	}
	if !strings.Contains(res.View.Body, "hello") {
		t.Errorf("cancel should re-render the compact view: %q", res.View.Body)
	}

	snap, _ := s.Store().Get(id)
	if snap.Status != queue.StatusPending || snap.Edited {
		t.Errorf("cancel must revert status and leave content alone: %+v", snap)
	}
}

func TestModeratorAction_BadRequest(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)

	if _, err := s.ModeratorAction(mod1, Action("explode"), 1); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	if _, err := ParseAction("explode"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("ParseAction should reject unknown actions")
	}
	if a, err := ParseAction("approve"); err != nil || a != ActionApprove {
		t.Fatalf("ParseAction(approve) = (%v, %v)", a, err)
	}
}

func TestListPending_OrderAndAuth(t *testing.T) {
	s := newTestService(t, 50, ratelimit.Rule{Limit: 100, Window: time.Minute})

	submit(t, s, "a", "first")
	submit(t, s, "b", "second")
	submit(t, s, "c", "third")
	s.ModeratorAction(mod1, ActionReject, 2)

	entries, err := s.ListPending(mod1)
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != 1 || entries[1].ID != 3 {
		t.Errorf("entries = %+v", entries)
	}

	if _, err := s.ListPending("random-user"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-moderator listing")
	}
}

// TestScenario_SubmitEditApprovePublish walks the full happy path from the
// submitter's message to the published override.
func TestScenario_SubmitEditApprovePublish(t *testing.T) {
	s := newTestService(t, 50, ratelimit.RuleSubmit)

	acc, err := s.SubmitContent("s1", text("hello"), time.Now())
	if err != nil {
		t.Fatalf("SubmitContent() error: %v", err)
	}
	if acc.ID != 1 || acc.Position != 1 || acc.QueueSize != 1 {
		t.Fatalf("Accepted = %+v, want id=1 position=1/1", acc)
	}

	if _, err := s.ModeratorAction(mod1, ActionRequestEdit, 1); err != nil {
		t.Fatalf("request_edit error: %v", err)
	}
	if _, _, err := s.ModeratorTextInput(mod1, "hello world"); err != nil {
		t.Fatalf("edit input error: %v", err)
	}

	res, err := s.ModeratorAction(mod1, ActionApprove, 1)
	if err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if res.Publish == nil || res.Publish.Body != "hello world" {
		t.Fatalf("publish effect = %+v, want body %q", res.Publish, "hello world")
	}

	entries, _ := s.ListPending(mod1)
	if len(entries) != 0 {
		t.Fatalf("queue not empty after approval: %+v", entries)
	}
}
