package ban

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and
// removes leftover test keys. Tests using this helper require a running
// Redis on localhost:6379 and are skipped otherwise.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		for _, pattern := range []string{KeyPrefix + "test_*", StrikesPrefix + "test_*"} {
			iter := client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewStore(client)
}

func TestIsBanned_NotBanned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	banned, remaining, reason, err := store.IsBanned(ctx, "test_clean")
	if err != nil {
		t.Fatalf("IsBanned() error: %v", err)
	}
	if banned {
		t.Errorf("expected not banned, got banned (remaining=%d reason=%q)", remaining, reason)
	}
}

func TestBanAndCheck(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := "test_banned"

	if err := store.Ban(ctx, id, 30*time.Second, "spam"); err != nil {
		t.Fatalf("Ban() error: %v", err)
	}

	banned, remaining, reason, err := store.IsBanned(ctx, id)
	if err != nil {
		t.Fatalf("IsBanned() error: %v", err)
	}
	if !banned {
		t.Fatal("expected banned=true")
	}
	if reason != "spam" {
		t.Errorf("reason = %q, want %q", reason, "spam")
	}
	if remaining <= 0 || remaining > 30 {
		t.Errorf("remaining = %d, want in (0,30]", remaining)
	}
}

func TestUnban(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := "test_unban"

	if err := store.Ban(ctx, id, time.Minute, "test"); err != nil {
		t.Fatalf("Ban() error: %v", err)
	}
	if err := store.Unban(ctx, id); err != nil {
		t.Fatalf("Unban() error: %v", err)
	}

	banned, _, _, err := store.IsBanned(ctx, id)
	if err != nil {
		t.Fatalf("IsBanned() error: %v", err)
	}
	if banned {
		t.Error("expected not banned after Unban()")
	}
}

func TestStrikeDuration(t *testing.T) {
	cases := []struct {
		strikes  int
		expected time.Duration
	}{
		{0, BanFirst},
		{1, BanFirst},
		{2, BanSecond},
		{3, BanThird},
		{10, BanThird},
	}
	for _, tc := range cases {
		if got := strikeDuration(tc.strikes); got != tc.expected {
			t.Errorf("strikeDuration(%d) = %v, want %v", tc.strikes, got, tc.expected)
		}
	}
}

func TestStrike_Escalates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := "test_strikes"

	d1, err := store.Strike(ctx, id, "flooding")
	if err != nil {
		t.Fatalf("Strike() error: %v", err)
	}
	if d1 != BanFirst {
		t.Errorf("first strike duration = %v, want %v", d1, BanFirst)
	}

	d2, err := store.Strike(ctx, id, "flooding")
	if err != nil {
		t.Fatalf("Strike() error: %v", err)
	}
	if d2 != BanSecond {
		t.Errorf("second strike duration = %v, want %v", d2, BanSecond)
	}

	banned, _, reason, err := store.IsBanned(ctx, id)
	if err != nil {
		t.Fatalf("IsBanned() error: %v", err)
	}
	if !banned || reason != "flooding" {
		t.Errorf("expected flooding ban, got banned=%v reason=%q", banned, reason)
	}
}
