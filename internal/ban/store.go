// Package ban provides Redis-backed submitter bans for the gateway. A banned
// submitter is refused before rate limiting even runs. Ban records are plain
// key-value pairs with TTL-based expiry:
//
//	Key:   ban:submitter:<id>
//	Value: <reason>
//	TTL:   ban duration
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for submitter ban records.
	KeyPrefix = "ban:submitter:"

	// StrikesPrefix is the Redis key prefix for repeat-offense counters.
	StrikesPrefix = "strikes:submitter:"

	// Escalating ban durations by offense count.
	BanFirst  = 1 * time.Hour
	BanSecond = 24 * time.Hour
	BanThird  = 7 * 24 * time.Hour

	// StrikesTTL is how long the offense counter lives. A submitter with
	// no new strikes for this long starts over at zero.
	StrikesTTL = 7 * 24 * time.Hour
)

// Store manages submitter bans in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a ban store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsBanned checks whether a submitter is currently banned. Returns
// (banned, remainingSeconds, reason, error). Redis errors are returned so
// the caller can choose a policy; the gateway fails open so a Redis outage
// never blocks legitimate submissions.
func (s *Store) IsBanned(ctx context.Context, submitterID string) (bool, int, string, error) {
	key := KeyPrefix + submitterID

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", err
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		// The ban exists but the TTL read failed. Report banned with 0
		// remaining rather than swallowing the ban.
		return true, 0, reason, nil
	}

	remaining := 0
	if ttl > 0 {
		remaining = int(ttl.Seconds())
	}
	return true, remaining, reason, nil
}

// Ban bans a submitter for the given duration with a reason. The ban expires
// automatically.
func (s *Store) Ban(ctx context.Context, submitterID string, duration time.Duration, reason string) error {
	return s.client.Set(ctx, KeyPrefix+submitterID, reason, duration).Err()
}

// Unban lifts a submitter's ban immediately.
func (s *Store) Unban(ctx context.Context, submitterID string) error {
	return s.client.Del(ctx, KeyPrefix+submitterID).Err()
}

// strikeDuration returns the escalating ban duration for an offense count.
func strikeDuration(strikes int) time.Duration {
	switch {
	case strikes <= 1:
		return BanFirst
	case strikes == 2:
		return BanSecond
	default:
		return BanThird
	}
}

// Strike records an offense against a submitter and applies a ban whose
// duration escalates with the running strike count:
//
//	1st strike  -> 1 hour
//	2nd strike  -> 24 hours
//	3rd+ strike -> 7 days
//
// The counter has a TTL that is set on first increment, so a clean stretch
// eventually resets the escalation. Returns the applied ban duration.
func (s *Store) Strike(ctx context.Context, submitterID, reason string) (time.Duration, error) {
	key := StrikesPrefix + submitterID

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ban: strike incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, StrikesTTL).Err(); err != nil {
			return 0, fmt.Errorf("ban: strike expire: %w", err)
		}
	}

	duration := strikeDuration(int(count))
	if err := s.Ban(ctx, submitterID, duration, reason); err != nil {
		return 0, fmt.Errorf("ban: strike ban: %w", err)
	}
	return duration, nil
}
