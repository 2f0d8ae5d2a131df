// Package audit provides PostgreSQL-backed storage for moderation decisions
// and published posts. Every approve or reject is recorded with the acting
// moderator and the content as it stood at decision time, so disputes can be
// reviewed after the queue entry itself is gone.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Decision outcomes persisted to the decisions table, matching the CHECK
// constraint on the outcome column.
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
)

// Store manages audit records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Decision represents a single moderation decision to be persisted.
type Decision struct {
	SubmissionID int64
	SubmitterID  string
	ModeratorID  string
	Outcome      string
	Kind         string
	Body         string // content as published or rejected, after edit overrides
	Edited       bool
	ScreenFlag   string
	SubmittedAt  time.Time
}

// PublishedPost records one delivery of approved content to the public
// channel, written by the publisher service after the send succeeds.
type PublishedPost struct {
	SubmissionID int64
	Kind         string
	Body         string
	FileRef      string
}

// NewStore creates an audit store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordDecision inserts a moderation decision. The outcome is validated
// against the allowed set before insertion.
func (s *Store) RecordDecision(ctx context.Context, d *Decision) error {
	if d.Outcome != OutcomeApproved && d.Outcome != OutcomeRejected {
		return fmt.Errorf("audit: invalid outcome %q", d.Outcome)
	}

	const query = `
		INSERT INTO decisions (submission_id, submitter_id, moderator_id, outcome, kind, body, edited, screen_flag, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		d.SubmissionID,
		d.SubmitterID,
		d.ModeratorID,
		d.Outcome,
		d.Kind,
		d.Body,
		d.Edited,
		d.ScreenFlag,
		d.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert decision: %w", err)
	}
	return nil
}

// RecordPublished inserts a published-post record.
func (s *Store) RecordPublished(ctx context.Context, p *PublishedPost) error {
	const query = `
		INSERT INTO published_posts (submission_id, kind, body, file_ref)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, p.SubmissionID, p.Kind, p.Body, p.FileRef)
	if err != nil {
		return fmt.Errorf("audit: insert published post: %w", err)
	}
	return nil
}

// CountRecentRejections returns the number of rejections recorded against a
// submitter within the given window. Used by the strike escalation logic.
func (s *Store) CountRecentRejections(ctx context.Context, submitterID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM decisions
		WHERE submitter_id = $1
		  AND outcome = 'rejected'
		  AND decided_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, submitterID, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("audit: count recent rejections: %w", err)
	}
	return count, nil
}

// DecisionsByModerator returns per-moderator decision counts since the given
// time, most active first.
func (s *Store) DecisionsByModerator(ctx context.Context, since time.Time) (map[string]int, error) {
	const query = `
		SELECT moderator_id, COUNT(*)
		FROM decisions
		WHERE decided_at >= $1
		GROUP BY moderator_id
		ORDER BY COUNT(*) DESC`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("audit: decisions by moderator: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var moderatorID string
		var n int
		if err := rows.Scan(&moderatorID, &n); err != nil {
			return nil, fmt.Errorf("audit: scan moderator count: %w", err)
		}
		counts[moderatorID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate moderator counts: %w", err)
	}
	return counts, nil
}
