package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gatherly/meetsync/pkg/models"
)

// Grace period after an owner's scheduled end before the meeting becomes a
// candidate for a provider-side end check.
const autoEndGrace = 10 * time.Minute

const (
	queryAutoEndEvent = `
SELECT m.id AS meeting_id, m.provider_id, m.provider_meeting_id, e.ends_at AS ended_at
FROM meetings m
JOIN events e ON e.id = m.event_id
WHERE m.auto_end_check_at IS NULL
	AND m.provider_meeting_id IS NOT NULL
	AND e.ends_at IS NOT NULL
	AND e.ends_at < now() - interval '10 minutes'
ORDER BY e.ends_at DESC, m.id
LIMIT 1
FOR UPDATE OF m SKIP LOCKED;`

	queryAutoEndSession = `
SELECT m.id AS meeting_id, m.provider_id, m.provider_meeting_id, s.ends_at AS ended_at
FROM meetings m
JOIN sessions s ON s.id = m.session_id
WHERE m.auto_end_check_at IS NULL
	AND m.provider_meeting_id IS NOT NULL
	AND s.ends_at IS NOT NULL
	AND s.ends_at < now() - interval '10 minutes'
ORDER BY s.ends_at DESC, m.id
LIMIT 1
FOR UPDATE OF m SKIP LOCKED;`
)

type autoEndRow struct {
	MeetingID         int64     `db:"meeting_id"`
	ProviderID        string    `db:"provider_id"`
	ProviderMeetingID string    `db:"provider_meeting_id"`
	EndedAt           time.Time `db:"ended_at"`
}

// AutoEndClaim is one claimed meeting awaiting a provider-side end check.
// Same discipline as Claim: one RecordChecked or Release per claim.
type AutoEndClaim struct {
	tx   *sqlx.Tx
	task models.AutoEndTask
	done bool
}

func (c *AutoEndClaim) Task() models.AutoEndTask {
	return c.task
}

func (c *AutoEndClaim) Release() error {
	if c.done {
		return nil
	}
	c.done = true
	return c.tx.Rollback()
}

// RecordChecked stamps the check bookkeeping so the meeting is never
// selected again, and commits the claim.
func (c *AutoEndClaim) RecordChecked(ctx context.Context, outcome string) error {
	if c.done {
		return ErrTaskConflict
	}
	query := `
UPDATE meetings
SET auto_end_check_at = now(),
	auto_end_check_outcome = $2,
	updated_at = now()
WHERE id = $1;`
	if _, err := c.tx.ExecContext(ctx, query, c.task.MeetingID, outcome); err != nil {
		c.done = true
		_ = c.tx.Rollback()
		return fmt.Errorf("err recording auto-end check for meeting %d: %w", c.task.MeetingID, err)
	}
	c.done = true
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("err committing auto-end check: %w", err)
	}
	return nil
}

// DequeueAutoEndTask returns at most one meeting whose owner ended at least
// the grace period ago and has not been checked yet. Event-level meetings
// are preferred over session-level, most recently ended first.
func (s *Store) DequeueAutoEndTask(ctx context.Context) (*AutoEndClaim, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("err starting auto-end tx: %w", err)
	}
	for _, query := range []string{queryAutoEndEvent, queryAutoEndSession} {
		var row autoEndRow
		err = tx.GetContext(ctx, &row, query)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			_ = tx.Rollback()
			return nil, fmt.Errorf("err probing auto-end candidates: %w", err)
		}
		return &AutoEndClaim{tx: tx, task: models.AutoEndTask{
			MeetingID:         row.MeetingID,
			ProviderID:        row.ProviderID,
			ProviderMeetingID: row.ProviderMeetingID,
			EndedAt:           row.EndedAt,
		}}, nil
	}
	_ = tx.Rollback()
	return nil, nil
}
