package pgstore

import (
	"context"
	"fmt"

	"github.com/gatherly/meetsync/pkg/models"
)

// RecordSynced applies a successful create or update: the meeting row is
// upserted with the provider's fields and the owner is marked converged.
// Commits the claim.
func (c *Claim) RecordSynced(ctx context.Context, meeting models.ProviderMeeting) error {
	if c.done {
		return ErrTaskConflict
	}
	task := c.task

	upsert := `
INSERT INTO meetings (event_id, session_id, provider_id, provider_meeting_id, join_url, password, host_email, starts_at, ends_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (event_id) WHERE event_id IS NOT NULL DO UPDATE
SET provider_id = EXCLUDED.provider_id,
	provider_meeting_id = EXCLUDED.provider_meeting_id,
	join_url = EXCLUDED.join_url,
	password = EXCLUDED.password,
	host_email = EXCLUDED.host_email,
	starts_at = EXCLUDED.starts_at,
	ends_at = EXCLUDED.ends_at,
	updated_at = now();`
	if task.SessionID != nil {
		upsert = `
INSERT INTO meetings (event_id, session_id, provider_id, provider_meeting_id, join_url, password, host_email, starts_at, ends_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (session_id) WHERE session_id IS NOT NULL DO UPDATE
SET provider_id = EXCLUDED.provider_id,
	provider_meeting_id = EXCLUDED.provider_meeting_id,
	join_url = EXCLUDED.join_url,
	password = EXCLUDED.password,
	host_email = EXCLUDED.host_email,
	starts_at = EXCLUDED.starts_at,
	ends_at = EXCLUDED.ends_at,
	updated_at = now();`
	}
	if _, err := c.tx.ExecContext(ctx, upsert,
		task.EventID, task.SessionID, meeting.ProviderID, meeting.ProviderMeetingID,
		meeting.JoinURL, meeting.Password, meeting.HostEmail, task.StartsAt, task.EndsAt); err != nil {
		return c.fail(fmt.Errorf("err upserting meeting: %w", err))
	}
	if err := c.markOwnerSynced(ctx, nil); err != nil {
		return err
	}
	return c.commit()
}

// RecordDeleted applies a successful provider-side deletion (or the absence
// of anything to delete): the meeting row goes away and the owner is marked
// converged. Commits the claim.
func (c *Claim) RecordDeleted(ctx context.Context) error {
	if c.done {
		return ErrTaskConflict
	}
	if err := c.deleteMeetingRow(ctx); err != nil {
		return err
	}
	if c.task.EventID != nil || c.task.SessionID != nil {
		if err := c.markOwnerSynced(ctx, nil); err != nil {
			return err
		}
	}
	return c.commit()
}

// RecordError stores the failure on the owner. The owner is also marked in
// sync, which drops the unit from the dequeuer's selection set until its
// desire changes again; transient provider failures are therefore not
// retried automatically. A pure orphan has nothing to annotate, so its row
// is deleted instead. Commits the claim.
func (c *Claim) RecordError(ctx context.Context, message string) error {
	if c.done {
		return ErrTaskConflict
	}
	if c.task.EventID == nil && c.task.SessionID == nil {
		if err := c.deleteMeetingRow(ctx); err != nil {
			return err
		}
		return c.commit()
	}
	if err := c.markOwnerSynced(ctx, &message); err != nil {
		return err
	}
	return c.commit()
}

func (c *Claim) markOwnerSynced(ctx context.Context, meetingError *string) error {
	var query string
	var ownerID int64
	switch {
	case c.task.EventID != nil:
		query = `
UPDATE events
SET meeting_in_sync = true,
	meeting_error = $2,
	updated_at = now()
WHERE id = $1;`
		ownerID = *c.task.EventID
	case c.task.SessionID != nil:
		query = `
UPDATE sessions
SET meeting_in_sync = true,
	meeting_error = $2,
	updated_at = now()
WHERE id = $1;`
		ownerID = *c.task.SessionID
	default:
		return c.fail(ErrTaskConflict)
	}
	res, err := c.tx.ExecContext(ctx, query, ownerID, meetingError)
	if err != nil {
		return c.fail(fmt.Errorf("err marking owner %d synced: %w", ownerID, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return c.fail(ErrTaskConflict)
	}
	return nil
}

func (c *Claim) deleteMeetingRow(ctx context.Context) error {
	if c.task.MeetingID == nil {
		return nil
	}
	if _, err := c.tx.ExecContext(ctx, `DELETE FROM meetings WHERE id = $1`, *c.task.MeetingID); err != nil {
		return c.fail(fmt.Errorf("err deleting meeting %d: %w", *c.task.MeetingID, err))
	}
	return nil
}

func (c *Claim) commit() error {
	c.done = true
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("err committing claim: %w", err)
	}
	return nil
}

func (c *Claim) fail(err error) error {
	c.done = true
	_ = c.tx.Rollback()
	return err
}
