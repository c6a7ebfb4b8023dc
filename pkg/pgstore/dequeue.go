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

const defaultDurationSecs = 3600

// Claim is one dequeued unit of reconciliation work. It holds the row lock
// on an open transaction; the claimant must finish it with exactly one
// recorder call, or Release it so the unit becomes selectable again. A
// claimant that dies without doing either releases the lock by rollback,
// which is the engine's only retry mechanism.
type Claim struct {
	store *Store
	tx    *sqlx.Tx
	task  models.MeetingTask
	done  bool
}

func (c *Claim) Task() models.MeetingTask {
	return c.task
}

// Release rolls the claim back without recording an outcome. The unit stays
// pending and resurfaces on a later poll.
func (c *Claim) Release() error {
	if c.done {
		return nil
	}
	c.done = true
	return c.tx.Rollback()
}

type taskRow struct {
	OwnerID           int64      `db:"owner_id"`
	Title             string     `db:"title"`
	StartsAt          *time.Time `db:"starts_at"`
	EndsAt            *time.Time `db:"ends_at"`
	Timezone          string     `db:"timezone"`
	Hosts             string     `db:"meeting_hosts"`
	RequiresPassword  bool       `db:"meeting_requires_password"`
	MeetingID         *int64     `db:"meeting_id"`
	ProviderID        *string    `db:"provider_id"`
	ProviderMeetingID *string    `db:"provider_meeting_id"`
	JoinURL           *string    `db:"join_url"`
	Password          *string    `db:"password"`
}

// The five priority classes, probed in order: creates and updates before
// deletes, events before sessions, orphans last. SKIP LOCKED makes a row
// claimed by another in-flight worker invisible instead of blocking on it.
const (
	queryEventUpsert = `
SELECT e.id AS owner_id, e.title, e.starts_at, e.ends_at, e.timezone,
	e.meeting_hosts, e.meeting_requires_password,
	m.id AS meeting_id, m.provider_id, m.provider_meeting_id, m.join_url, m.password
FROM events e
LEFT JOIN meetings m ON m.event_id = e.id
WHERE e.meeting_requested
	AND NOT e.meeting_in_sync
	AND NOT e.deleted AND NOT e.canceled AND e.published
ORDER BY e.starts_at ASC NULLS LAST, e.id
LIMIT 1
FOR UPDATE OF e SKIP LOCKED;`

	querySessionUpsert = `
SELECT s.id AS owner_id, s.title, s.starts_at, s.ends_at, s.timezone,
	s.meeting_hosts, s.meeting_requires_password,
	m.id AS meeting_id, m.provider_id, m.provider_meeting_id, m.join_url, m.password
FROM sessions s
JOIN events ev ON ev.id = s.event_id
LEFT JOIN meetings m ON m.session_id = s.id
WHERE s.meeting_requested
	AND NOT s.meeting_in_sync
	AND NOT s.deleted AND NOT s.canceled
	AND NOT ev.deleted AND NOT ev.canceled AND ev.published
ORDER BY s.starts_at ASC NULLS LAST, s.id
LIMIT 1
FOR UPDATE OF s SKIP LOCKED;`

	queryEventDelete = `
SELECT e.id AS owner_id, e.title, e.starts_at, e.ends_at, e.timezone,
	e.meeting_hosts, e.meeting_requires_password,
	m.id AS meeting_id, m.provider_id, m.provider_meeting_id, m.join_url, m.password
FROM events e
LEFT JOIN meetings m ON m.event_id = e.id
WHERE NOT e.meeting_in_sync
	AND (NOT e.meeting_requested OR e.deleted OR e.canceled OR NOT e.published)
ORDER BY e.starts_at ASC NULLS LAST, e.id
LIMIT 1
FOR UPDATE OF e SKIP LOCKED;`

	querySessionDelete = `
SELECT s.id AS owner_id, s.title, s.starts_at, s.ends_at, s.timezone,
	s.meeting_hosts, s.meeting_requires_password,
	m.id AS meeting_id, m.provider_id, m.provider_meeting_id, m.join_url, m.password
FROM sessions s
JOIN events ev ON ev.id = s.event_id
LEFT JOIN meetings m ON m.session_id = s.id
WHERE NOT s.meeting_in_sync
	AND (NOT s.meeting_requested OR s.deleted OR s.canceled
		OR ev.deleted OR ev.canceled OR NOT ev.published)
ORDER BY s.starts_at ASC NULLS LAST, s.id
LIMIT 1
FOR UPDATE OF s SKIP LOCKED;`

	queryOrphanDelete = `
SELECT m.id AS meeting_id, m.provider_id, m.provider_meeting_id, m.join_url, m.password
FROM meetings m
WHERE m.event_id IS NULL AND m.session_id IS NULL
ORDER BY m.updated_at ASC, m.id
LIMIT 1
FOR UPDATE SKIP LOCKED;`
)

// DequeueMeetingTask returns at most one pending unit of work, claimed for
// the caller, or nil when the queue is empty. Safe to call from any number
// of concurrent workers: no two callers receive the same unit.
func (s *Store) DequeueMeetingTask(ctx context.Context) (*Claim, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("err starting dequeue tx: %w", err)
	}
	claim, err := s.probeClasses(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if claim == nil {
		_ = tx.Rollback()
		return nil, nil
	}
	return claim, nil
}

func (s *Store) probeClasses(ctx context.Context, tx *sqlx.Tx) (*Claim, error) {
	classes := []struct {
		name      string
		query     string
		sessionID bool
		delete    bool
	}{
		{name: "event_upsert", query: queryEventUpsert},
		{name: "session_upsert", query: querySessionUpsert, sessionID: true},
		{name: "event_delete", query: queryEventDelete, delete: true},
		{name: "session_delete", query: querySessionDelete, sessionID: true, delete: true},
	}
	var row taskRow
	for _, class := range classes {
		err := tx.GetContext(ctx, &row, class.query)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return nil, fmt.Errorf("err probing %s: %w", class.name, err)
		}
		task := taskFromRow(row, class.sessionID, class.delete)
		s.log.WithField("class", class.name).Debugf("dequeued owner %d", row.OwnerID)
		return &Claim{store: s, tx: tx, task: task}, nil
	}

	var orphan taskRow
	err := tx.GetContext(ctx, &orphan, queryOrphanDelete)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("err probing orphan_delete: %w", err)
	}
	task := models.MeetingTask{
		State:     models.StateOrphan,
		Delete:    true,
		MeetingID: orphan.MeetingID,
	}
	fillProviderFields(&task, orphan)
	s.log.WithField("class", "orphan_delete").Debugf("dequeued meeting %d", *orphan.MeetingID)
	return &Claim{store: s, tx: tx, task: task}, nil
}

func taskFromRow(row taskRow, session, del bool) models.MeetingTask {
	state := models.StateWanted
	if del {
		state = models.StatePendingDeletion
	}
	task := models.MeetingTask{
		State:            state,
		Delete:           del,
		MeetingID:        row.MeetingID,
		Topic:            row.Title,
		StartsAt:         row.StartsAt,
		EndsAt:           row.EndsAt,
		Timezone:         row.Timezone,
		DurationSecs:     durationSecs(row.StartsAt, row.EndsAt),
		Hosts:            models.SplitHosts(row.Hosts),
		RequiresPassword: row.RequiresPassword,
	}
	owner := row.OwnerID
	if session {
		task.SessionID = &owner
	} else {
		task.EventID = &owner
	}
	fillProviderFields(&task, row)
	return task
}

func fillProviderFields(task *models.MeetingTask, row taskRow) {
	if row.ProviderID != nil {
		task.ProviderID = *row.ProviderID
	}
	if row.ProviderMeetingID != nil {
		task.ProviderMeetingID = *row.ProviderMeetingID
	}
	if row.JoinURL != nil {
		task.JoinURL = *row.JoinURL
	}
	if row.Password != nil {
		task.Password = *row.Password
	}
}

func durationSecs(startsAt, endsAt *time.Time) int {
	if startsAt == nil || endsAt == nil {
		return defaultDurationSecs
	}
	secs := int(endsAt.Sub(*startsAt) / time.Second)
	if secs <= 0 {
		return defaultDurationSecs
	}
	return secs
}
