package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"

	"github.com/gatherly/meetsync/pkg/models"
)

//go:embed migrations
var migrations embed.FS

const retries = 3

type Store struct {
	log *logrus.Entry
	db  *sqlx.DB
}

var (
	ErrEventNotFound   = fmt.Errorf("event not found")
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrMeetingNotFound = fmt.Errorf("meeting not found")
	// ErrNoHostAvailable means every candidate host is at its concurrent
	// meeting cap for the requested window. Transient: release the claim
	// and let the unit resurface on a later poll.
	ErrNoHostAvailable = fmt.Errorf("no host available")
	// ErrTaskConflict means the claimed row no longer matched its selection
	// predicate by the time the outcome was recorded.
	ErrTaskConflict = fmt.Errorf("task no longer matches its claim")
)

func NewStore(ctx context.Context, log *logrus.Logger, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		log: log.WithField("component", "pgstore"),
		db:  db,
	}, nil
}

func (s *Store) Migrate(direction migrate.MigrationDirection) error {
	assetDir := func() func(string) ([]string, error) {
		return func(path string) ([]string, error) {
			dirEntry, er := migrations.ReadDir(path)
			if er != nil {
				return nil, er
			}
			entries := make([]string, 0)
			for _, e := range dirEntry {
				entries = append(entries, e.Name())
			}

			return entries, nil
		}
	}()
	asset := migrate.AssetMigrationSource{
		Asset:    migrations.ReadFile,
		AssetDir: assetDir,
		Dir:      "migrations",
	}
	_, err := migrate.Exec(s.db.DB, "postgres", asset, direction)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateEvent(ctx context.Context, event models.Event) (models.Event, error) {
	var created models.Event
	query := `
INSERT INTO events (title, starts_at, ends_at, timezone, published, meeting_requested, meeting_in_sync, meeting_hosts, meeting_requires_password)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING *;`
	var err error
	for i := 0; i < retries; i++ {
		if err = s.db.GetContext(ctx, &created, query,
			event.Title, event.StartsAt, event.EndsAt, event.Timezone, event.Published,
			event.MeetingRequested, event.MeetingInSync, event.MeetingHosts, event.RequiresPassword); err != nil {
			continue
		}
		return created, nil
	}
	return models.Event{}, fmt.Errorf("err creating event: %w", err)
}

func (s *Store) GetEvent(ctx context.Context, id int64) (models.Event, error) {
	var event models.Event
	query := `
SELECT * FROM events
WHERE id = $1;`
	var err error
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &event, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.Event{}, ErrEventNotFound
		case err != nil:
			continue
		}
		return event, nil
	}
	return models.Event{}, fmt.Errorf("err getting event %d: %w", id, err)
}

func (s *Store) CreateSession(ctx context.Context, session models.Session) (models.Session, error) {
	var created models.Session
	query := `
INSERT INTO sessions (event_id, title, starts_at, ends_at, timezone, meeting_requested, meeting_in_sync, meeting_hosts, meeting_requires_password)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING *;`
	var err error
	for i := 0; i < retries; i++ {
		if err = s.db.GetContext(ctx, &created, query,
			session.EventID, session.Title, session.StartsAt, session.EndsAt, session.Timezone,
			session.MeetingRequested, session.MeetingInSync, session.MeetingHosts, session.RequiresPassword); err != nil {
			continue
		}
		return created, nil
	}
	return models.Session{}, fmt.Errorf("err creating session: %w", err)
}

func (s *Store) GetSession(ctx context.Context, id int64) (models.Session, error) {
	var session models.Session
	query := `
SELECT * FROM sessions
WHERE id = $1;`
	var err error
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &session, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.Session{}, ErrSessionNotFound
		case err != nil:
			continue
		}
		return session, nil
	}
	return models.Session{}, fmt.Errorf("err getting session %d: %w", id, err)
}

// UpdateEventMeetingWish is the only write the CRUD path makes against sync
// state: it declares desire and drops the convergence flag so the dequeuer
// picks the event up on the next poll.
func (s *Store) UpdateEventMeetingWish(ctx context.Context, id int64, requested bool) (models.Event, error) {
	var updated models.Event
	query := `
UPDATE events
SET meeting_requested = $2,
	meeting_in_sync = false,
	updated_at = now()
WHERE id = $1
RETURNING *;`
	err := s.db.GetContext(ctx, &updated, query, id, requested)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Event{}, ErrEventNotFound
	case err != nil:
		return models.Event{}, fmt.Errorf("err updating event %d meeting wish: %w", id, err)
	}
	return updated, nil
}

func (s *Store) UpdateSessionMeetingWish(ctx context.Context, id int64, requested bool) (models.Session, error) {
	var updated models.Session
	query := `
UPDATE sessions
SET meeting_requested = $2,
	meeting_in_sync = false,
	updated_at = now()
WHERE id = $1
RETURNING *;`
	err := s.db.GetContext(ctx, &updated, query, id, requested)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Session{}, ErrSessionNotFound
	case err != nil:
		return models.Session{}, fmt.Errorf("err updating session %d meeting wish: %w", id, err)
	}
	return updated, nil
}

// SetEventLifecycle flips the owner-level flags that decide whether a
// meeting should exist at all. Dropping the convergence flag lets the
// dequeuer re-evaluate the event and, through the owning-event predicate,
// its sessions.
func (s *Store) SetEventLifecycle(ctx context.Context, id int64, published, canceled, deleted bool) (models.Event, error) {
	var updated models.Event
	query := `
UPDATE events
SET published = $2,
	canceled = $3,
	deleted = $4,
	meeting_in_sync = CASE WHEN meeting_requested THEN false ELSE meeting_in_sync END,
	updated_at = now()
WHERE id = $1
RETURNING *;`
	err := s.db.GetContext(ctx, &updated, query, id, published, canceled, deleted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Event{}, ErrEventNotFound
	case err != nil:
		return models.Event{}, fmt.Errorf("err updating event %d lifecycle: %w", id, err)
	}
	// Sessions inherit the event's liveness, so their convergence has to be
	// re-evaluated too.
	_, err = s.db.ExecContext(ctx, `
UPDATE sessions
SET meeting_in_sync = false,
	updated_at = now()
WHERE event_id = $1 AND meeting_requested;`, id)
	if err != nil {
		return models.Event{}, fmt.Errorf("err re-marking sessions of event %d: %w", id, err)
	}
	return updated, nil
}

func (s *Store) GetMeetingByEvent(ctx context.Context, eventID int64) (models.Meeting, error) {
	return s.getMeeting(ctx, `SELECT * FROM meetings WHERE event_id = $1;`, eventID)
}

func (s *Store) GetMeetingBySession(ctx context.Context, sessionID int64) (models.Meeting, error) {
	return s.getMeeting(ctx, `SELECT * FROM meetings WHERE session_id = $1;`, sessionID)
}

func (s *Store) getMeeting(ctx context.Context, query string, ownerID int64) (models.Meeting, error) {
	var meeting models.Meeting
	var err error
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &meeting, query, ownerID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.Meeting{}, ErrMeetingNotFound
		case err != nil:
			continue
		}
		return meeting, nil
	}
	return models.Meeting{}, fmt.Errorf("err getting meeting for owner %d: %w", ownerID, err)
}

// InsertOrphanMeeting writes a meeting row with no owner. The reconciler
// only ever produces orphans through owner deletion; this exists for
// tooling and tests that need to seed one directly.
func (s *Store) InsertOrphanMeeting(ctx context.Context, meeting models.Meeting) (models.Meeting, error) {
	var created models.Meeting
	query := `
INSERT INTO meetings (provider_id, provider_meeting_id, join_url, password, host_email, starts_at, ends_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING *;`
	err := s.db.GetContext(ctx, &created, query,
		meeting.ProviderID, meeting.ProviderMeetingID, meeting.JoinURL, meeting.Password,
		meeting.HostEmail, meeting.StartsAt, meeting.EndsAt)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("err inserting orphan meeting: %w", err)
	}
	return created, nil
}

// RecordRecordingURL stores the recording link for a meeting identified by
// provider + provider-side meeting id. Independent of the sync flags.
func (s *Store) RecordRecordingURL(ctx context.Context, providerID, providerMeetingID, recordingURL string) error {
	query := `
UPDATE meetings
SET recording_url = $3,
	updated_at = now()
WHERE provider_id = $1 AND provider_meeting_id = $2;`
	res, err := s.db.ExecContext(ctx, query, providerID, providerMeetingID, recordingURL)
	if err != nil {
		return fmt.Errorf("err recording url for %s meeting %s: %w", providerID, providerMeetingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

func (s *Store) ResetTables(ctx context.Context, tables []string) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE TABLE `+strings.Join(tables, `, `)+` CASCADE`)
	for _, table := range tables {
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(`ALTER SEQUENCE %s_id_seq RESTART`, table))
		if err != nil {
			return err
		}
	}
	return err
}
