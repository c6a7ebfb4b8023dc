package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gatherly/meetsync/pkg/metrics"
	"github.com/gatherly/meetsync/pkg/models"
	"github.com/gatherly/meetsync/pkg/pgstore"
)

type Provider interface {
	ID() string
	CreateMeeting(ctx context.Context, req models.ProviderMeetingRequest) (models.ProviderMeeting, error)
	UpdateMeeting(ctx context.Context, providerMeetingID string, req models.ProviderMeetingRequest) (models.ProviderMeeting, error)
	DeleteMeeting(ctx context.Context, providerMeetingID string) error
	EndMeeting(ctx context.Context, providerMeetingID string) error
}

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type Claim interface {
	Task() models.MeetingTask
	AllocateHost(ctx context.Context, pool []string, maxPerHost int, startsAt, endsAt *time.Time) (string, error)
	RecordSynced(ctx context.Context, meeting models.ProviderMeeting) error
	RecordDeleted(ctx context.Context) error
	RecordError(ctx context.Context, message string) error
	Release() error
}

type AutoEndClaim interface {
	Task() models.AutoEndTask
	RecordChecked(ctx context.Context, outcome string) error
	Release() error
}

type Store interface {
	DequeueMeetingTask(ctx context.Context) (Claim, error)
	DequeueAutoEndTask(ctx context.Context) (AutoEndClaim, error)
}

type Config struct {
	DefaultHosts       []string
	MaxMeetingsPerHost int
}

type SyncService struct {
	log      *logrus.Entry
	store    Store
	provider Provider
	notifier Notifier
	cfg      Config
}

func NewSyncService(log *logrus.Logger, store Store, provider Provider, notifier Notifier, cfg Config) *SyncService {
	return &SyncService{
		log:      log.WithField("component", "service"),
		store:    store,
		provider: provider,
		notifier: notifier,
		cfg:      cfg,
	}
}

// ReconcileOnce claims one pending unit of meeting work, performs the
// provider call it asks for, and records the outcome. Returns false when
// the queue was empty. A provider failure consumes the unit through the
// error path and is not returned as an error; only store-level failures
// propagate.
func (s *SyncService) ReconcileOnce(ctx context.Context) (bool, error) {
	claim, err := s.store.DequeueMeetingTask(ctx)
	if err != nil {
		return false, fmt.Errorf("err dequeuing meeting task: %w", err)
	}
	if claim == nil {
		return false, nil
	}
	task := claim.Task()
	if task.Delete {
		return true, s.reconcileDelete(ctx, claim, task)
	}
	return true, s.reconcileUpsert(ctx, claim, task)
}

func (s *SyncService) reconcileDelete(ctx context.Context, claim Claim, task models.MeetingTask) error {
	if task.ProviderMeetingID != "" {
		start := time.Now()
		err := s.provider.DeleteMeeting(ctx, task.ProviderMeetingID)
		metrics.ProviderDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
		if err != nil {
			return s.recordFailure(ctx, claim, task, "delete", err)
		}
	}
	if err := claim.RecordDeleted(ctx); err != nil {
		return fmt.Errorf("err recording deletion: %w", err)
	}
	metrics.DequeueCount.WithLabelValues(opKind(task), "ok").Inc()
	return nil
}

func (s *SyncService) reconcileUpsert(ctx context.Context, claim Claim, task models.MeetingTask) error {
	if task.StartsAt == nil {
		s.log.Warnf("meeting requested for %s without a start time", ownerRef(task))
		if err := claim.RecordError(ctx, "meeting requested without a start time"); err != nil {
			return fmt.Errorf("err recording missing start time: %w", err)
		}
		metrics.DequeueCount.WithLabelValues(opKind(task), "invalid").Inc()
		return nil
	}

	if task.ProviderMeetingID != "" {
		return s.reconcileUpdate(ctx, claim, task)
	}
	return s.reconcileCreate(ctx, claim, task)
}

func (s *SyncService) reconcileCreate(ctx context.Context, claim Claim, task models.MeetingTask) error {
	pool := task.Hosts
	if len(pool) == 0 {
		pool = s.cfg.DefaultHosts
	}
	host, err := claim.AllocateHost(ctx, pool, s.cfg.MaxMeetingsPerHost, task.StartsAt, task.EndsAt)
	switch {
	case errors.Is(err, pgstore.ErrNoHostAvailable):
		// Transient: release the claim so the unit resurfaces on a
		// later poll once a host slot frees up.
		metrics.HostAllocCount.WithLabelValues("exhausted").Inc()
		s.log.Warnf("no host available for %s, releasing", ownerRef(task))
		return claim.Release()
	case err != nil:
		_ = claim.Release()
		return fmt.Errorf("err allocating host: %w", err)
	}
	metrics.HostAllocCount.WithLabelValues("ok").Inc()

	start := time.Now()
	created, err := s.provider.CreateMeeting(ctx, providerRequest(task, host))
	metrics.ProviderDuration.WithLabelValues("create").Observe(time.Since(start).Seconds())
	if err != nil {
		return s.recordFailure(ctx, claim, task, "create", err)
	}
	if err = claim.RecordSynced(ctx, created); err != nil {
		return fmt.Errorf("err recording created meeting: %w", err)
	}
	metrics.DequeueCount.WithLabelValues(opKind(task), "ok").Inc()
	return nil
}

func (s *SyncService) reconcileUpdate(ctx context.Context, claim Claim, task models.MeetingTask) error {
	start := time.Now()
	updated, err := s.provider.UpdateMeeting(ctx, task.ProviderMeetingID, providerRequest(task, ""))
	metrics.ProviderDuration.WithLabelValues("update").Observe(time.Since(start).Seconds())
	if err != nil {
		return s.recordFailure(ctx, claim, task, "update", err)
	}
	// The provider may omit unchanged fields on update; keep what the
	// meeting row already has.
	if updated.ProviderMeetingID == "" {
		updated.ProviderMeetingID = task.ProviderMeetingID
	}
	if updated.JoinURL == "" {
		updated.JoinURL = task.JoinURL
	}
	if updated.Password == "" {
		updated.Password = task.Password
	}
	if updated.ProviderID == "" {
		updated.ProviderID = task.ProviderID
	}
	if err = claim.RecordSynced(ctx, updated); err != nil {
		return fmt.Errorf("err recording updated meeting: %w", err)
	}
	metrics.DequeueCount.WithLabelValues(opKind(task), "ok").Inc()
	return nil
}

// AutoEndOnce claims one meeting overdue for a provider-side end check,
// asks the provider to end it, and stamps the check so the meeting is not
// selected again. Returns false when nothing was due.
func (s *SyncService) AutoEndOnce(ctx context.Context) (bool, error) {
	claim, err := s.store.DequeueAutoEndTask(ctx)
	if err != nil {
		return false, fmt.Errorf("err dequeuing auto-end task: %w", err)
	}
	if claim == nil {
		return false, nil
	}
	task := claim.Task()
	start := time.Now()
	err = s.provider.EndMeeting(ctx, task.ProviderMeetingID)
	metrics.ProviderDuration.WithLabelValues("end").Observe(time.Since(start).Seconds())
	outcome := "ended"
	if err != nil {
		outcome = fmt.Sprintf("end failed: %v", err)
		metrics.ProviderErrCount.WithLabelValues("end").Inc()
		metrics.AutoEndCheckCount.WithLabelValues("failed").Inc()
		s.log.Warnf("err ending meeting %s: %v", task.ProviderMeetingID, err)
	} else {
		metrics.AutoEndCheckCount.WithLabelValues("ended").Inc()
	}
	if err = claim.RecordChecked(ctx, outcome); err != nil {
		return true, fmt.Errorf("err recording auto-end check: %w", err)
	}
	return true, nil
}

func (s *SyncService) recordFailure(ctx context.Context, claim Claim, task models.MeetingTask, op string, provErr error) error {
	metrics.ProviderErrCount.WithLabelValues(op).Inc()
	metrics.DequeueCount.WithLabelValues(opKind(task), "error").Inc()
	s.log.Warnf("provider %s failed for %s: %v", op, ownerRef(task), provErr)
	if err := claim.RecordError(ctx, provErr.Error()); err != nil {
		return fmt.Errorf("err recording provider failure: %w", err)
	}
	if err := s.notifier.Notify(ctx, fmt.Sprintf("meeting %s failed for %s: %v", op, ownerRef(task), provErr)); err != nil {
		s.log.Warnf("err notifying about provider failure: %v", err)
	}
	return nil
}

func providerRequest(task models.MeetingTask, host string) models.ProviderMeetingRequest {
	return models.ProviderMeetingRequest{
		Topic:            task.Topic,
		StartsAt:         *task.StartsAt,
		Timezone:         task.Timezone,
		DurationSecs:     task.DurationSecs,
		HostEmail:        host,
		RequiresPassword: task.RequiresPassword,
	}
}

func opKind(task models.MeetingTask) string {
	return task.State.String()
}

func ownerRef(task models.MeetingTask) string {
	switch {
	case task.EventID != nil:
		return fmt.Sprintf("event %d", *task.EventID)
	case task.SessionID != nil:
		return fmt.Sprintf("session %d", *task.SessionID)
	case task.MeetingID != nil:
		return fmt.Sprintf("orphan meeting %d", *task.MeetingID)
	}
	return "unknown owner"
}
