package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codetrack-engine/internal/domain"
	"github.com/codetrack-engine/internal/extractor"
	"github.com/codetrack-engine/internal/normalizer"
	"github.com/codetrack-engine/internal/progress"
)

// HandleDirectory is the account-management collaborator owning the
// per-user platform handles and the persisted sync lock
type HandleDirectory interface {
	ListHandles(ctx context.Context, userID string) ([]domain.PlatformHandle, error)
	GetHandle(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformHandle, error)
	BeginSync(ctx context.Context, userID string, platform domain.Platform) error
	FinishSync(ctx context.Context, userID string, platform domain.Platform, syncErr error) error
}

// RecordStore is the keyed store for canonical profiles and progress
type RecordStore interface {
	UpsertProfile(ctx context.Context, profile domain.CanonicalProfile) error
	GetProfile(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error)
	UpsertProgress(ctx context.Context, progress domain.Progress) error
	GetProgress(ctx context.Context, userID string, platform domain.Platform) (*domain.Progress, error)
}

// StatusNotifier pushes live sync-state changes to connected clients
type StatusNotifier interface {
	NotifySyncStatus(userID string, platform domain.Platform, status string, errMsg string)
	NotifyProgress(userID string, progress domain.Progress)
}

// Sync status labels pushed through the notifier
const (
	SyncStatusStarted   = "sync_started"
	SyncStatusCompleted = "sync_completed"
	SyncStatusFailed    = "sync_failed"
)

// SyncService orchestrates per-user, per-platform sync cycles:
// fetch -> normalize -> persist profile -> merge progress
type SyncService struct {
	directory  HandleDirectory
	store      RecordStore
	extractors extractor.Registry
	merger     *progress.Merger
	notifier   StatusNotifier
	logger     *slog.Logger
}

// NewSyncService creates a sync orchestrator
func NewSyncService(
	directory HandleDirectory,
	store RecordStore,
	extractors extractor.Registry,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		directory:  directory,
		store:      store,
		extractors: extractors,
		merger:     progress.NewMerger(logger),
		logger:     logger,
	}
}

// SetNotifier attaches the live-status notifier for broadcasting
func (s *SyncService) SetNotifier(n StatusNotifier) {
	s.notifier = n
}

// SyncOne runs a full sync cycle for one (user, platform) pair
func (s *SyncService) SyncOne(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error) {
	handle, err := s.directory.GetHandle(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if handle.Handle == "" {
		return nil, domain.ErrNoHandle
	}
	return s.syncHandle(ctx, *handle)
}

// SyncAll syncs every configured platform for a user, strictly
// sequentially. A platform with an empty handle is skipped silently; a
// failing platform is reported but never aborts its siblings.
func (s *SyncService) SyncAll(ctx context.Context, userID string) (*domain.SyncReport, error) {
	handles, err := s.directory.ListHandles(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &domain.SyncReport{}
	for _, handle := range handles {
		if handle.Handle == "" {
			continue
		}
		if _, err := s.syncHandle(ctx, handle); err != nil {
			report.Failed = append(report.Failed, domain.SyncFailure{
				Platform: handle.Platform,
				Error:    err.Error(),
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, handle.Platform)
	}
	return report, nil
}

// syncHandle is the single-platform state machine: Idle -> Syncing ->
// Idle(success|error). The persisted sync-in-progress flag is acquired
// before any network work and always released.
func (s *SyncService) syncHandle(ctx context.Context, handle domain.PlatformHandle) (*domain.CanonicalProfile, error) {
	ext, ok := s.extractors[handle.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for platform %s", domain.ErrInvalidRequest, handle.Platform)
	}

	if err := s.directory.BeginSync(ctx, handle.UserID, handle.Platform); err != nil {
		return nil, err
	}
	s.notify(handle.UserID, handle.Platform, SyncStatusStarted, "")

	profile, err := s.runSync(ctx, handle, ext)
	if finishErr := s.directory.FinishSync(ctx, handle.UserID, handle.Platform, err); finishErr != nil {
		s.logger.Error("failed to release sync lock",
			"user_id", handle.UserID,
			"platform", handle.Platform,
			"error", finishErr,
		)
	}

	if err != nil {
		s.notify(handle.UserID, handle.Platform, SyncStatusFailed, err.Error())
		s.logger.Warn("platform sync failed",
			"user_id", handle.UserID,
			"platform", handle.Platform,
			"handle", handle.Handle,
			"error", err,
		)
		return nil, domain.WrapPlatform(handle.Platform, err)
	}

	s.notify(handle.UserID, handle.Platform, SyncStatusCompleted, "")
	s.logger.Info("platform sync completed",
		"user_id", handle.UserID,
		"platform", handle.Platform,
		"handle", handle.Handle,
	)
	return profile, nil
}

// runSync performs the fetch/normalize/persist/merge pipeline while the
// sync lock is held
func (s *SyncService) runSync(ctx context.Context, handle domain.PlatformHandle, ext extractor.Extractor) (*domain.CanonicalProfile, error) {
	raw, err := ext.Fetch(ctx, handle.Handle)
	if err != nil {
		return nil, err
	}

	profile := normalizer.BuildProfile(handle.UserID, handle.Platform, raw, time.Now().UTC())
	if profile.Username == "" {
		profile.Username = handle.Handle
	}
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("persisting profile: %w", err)
	}

	if err := s.mergeProgress(ctx, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// mergeProgress reconciles the profile's problem-activity subset into the
// accumulated progress record
func (s *SyncService) mergeProgress(ctx context.Context, profile *domain.CanonicalProfile) error {
	activity := progress.DeriveActivity(profile)

	existing, err := s.store.GetProgress(ctx, profile.UserID, profile.Platform)
	if err != nil && !errors.Is(err, domain.ErrProgressNotFound) {
		return fmt.Errorf("loading progress: %w", err)
	}

	merged := s.merger.Merge(existing, profile.UserID, profile.Platform, activity)
	if err := s.store.UpsertProgress(ctx, merged); err != nil {
		return fmt.Errorf("persisting progress: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyProgress(profile.UserID, merged)
	}
	return nil
}

// AddProblem records a manually-entered problem attempt through the same
// merge path syncs use
func (s *SyncService) AddProblem(ctx context.Context, userID string, platform domain.Platform, rec domain.ProblemRecord) (*domain.Progress, error) {
	if rec.Title == "" && rec.ProblemID == "" {
		return nil, domain.ErrValidation
	}
	if rec.AttemptedAt.IsZero() {
		rec.AttemptedAt = time.Now().UTC()
	}
	if rec.Status == domain.StatusSolved && rec.SolvedAt == nil {
		solvedAt := rec.AttemptedAt
		rec.SolvedAt = &solvedAt
	}

	existing, err := s.store.GetProgress(ctx, userID, platform)
	if err != nil && !errors.Is(err, domain.ErrProgressNotFound) {
		return nil, fmt.Errorf("loading progress: %w", err)
	}

	merged := s.merger.Merge(existing, userID, platform, []domain.ProblemRecord{rec})
	if err := s.store.UpsertProgress(ctx, merged); err != nil {
		return nil, fmt.Errorf("persisting progress: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyProgress(userID, merged)
	}
	return &merged, nil
}

// VerifyHandle checks that a handle resolves on its platform before it is
// saved to the directory
func (s *SyncService) VerifyHandle(ctx context.Context, platform domain.Platform, handle string) error {
	ext, ok := s.extractors[platform]
	if !ok {
		return fmt.Errorf("%w: no extractor for platform %s", domain.ErrInvalidRequest, platform)
	}
	_, err := ext.Fetch(ctx, handle)
	return err
}

// notify pushes a status change when a notifier is attached
func (s *SyncService) notify(userID string, platform domain.Platform, status, errMsg string) {
	if s.notifier != nil {
		s.notifier.NotifySyncStatus(userID, platform, status, errMsg)
	}
}
