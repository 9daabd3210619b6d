package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codetrack-engine/internal/config"
	"github.com/codetrack-engine/internal/domain"
)

// UserLister enumerates the users eligible for background re-sync
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Syncer runs a full sync cycle for one user
type Syncer interface {
	SyncAll(ctx context.Context, userID string) (*domain.SyncReport, error)
}

// SyncWorker periodically re-syncs every registered user so profiles stay
// fresh without manual triggers
type SyncWorker struct {
	users   UserLister
	syncer  Syncer
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	users UserLister,
	syncer Syncer,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		users:  users,
		syncer: syncer,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncAllUsers(ctx)
		}
	}
}

// syncAllUsers walks every user and runs their full sync cycle. One user's
// failure never stops the sweep.
func (w *SyncWorker) syncAllUsers(ctx context.Context) {
	w.logger.Info("starting sync cycle")
	startTime := time.Now()

	userIDs, err := w.users.ListUserIDs(ctx)
	if err != nil {
		w.logger.Error("failed to list users for sync", "error", err)
		return
	}

	succeeded := 0
	failed := 0
	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		report, err := w.syncer.SyncAll(ctx, userID)
		if err != nil {
			w.logger.Error("failed to sync user", "user_id", userID, "error", err)
			failed++
			continue
		}
		succeeded += len(report.Succeeded)
		failed += len(report.Failed)
	}

	w.logger.Info("sync cycle completed",
		"duration", time.Since(startTime),
		"users", len(userIDs),
		"platforms_synced", succeeded,
		"platforms_failed", failed,
	)
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle (useful for manual triggers)
func (w *SyncWorker) RunOnce(ctx context.Context) {
	w.syncAllUsers(ctx)
}
