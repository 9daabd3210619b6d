package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/codetrack-engine/internal/domain"
	"github.com/codetrack-engine/internal/extractor"
)

type mockDirectory struct {
	handles    map[domain.Platform]*domain.PlatformHandle
	beginCalls []domain.Platform
	beginErr   map[domain.Platform]error
	finishLog  []error
}

func (m *mockDirectory) ListHandles(ctx context.Context, userID string) ([]domain.PlatformHandle, error) {
	var out []domain.PlatformHandle
	for _, p := range domain.AllPlatforms() {
		if h, ok := m.handles[p]; ok {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (m *mockDirectory) GetHandle(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformHandle, error) {
	h, ok := m.handles[platform]
	if !ok {
		return nil, domain.ErrNoHandle
	}
	return h, nil
}

func (m *mockDirectory) BeginSync(ctx context.Context, userID string, platform domain.Platform) error {
	m.beginCalls = append(m.beginCalls, platform)
	if err, ok := m.beginErr[platform]; ok {
		return err
	}
	return nil
}

func (m *mockDirectory) FinishSync(ctx context.Context, userID string, platform domain.Platform, syncErr error) error {
	m.finishLog = append(m.finishLog, syncErr)
	return nil
}

type mockStore struct {
	profiles   map[domain.Platform]domain.CanonicalProfile
	progress   map[domain.Platform]domain.Progress
	upsertErr  error
	getProgErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		profiles: make(map[domain.Platform]domain.CanonicalProfile),
		progress: make(map[domain.Platform]domain.Progress),
	}
}

func (m *mockStore) UpsertProfile(ctx context.Context, profile domain.CanonicalProfile) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.profiles[profile.Platform] = profile
	return nil
}

func (m *mockStore) GetProfile(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error) {
	p, ok := m.profiles[platform]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (m *mockStore) UpsertProgress(ctx context.Context, progress domain.Progress) error {
	m.progress[progress.Platform] = progress
	return nil
}

func (m *mockStore) GetProgress(ctx context.Context, userID string, platform domain.Platform) (*domain.Progress, error) {
	if m.getProgErr != nil {
		return nil, m.getProgErr
	}
	p, ok := m.progress[platform]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	return &p, nil
}

type mockExtractor struct {
	platform domain.Platform
	record   *domain.RawRecord
	err      error
	calls    int
}

func (m *mockExtractor) Platform() domain.Platform { return m.platform }

func (m *mockExtractor) Fetch(ctx context.Context, handle string) (*domain.RawRecord, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

type mockNotifier struct {
	statuses []string
	progress int
}

func (m *mockNotifier) NotifySyncStatus(userID string, platform domain.Platform, status, errMsg string) {
	m.statuses = append(m.statuses, status)
}

func (m *mockNotifier) NotifyProgress(userID string, progress domain.Progress) {
	m.progress++
}

func handleFor(platform domain.Platform, handle string) *domain.PlatformHandle {
	return &domain.PlatformHandle{UserID: "user-1", Platform: platform, Handle: handle}
}

func rawFor(platform domain.Platform, username string) *domain.RawRecord {
	return &domain.RawRecord{
		Platform: platform,
		Username: username,
		Fields:   map[string]interface{}{"totalSolved": 5},
		Submissions: []domain.RawSubmission{
			{ID: "p1", Title: "Two Sum", Verdict: "OK", SubmittedAt: time.Now().UTC()},
		},
	}
}

func newTestService(dir *mockDirectory, store *mockStore, extractors extractor.Registry) *SyncService {
	return NewSyncService(dir, store, extractors, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSyncOne(t *testing.T) {
	ctx := context.Background()

	t.Run("persists profile and merged progress on success", func(t *testing.T) {
		dir := &mockDirectory{handles: map[domain.Platform]*domain.PlatformHandle{
			domain.PlatformCodeforces: handleFor(domain.PlatformCodeforces, "alice"),
		}}
		store := newMockStore()
		notifier := &mockNotifier{}
		svc := newTestService(dir, store, extractor.Registry{
			domain.PlatformCodeforces: &mockExtractor{
				platform: domain.PlatformCodeforces,
				record:   rawFor(domain.PlatformCodeforces, "alice"),
			},
		})
		svc.SetNotifier(notifier)

		profile, err := svc.SyncOne(ctx, "user-1", domain.PlatformCodeforces)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if profile.Username != "alice" {
			t.Errorf("unexpected profile: %+v", profile)
		}
		if _, ok := store.profiles[domain.PlatformCodeforces]; !ok {
			t.Error("profile not persisted")
		}
		merged, ok := store.progress[domain.PlatformCodeforces]
		if !ok {
			t.Fatal("progress not persisted")
		}
		if merged.Stats.TotalSolved != 1 {
			t.Errorf("expected derived activity merged, got %+v", merged.Stats)
		}
		if len(dir.finishLog) != 1 || dir.finishLog[0] != nil {
			t.Errorf("expected successful FinishSync, got %v", dir.finishLog)
		}
		if len(notifier.statuses) != 2 ||
			notifier.statuses[0] != SyncStatusStarted ||
			notifier.statuses[1] != SyncStatusCompleted {
			t.Errorf("unexpected status sequence %v", notifier.statuses)
		}
		if notifier.progress != 1 {
			t.Errorf("expected one progress broadcast, got %d", notifier.progress)
		}
	})

	t.Run("missing handle fails before taking the lock", func(t *testing.T) {
		dir := &mockDirectory{handles: map[domain.Platform]*domain.PlatformHandle{}}
		svc := newTestService(dir, newMockStore(), extractor.Registry{})

		_, err := svc.SyncOne(ctx, "user-1", domain.PlatformLeetCode)
		if !errors.Is(err, domain.ErrNoHandle) {
			t.Fatalf("expected ErrNoHandle, got %v", err)
		}
		if len(dir.beginCalls) != 0 {
			t.Error("BeginSync must not run without a handle")
		}
	})

	t.Run("concurrent sync is rejected without fetching", func(t *testing.T) {
		ext := &mockExtractor{platform: domain.PlatformLeetCode, record: rawFor(domain.PlatformLeetCode, "alice")}
		dir := &mockDirectory{
			handles: map[domain.Platform]*domain.PlatformHandle{
				domain.PlatformLeetCode: handleFor(domain.PlatformLeetCode, "alice"),
			},
			beginErr: map[domain.Platform]error{domain.PlatformLeetCode: domain.ErrSyncInProgress},
		}
		svc := newTestService(dir, newMockStore(), extractor.Registry{domain.PlatformLeetCode: ext})

		_, err := svc.SyncOne(ctx, "user-1", domain.PlatformLeetCode)
		if !errors.Is(err, domain.ErrSyncInProgress) {
			t.Fatalf("expected ErrSyncInProgress, got %v", err)
		}
		if ext.calls != 0 {
			t.Error("extractor must not run while the lock is held")
		}
	})

	t.Run("extractor failure releases the lock with the error", func(t *testing.T) {
		dir := &mockDirectory{handles: map[domain.Platform]*domain.PlatformHandle{
			domain.PlatformCodeChef: handleFor(domain.PlatformCodeChef, "bob"),
		}}
		notifier := &mockNotifier{}
		svc := newTestService(dir, newMockStore(), extractor.Registry{
			domain.PlatformCodeChef: &mockExtractor{platform: domain.PlatformCodeChef, err: domain.ErrUnavailable},
		})
		svc.SetNotifier(notifier)

		_, err := svc.SyncOne(ctx, "user-1", domain.PlatformCodeChef)
		if !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		var pe *domain.PlatformError
		if !errors.As(err, &pe) || pe.Platform != domain.PlatformCodeChef {
			t.Errorf("expected platform attached, got %v", err)
		}
		if len(dir.finishLog) != 1 || dir.finishLog[0] == nil {
			t.Errorf("expected FinishSync with error, got %v", dir.finishLog)
		}
		if notifier.statuses[len(notifier.statuses)-1] != SyncStatusFailed {
			t.Errorf("expected failure broadcast, got %v", notifier.statuses)
		}
	})
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()

	t.Run("skips empty handles and isolates failures", func(t *testing.T) {
		dir := &mockDirectory{handles: map[domain.Platform]*domain.PlatformHandle{
			domain.PlatformLeetCode:   handleFor(domain.PlatformLeetCode, "alice"),
			domain.PlatformCodeChef:   handleFor(domain.PlatformCodeChef, ""),
			domain.PlatformCodeforces: handleFor(domain.PlatformCodeforces, "alice_cf"),
		}}
		store := newMockStore()
		svc := newTestService(dir, store, extractor.Registry{
			domain.PlatformLeetCode: &mockExtractor{
				platform: domain.PlatformLeetCode,
				err:      domain.ErrHandleNotFound,
			},
			domain.PlatformCodeforces: &mockExtractor{
				platform: domain.PlatformCodeforces,
				record:   rawFor(domain.PlatformCodeforces, "alice_cf"),
			},
		})

		report, err := svc.SyncAll(ctx, "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(report.Succeeded) != 1 || report.Succeeded[0] != domain.PlatformCodeforces {
			t.Errorf("unexpected succeeded list %v", report.Succeeded)
		}
		if len(report.Failed) != 1 || report.Failed[0].Platform != domain.PlatformLeetCode {
			t.Errorf("unexpected failed list %v", report.Failed)
		}
		// Empty CodeChef handle never acquired the lock
		for _, p := range dir.beginCalls {
			if p == domain.PlatformCodeChef {
				t.Error("empty handle must be skipped silently")
			}
		}
	})

	t.Run("returns empty report when nothing is configured", func(t *testing.T) {
		dir := &mockDirectory{handles: map[domain.Platform]*domain.PlatformHandle{}}
		svc := newTestService(dir, newMockStore(), extractor.Registry{})

		report, err := svc.SyncAll(ctx, "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(report.Succeeded) != 0 || len(report.Failed) != 0 {
			t.Errorf("expected empty report, got %+v", report)
		}
	})
}

func TestAddProblem(t *testing.T) {
	ctx := context.Background()

	t.Run("merges manual entries into progress", func(t *testing.T) {
		store := newMockStore()
		svc := newTestService(&mockDirectory{}, store, extractor.Registry{})

		progress, err := svc.AddProblem(ctx, "user-1", domain.PlatformLeetCode, domain.ProblemRecord{
			Title:      "Two Sum",
			Difficulty: domain.DifficultyEasy,
			Status:     domain.StatusSolved,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if progress.Stats.TotalSolved != 1 {
			t.Errorf("expected totalSolved=1, got %d", progress.Stats.TotalSolved)
		}
		if progress.Problems[0].SolvedAt == nil {
			t.Error("expected SolvedAt defaulted for solved entries")
		}
	})

	t.Run("rejects entries with no identity", func(t *testing.T) {
		svc := newTestService(&mockDirectory{}, newMockStore(), extractor.Registry{})

		_, err := svc.AddProblem(ctx, "user-1", domain.PlatformLeetCode, domain.ProblemRecord{})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestVerifyHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("propagates not found", func(t *testing.T) {
		svc := newTestService(&mockDirectory{}, newMockStore(), extractor.Registry{
			domain.PlatformCodeforces: &mockExtractor{
				platform: domain.PlatformCodeforces,
				err:      domain.ErrHandleNotFound,
			},
		})

		err := svc.VerifyHandle(ctx, domain.PlatformCodeforces, "ghost")
		if !errors.Is(err, domain.ErrHandleNotFound) {
			t.Fatalf("expected ErrHandleNotFound, got %v", err)
		}
	})

	t.Run("accepts resolvable handles", func(t *testing.T) {
		svc := newTestService(&mockDirectory{}, newMockStore(), extractor.Registry{
			domain.PlatformCodeforces: &mockExtractor{
				platform: domain.PlatformCodeforces,
				record:   rawFor(domain.PlatformCodeforces, "alice"),
			},
		})

		if err := svc.VerifyHandle(ctx, domain.PlatformCodeforces, "alice"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
