package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codetrack-engine/internal/domain"
	"github.com/codetrack-engine/internal/websocket"
)

type stubDirectory struct {
	users       map[string]*domain.User
	handles     []domain.PlatformHandle
	setCalls    int
	removeErr   error
	setHandleFn func(userID string, platform domain.Platform, handle string) error
}

func (s *stubDirectory) CreateUser(ctx context.Context, email, displayName, photoURL string) (*domain.User, error) {
	return &domain.User{ID: "user-1", Email: email, DisplayName: displayName}, nil
}

func (s *stubDirectory) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *stubDirectory) SetHandle(ctx context.Context, userID string, platform domain.Platform, handle string) error {
	s.setCalls++
	if s.setHandleFn != nil {
		return s.setHandleFn(userID, platform, handle)
	}
	return nil
}

func (s *stubDirectory) RemoveHandle(ctx context.Context, userID string, platform domain.Platform) error {
	return s.removeErr
}

func (s *stubDirectory) ListHandles(ctx context.Context, userID string) ([]domain.PlatformHandle, error) {
	return s.handles, nil
}

type stubStore struct {
	profile  *domain.CanonicalProfile
	progress *domain.Progress
	deleted  int
}

func (s *stubStore) GetProfile(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error) {
	if s.profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return s.profile, nil
}

func (s *stubStore) ListProfiles(ctx context.Context, userID string) ([]domain.CanonicalProfile, error) {
	if s.profile == nil {
		return nil, nil
	}
	return []domain.CanonicalProfile{*s.profile}, nil
}

func (s *stubStore) GetProgress(ctx context.Context, userID string, platform domain.Platform) (*domain.Progress, error) {
	if s.progress == nil {
		return nil, domain.ErrProgressNotFound
	}
	return s.progress, nil
}

func (s *stubStore) ListProgress(ctx context.Context, userID string) ([]domain.Progress, error) {
	if s.progress == nil {
		return nil, nil
	}
	return []domain.Progress{*s.progress}, nil
}

func (s *stubStore) DeleteProfile(ctx context.Context, userID string, platform domain.Platform) error {
	s.deleted++
	return nil
}

type stubSyncer struct {
	syncOneErr error
	syncAllErr error
	verifyErr  error
	addErr     error
	report     *domain.SyncReport
}

func (s *stubSyncer) SyncOne(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error) {
	if s.syncOneErr != nil {
		return nil, s.syncOneErr
	}
	return &domain.CanonicalProfile{UserID: userID, Platform: platform}, nil
}

func (s *stubSyncer) SyncAll(ctx context.Context, userID string) (*domain.SyncReport, error) {
	if s.syncAllErr != nil {
		return nil, s.syncAllErr
	}
	if s.report != nil {
		return s.report, nil
	}
	return &domain.SyncReport{}, nil
}

func (s *stubSyncer) AddProblem(ctx context.Context, userID string, platform domain.Platform, rec domain.ProblemRecord) (*domain.Progress, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &domain.Progress{UserID: userID, Platform: platform, Problems: []domain.ProblemRecord{rec}}, nil
}

func (s *stubSyncer) VerifyHandle(ctx context.Context, platform domain.Platform, handle string) error {
	return s.verifyErr
}

func newTestHandler(dir *stubDirectory, store *stubStore, syncer *stubSyncer) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(dir, store, syncer, websocket.NewHub(logger), logger).Router()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestSetHandle(t *testing.T) {
	t.Run("verifies then saves", func(t *testing.T) {
		dir := &stubDirectory{users: map[string]*domain.User{"user-1": {ID: "user-1"}}}
		h := newTestHandler(dir, &stubStore{}, &stubSyncer{})

		rec := doRequest(t, h, http.MethodPut, "/api/v1/users/user-1/handles/leetcode",
			map[string]string{"handle": "alice"})

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if dir.setCalls != 1 {
			t.Errorf("expected handle saved once, got %d", dir.setCalls)
		}
	})

	t.Run("rejects unresolvable handles", func(t *testing.T) {
		dir := &stubDirectory{users: map[string]*domain.User{"user-1": {ID: "user-1"}}}
		h := newTestHandler(dir, &stubStore{}, &stubSyncer{verifyErr: domain.ErrHandleNotFound})

		rec := doRequest(t, h, http.MethodPut, "/api/v1/users/user-1/handles/leetcode",
			map[string]string{"handle": "ghost"})

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if dir.setCalls != 0 {
			t.Error("unresolvable handle must not be saved")
		}
	})

	t.Run("rejects unknown platforms", func(t *testing.T) {
		h := newTestHandler(&stubDirectory{}, &stubStore{}, &stubSyncer{})

		rec := doRequest(t, h, http.MethodPut, "/api/v1/users/user-1/handles/topcoder",
			map[string]string{"handle": "alice"})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("requires an existing user", func(t *testing.T) {
		h := newTestHandler(&stubDirectory{users: map[string]*domain.User{}}, &stubStore{}, &stubSyncer{})

		rec := doRequest(t, h, http.MethodPut, "/api/v1/users/nobody/handles/leetcode",
			map[string]string{"handle": "alice"})

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("platform name is case-insensitive", func(t *testing.T) {
		dir := &stubDirectory{users: map[string]*domain.User{"user-1": {ID: "user-1"}}}
		h := newTestHandler(dir, &stubStore{}, &stubSyncer{})

		rec := doRequest(t, h, http.MethodPut, "/api/v1/users/user-1/handles/CODEFORCES",
			map[string]string{"handle": "alice"})

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestSyncEndpoints(t *testing.T) {
	t.Run("conflict while a sync is running", func(t *testing.T) {
		h := newTestHandler(&stubDirectory{}, &stubStore{}, &stubSyncer{syncOneErr: domain.ErrSyncInProgress})

		rec := doRequest(t, h, http.MethodPost, "/api/v1/users/user-1/sync/codeforces", nil)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("bad gateway when the platform is down", func(t *testing.T) {
		h := newTestHandler(&stubDirectory{}, &stubStore{}, &stubSyncer{
			syncOneErr: domain.WrapPlatform(domain.PlatformCodeChef, domain.ErrUnavailable),
		})

		rec := doRequest(t, h, http.MethodPost, "/api/v1/users/user-1/sync/codechef", nil)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("sync all returns the report", func(t *testing.T) {
		h := newTestHandler(&stubDirectory{}, &stubStore{}, &stubSyncer{
			report: &domain.SyncReport{
				Succeeded: []domain.Platform{domain.PlatformLeetCode},
				Failed: []domain.SyncFailure{
					{Platform: domain.PlatformCodeforces, Error: "platform unavailable"},
				},
			},
		})

		rec := doRequest(t, h, http.MethodPost, "/api/v1/users/user-1/sync", nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Errorf("expected success envelope, got %+v", resp)
		}
	})
}

func TestRecordEndpoints(t *testing.T) {
	t.Run("missing profile is 404", func(t *testing.T) {
		h := newTestHandler(&stubDirectory{}, &stubStore{}, &stubSyncer{})

		rec := doRequest(t, h, http.MethodGet, "/api/v1/users/user-1/profiles/leetcode", nil)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("stored profile round-trips", func(t *testing.T) {
		store := &stubStore{profile: &domain.CanonicalProfile{
			UserID:   "user-1",
			Platform: domain.PlatformLeetCode,
			Username: "alice",
		}}
		h := newTestHandler(&stubDirectory{}, store, &stubSyncer{})

		rec := doRequest(t, h, http.MethodGet, "/api/v1/users/user-1/profiles/leetcode", nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		data, _ := json.Marshal(resp.Data)
		var profile domain.CanonicalProfile
		if err := json.Unmarshal(data, &profile); err != nil {
			t.Fatal(err)
		}
		if profile.Username != "alice" {
			t.Errorf("unexpected profile %+v", profile)
		}
	})

	t.Run("removing a handle deletes stored records", func(t *testing.T) {
		store := &stubStore{}
		h := newTestHandler(&stubDirectory{}, store, &stubSyncer{})

		rec := doRequest(t, h, http.MethodDelete, "/api/v1/users/user-1/handles/codechef", nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if store.deleted != 1 {
			t.Errorf("expected stored records deleted, got %d", store.deleted)
		}
	})

	t.Run("manual problem entry returns 201", func(t *testing.T) {
		h := newTestHandler(&stubDirectory{}, &stubStore{}, &stubSyncer{})

		rec := doRequest(t, h, http.MethodPost, "/api/v1/users/user-1/progress/leetcode/problems",
			domain.ProblemRecord{Title: "Two Sum", Status: domain.StatusSolved})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("invalid manual entry is 400", func(t *testing.T) {
		h := newTestHandler(&stubDirectory{}, &stubStore{}, &stubSyncer{addErr: domain.ErrValidation})

		rec := doRequest(t, h, http.MethodPost, "/api/v1/users/user-1/progress/leetcode/problems",
			domain.ProblemRecord{})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCreateUser(t *testing.T) {
	h := newTestHandler(&stubDirectory{}, &stubStore{}, &stubSyncer{})

	t.Run("creates with required fields", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/users",
			map[string]string{"email": "a@example.com", "display_name": "Alice"})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/users",
			map[string]string{"email": "a@example.com"})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
