package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/codetrack-engine/internal/config"
	"github.com/codetrack-engine/internal/domain"
)

type fakeSyncHandler struct {
	oneCalls []domain.Platform
	allCalls []string
}

func (f *fakeSyncHandler) SyncOne(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error) {
	f.oneCalls = append(f.oneCalls, platform)
	return &domain.CanonicalProfile{UserID: userID, Platform: platform}, nil
}

func (f *fakeSyncHandler) SyncAll(ctx context.Context, userID string) (*domain.SyncReport, error) {
	f.allCalls = append(f.allCalls, userID)
	return &domain.SyncReport{}, nil
}

func testHandler(h SyncHandler) *consumerGroupHandler {
	return &consumerGroupHandler{
		consumer: &Consumer{
			config:  &config.KafkaConfig{Topic: "sync-requests"},
			handler: h,
			logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
}

func TestProcess(t *testing.T) {
	t.Run("empty platform dispatches a full sync", func(t *testing.T) {
		fake := &fakeSyncHandler{}
		testHandler(fake).process(SyncRequest{UserID: "user-1"})

		if len(fake.allCalls) != 1 || fake.allCalls[0] != "user-1" {
			t.Fatalf("expected SyncAll for user-1, got %v", fake.allCalls)
		}
		if len(fake.oneCalls) != 0 {
			t.Errorf("unexpected SyncOne calls %v", fake.oneCalls)
		}
	})

	t.Run("named platform dispatches a single sync", func(t *testing.T) {
		fake := &fakeSyncHandler{}
		testHandler(fake).process(SyncRequest{UserID: "user-1", Platform: "codeforces"})

		if len(fake.oneCalls) != 1 || fake.oneCalls[0] != domain.PlatformCodeforces {
			t.Fatalf("expected SyncOne for Codeforces, got %v", fake.oneCalls)
		}
	})

	t.Run("unknown platform is dropped", func(t *testing.T) {
		fake := &fakeSyncHandler{}
		testHandler(fake).process(SyncRequest{UserID: "user-1", Platform: "topcoder"})

		if len(fake.oneCalls) != 0 || len(fake.allCalls) != 0 {
			t.Fatalf("expected request dropped, got one=%v all=%v", fake.oneCalls, fake.allCalls)
		}
	})
}
