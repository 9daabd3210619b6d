package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/codetrack-engine/internal/config"
	"github.com/codetrack-engine/internal/domain"
)

// RecordStore provides the keyed record store for canonical profiles and
// progress records. Values are JSON; keys are (userID, platform) pairs.
type RecordStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRecordStore creates a new Redis record store
func NewRecordStore(cfg *config.RedisConfig, logger *slog.Logger) (*RecordStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RecordStore{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (s *RecordStore) Close() error {
	return s.client.Close()
}

// profileKey returns the key for a user's canonical profile on a platform
func (s *RecordStore) profileKey(userID string, platform domain.Platform) string {
	return fmt.Sprintf("profile:%s:%s", userID, platform)
}

// progressKey returns the key for a user's progress on a platform
func (s *RecordStore) progressKey(userID string, platform domain.Platform) string {
	return fmt.Sprintf("progress:%s:%s", userID, platform)
}

// UpsertProfile replaces the canonical profile for (user, platform)
func (s *RecordStore) UpsertProfile(ctx context.Context, profile domain.CanonicalProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	key := s.profileKey(profile.UserID, profile.Platform)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

// GetProfile retrieves the canonical profile for (user, platform)
func (s *RecordStore) GetProfile(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error) {
	key := s.profileKey(userID, platform)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	var profile domain.CanonicalProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("unmarshaling profile: %w", err)
	}
	return &profile, nil
}

// ListProfiles retrieves every canonical profile stored for a user
func (s *RecordStore) ListProfiles(ctx context.Context, userID string) ([]domain.CanonicalProfile, error) {
	var profiles []domain.CanonicalProfile
	for _, platform := range domain.AllPlatforms() {
		profile, err := s.GetProfile(ctx, userID, platform)
		if err != nil {
			if err == domain.ErrProfileNotFound {
				continue
			}
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, nil
}

// UpsertProgress replaces the progress record for (user, platform)
func (s *RecordStore) UpsertProgress(ctx context.Context, progress domain.Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}
	key := s.progressKey(progress.UserID, progress.Platform)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("upserting progress: %w", err)
	}
	return nil
}

// GetProgress retrieves the progress record for (user, platform)
func (s *RecordStore) GetProgress(ctx context.Context, userID string, platform domain.Platform) (*domain.Progress, error) {
	key := s.progressKey(userID, platform)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("getting progress: %w", err)
	}

	var progress domain.Progress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("unmarshaling progress: %w", err)
	}
	return &progress, nil
}

// ListProgress retrieves every progress record stored for a user
func (s *RecordStore) ListProgress(ctx context.Context, userID string) ([]domain.Progress, error) {
	var records []domain.Progress
	for _, platform := range domain.AllPlatforms() {
		progress, err := s.GetProgress(ctx, userID, platform)
		if err != nil {
			if err == domain.ErrProgressNotFound {
				continue
			}
			return nil, err
		}
		records = append(records, *progress)
	}
	return records, nil
}

// DeleteProfile removes the profile and progress for (user, platform);
// used when a handle is removed
func (s *RecordStore) DeleteProfile(ctx context.Context, userID string, platform domain.Platform) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.profileKey(userID, platform))
	pipe.Del(ctx, s.progressKey(userID, platform))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting profile records: %w", err)
	}
	return nil
}
