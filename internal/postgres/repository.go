package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codetrack-engine/internal/config"
	"github.com/codetrack-engine/internal/domain"
)

// Repository is the handle directory: users and their per-platform handles,
// including the persisted sync-in-progress flag that serializes syncs across
// process restarts.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			display_name VARCHAR(255) NOT NULL,
			photo_url TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			last_login TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS platform_handles (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			platform VARCHAR(32) NOT NULL,
			handle VARCHAR(255) NOT NULL,
			last_synced_at TIMESTAMPTZ,
			sync_in_progress BOOLEAN NOT NULL DEFAULT FALSE,
			last_sync_error TEXT,
			PRIMARY KEY (user_id, platform)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_platform_handles_user ON platform_handles(user_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, email, displayName, photoURL string) (*domain.User, error) {
	user := &domain.User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		CreatedAt:   time.Now().UTC(),
		LastLogin:   time.Now().UTC(),
	}
	query := `
		INSERT INTO users (id, email, display_name, photo_url, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.DisplayName, user.PhotoURL, user.CreatedAt, user.LastLogin)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, email, display_name, COALESCE(photo_url, ''), created_at, last_login
		FROM users
		WHERE id = $1
	`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PhotoURL, &user.CreatedAt, &user.LastLogin)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

// ListUserIDs returns every registered user ID; used by the background
// re-sync worker
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SetHandle adds or replaces a user's handle for one platform. Replacing
// resets sync state so the next sync starts fresh. The primary key keeps
// duplicate platform rows impossible.
func (r *Repository) SetHandle(ctx context.Context, userID string, platform domain.Platform, handle string) error {
	query := `
		INSERT INTO platform_handles (user_id, platform, handle, last_synced_at, sync_in_progress, last_sync_error)
		VALUES ($1, $2, $3, NULL, FALSE, NULL)
		ON CONFLICT (user_id, platform)
		DO UPDATE SET handle = $3, last_synced_at = NULL, sync_in_progress = FALSE, last_sync_error = NULL
	`
	_, err := r.pool.Exec(ctx, query, userID, string(platform), handle)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("setting handle: %w", err)
	}
	return nil
}

// RemoveHandle deletes a user's handle for one platform
func (r *Repository) RemoveHandle(ctx context.Context, userID string, platform domain.Platform) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM platform_handles WHERE user_id = $1 AND platform = $2`,
		userID, string(platform))
	if err != nil {
		return fmt.Errorf("removing handle: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNoHandle
	}
	return nil
}

// GetHandle retrieves one platform handle for a user
func (r *Repository) GetHandle(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformHandle, error) {
	query := `
		SELECT user_id, platform, handle, last_synced_at, sync_in_progress, COALESCE(last_sync_error, '')
		FROM platform_handles
		WHERE user_id = $1 AND platform = $2
	`
	var h domain.PlatformHandle
	err := r.pool.QueryRow(ctx, query, userID, string(platform)).Scan(
		&h.UserID, &h.Platform, &h.Handle, &h.LastSyncedAt, &h.SyncInProgress, &h.LastSyncError)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNoHandle
		}
		return nil, fmt.Errorf("getting handle: %w", err)
	}
	return &h, nil
}

// ListHandles retrieves all platform handles for a user in platform order
func (r *Repository) ListHandles(ctx context.Context, userID string) ([]domain.PlatformHandle, error) {
	query := `
		SELECT user_id, platform, handle, last_synced_at, sync_in_progress, COALESCE(last_sync_error, '')
		FROM platform_handles
		WHERE user_id = $1
		ORDER BY platform
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing handles: %w", err)
	}
	defer rows.Close()

	var handles []domain.PlatformHandle
	for rows.Next() {
		var h domain.PlatformHandle
		err := rows.Scan(&h.UserID, &h.Platform, &h.Handle, &h.LastSyncedAt, &h.SyncInProgress, &h.LastSyncError)
		if err != nil {
			return nil, fmt.Errorf("scanning handle: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// BeginSync atomically flips the sync-in-progress flag for (user, platform).
// The persisted flag is the advisory lock: only one caller can win the
// check-and-set, so no two syncs of the same key ever overlap, even across
// processes.
func (r *Repository) BeginSync(ctx context.Context, userID string, platform domain.Platform) error {
	query := `
		UPDATE platform_handles
		SET sync_in_progress = TRUE, last_sync_error = NULL
		WHERE user_id = $1 AND platform = $2 AND sync_in_progress = FALSE
	`
	result, err := r.pool.Exec(ctx, query, userID, string(platform))
	if err != nil {
		return fmt.Errorf("beginning sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Either no handle row, or another sync holds the lock
		if _, err := r.GetHandle(ctx, userID, platform); err != nil {
			return err
		}
		return domain.ErrSyncInProgress
	}
	return nil
}

// FinishSync releases the sync lock, recording either the success time or
// the failure message
func (r *Repository) FinishSync(ctx context.Context, userID string, platform domain.Platform, syncErr error) error {
	var query string
	var args []interface{}
	if syncErr == nil {
		query = `
			UPDATE platform_handles
			SET sync_in_progress = FALSE, last_synced_at = $3, last_sync_error = NULL
			WHERE user_id = $1 AND platform = $2
		`
		args = []interface{}{userID, string(platform), time.Now().UTC()}
	} else {
		query = `
			UPDATE platform_handles
			SET sync_in_progress = FALSE, last_sync_error = $3
			WHERE user_id = $1 AND platform = $2
		`
		args = []interface{}{userID, string(platform), syncErr.Error()}
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("finishing sync: %w", err)
	}
	return nil
}
