package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/codetrack-engine/internal/domain"
	"github.com/codetrack-engine/internal/websocket"
)

// UserDirectory exposes the account operations the API needs
type UserDirectory interface {
	CreateUser(ctx context.Context, email, displayName, photoURL string) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	SetHandle(ctx context.Context, userID string, platform domain.Platform, handle string) error
	RemoveHandle(ctx context.Context, userID string, platform domain.Platform) error
	ListHandles(ctx context.Context, userID string) ([]domain.PlatformHandle, error)
}

// RecordReader exposes the read side of the profile and progress store
type RecordReader interface {
	GetProfile(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error)
	ListProfiles(ctx context.Context, userID string) ([]domain.CanonicalProfile, error)
	GetProgress(ctx context.Context, userID string, platform domain.Platform) (*domain.Progress, error)
	ListProgress(ctx context.Context, userID string) ([]domain.Progress, error)
	DeleteProfile(ctx context.Context, userID string, platform domain.Platform) error
}

// Syncer exposes the sync orchestrator operations the API needs
type Syncer interface {
	SyncOne(ctx context.Context, userID string, platform domain.Platform) (*domain.CanonicalProfile, error)
	SyncAll(ctx context.Context, userID string) (*domain.SyncReport, error)
	AddProblem(ctx context.Context, userID string, platform domain.Platform, rec domain.ProblemRecord) (*domain.Progress, error)
	VerifyHandle(ctx context.Context, platform domain.Platform, handle string) error
}

// Handler provides HTTP handlers for the sync and progress API
type Handler struct {
	directory UserDirectory
	store     RecordReader
	syncer    Syncer
	hub       *websocket.Hub
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(directory UserDirectory, store RecordReader, syncer Syncer, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		directory: directory,
		store:     store,
		syncer:    syncer,
		hub:       hub,
		logger:    logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", h.CreateUser)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", h.GetUser)

			r.Route("/handles", func(r chi.Router) {
				r.Get("/", h.ListHandles)
				r.Put("/{platform}", h.SetHandle)
				r.Delete("/{platform}", h.RemoveHandle)
			})

			r.Post("/sync", h.SyncAll)
			r.Post("/sync/{platform}", h.SyncOne)

			r.Get("/profiles", h.ListProfiles)
			r.Get("/profiles/{platform}", h.GetProfile)

			r.Get("/progress", h.ListProgress)
			r.Get("/progress/{platform}", h.GetProgress)
			r.Post("/progress/{platform}/problems", h.AddProblem)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps domain errors onto HTTP statuses
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSyncInProgress), errors.Is(err, domain.ErrDuplicatePlatform):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrRateLimited):
		h.writeError(w, http.StatusBadGateway, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// platformParam parses the {platform} URL segment
func platformParam(r *http.Request) (domain.Platform, error) {
	return domain.ParsePlatform(chi.URLParam(r, "platform"))
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// CreateUser registers a new user
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		PhotoURL    string `json:"photo_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.Email == "" || req.DisplayName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.directory.CreateUser(r.Context(), req.Email, req.DisplayName, req.PhotoURL)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    user,
	})
}

// GetUser returns a user by ID
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.directory.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, user)
}

// ListHandles returns every platform handle configured for a user
func (h *Handler) ListHandles(w http.ResponseWriter, r *http.Request) {
	handles, err := h.directory.ListHandles(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, handles)
}

// SetHandle saves a user's handle for one platform after verifying it
// resolves on the platform
func (h *Handler) SetHandle(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Handle == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	userID := chi.URLParam(r, "userID")
	if _, err := h.directory.GetUser(r.Context(), userID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.syncer.VerifyHandle(r.Context(), platform, req.Handle); err != nil {
		if errors.Is(err, domain.ErrHandleNotFound) {
			h.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		h.writeDomainError(w, err)
		return
	}

	if err := h.directory.SetHandle(r.Context(), userID, platform, req.Handle); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "saved"})
}

// RemoveHandle deletes a user's handle and the stored records derived
// from it
func (h *Handler) RemoveHandle(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.directory.RemoveHandle(r.Context(), userID, platform); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.store.DeleteProfile(r.Context(), userID, platform); err != nil {
		h.logger.Warn("failed to delete stored records",
			"user_id", userID,
			"platform", platform,
			"error", err,
		)
	}

	h.writeSuccess(w, map[string]string{"status": "removed"})
}

// SyncAll triggers a sync of every configured platform for a user
func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.syncer.SyncAll(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, report)
}

// SyncOne triggers a sync of a single platform for a user
func (h *Handler) SyncOne(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	profile, err := h.syncer.SyncOne(r.Context(), chi.URLParam(r, "userID"), platform)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, profile)
}

// ListProfiles returns every stored platform profile for a user
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListProfiles(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, profiles)
}

// GetProfile returns one stored platform profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	profile, err := h.store.GetProfile(r.Context(), chi.URLParam(r, "userID"), platform)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, profile)
}

// ListProgress returns every stored progress record for a user
func (h *Handler) ListProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.store.ListProgress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, progress)
}

// GetProgress returns one stored progress record
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	progress, err := h.store.GetProgress(r.Context(), chi.URLParam(r, "userID"), platform)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, progress)
}

// AddProblem records a manually-entered problem attempt
func (h *Handler) AddProblem(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var rec domain.ProblemRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	progress, err := h.syncer.AddProblem(r.Context(), chi.URLParam(r, "userID"), platform, rec)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    progress,
	})
}
