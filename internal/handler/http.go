package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/community-points/internal/config"
	"github.com/community-points/internal/domain"
	"github.com/community-points/internal/redis"
	"github.com/community-points/internal/service"
	"github.com/community-points/internal/websocket"
)

// Handler provides HTTP handlers for the community points API
type Handler struct {
	users      *service.UserService
	contents   *service.ContentService
	recorder   *service.EngagementRecorder
	rankings   *service.RankingCalculator
	ledger     *service.PointsLedger
	cache      *redis.ScoreCache
	hub        *websocket.Hub
	limits     *config.LeaderboardConfig
	logger     *slog.Logger
}

// NewHandler creates a new HTTP handler. cache may be nil when no
// realtime leaderboard is wired.
func NewHandler(
	users *service.UserService,
	contents *service.ContentService,
	recorder *service.EngagementRecorder,
	rankings *service.RankingCalculator,
	ledger *service.PointsLedger,
	cache *redis.ScoreCache,
	hub *websocket.Hub,
	limits *config.LeaderboardConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		users:    users,
		contents: contents,
		recorder: recorder,
		rankings: rankings,
		ledger:   ledger,
		cache:    cache,
		hub:      hub,
		limits:   limits,
		logger:   logger,
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
		// User operations
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/", h.ListUsers)
			r.Get("/top", h.GetTopUsers)

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Put("/", h.UpdateUser)
				r.Post("/deactivate", h.DeactivateUser)
				r.Post("/activate", h.ActivateUser)
				r.Get("/engagements", h.GetUserEngagements)
				r.Get("/contents/count", h.GetUserContentCount)
				r.Get("/rankings", h.GetUserRankings)
				r.Post("/recompute", h.RecomputeUserPoints)
			})
		})

		// Content operations
		r.Route("/contents", func(r chi.Router) {
			r.Post("/", h.PublishContent)
			r.Get("/", h.ListContents)
			r.Get("/most-viewed", h.GetMostViewed)

			r.Route("/{contentID}", func(r chi.Router) {
				r.Get("/", h.GetContent)
				r.Delete("/", h.DeleteContent)
				r.Post("/view", h.RecordView)
				r.Get("/engagements", h.GetContentEngagements)
			})
		})

		// Engagement recording and queries
		r.Post("/engagements", h.RecordEngagement)
		r.Get("/engagements", h.ListEngagements)

		// Ranking operations
		r.Route("/rankings", func(r chi.Router) {
			r.Get("/live", h.GetLiveLeaderboard)
			r.Get("/live/{userID}", h.GetLiveUserRank)
			r.Route("/{period}", func(r chi.Router) {
				r.Get("/", h.GetLeaderboard)
				r.Post("/compute", h.ComputeRanking)
			})
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

// writeServiceError maps domain errors to HTTP status codes
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsConflictError(err):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInactiveUser):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrUnknownEngagementKind),
		errors.Is(err, domain.ErrInvalidContentReference),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	subscribers := make(map[string]int)
	for _, period := range domain.RankingPeriods() {
		subscribers[string(period)] = h.hub.GetSubscriberCount(string(period))
	}

	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
		"subscribers":       subscribers,
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

// CreateUserRequest is the payload for user registration
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateUser registers a new user
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.users.Create(r.Context(), req.Name, req.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    user,
	})
}

// ListUsers returns all active users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListActive(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, users)
}

// GetTopUsers returns the highest-scoring users
func (h *Handler) GetTopUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.TopByPoints(r.Context(), h.limitParam(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, users)
}

// GetUser returns a user by ID
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, user)
}

// UpdateUserRequest is the payload for user updates
type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateUser changes a user's name or email
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.users.Update(r.Context(), chi.URLParam(r, "userID"), req.Name, req.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, user)
}

// DeactivateUser soft-deletes a user. Deactivated users drop off the
// live leaderboard; their stored history stays.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.users.Deactivate(r.Context(), userID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Remove(r.Context(), userID); err != nil {
			h.logger.Warn("failed to remove user from realtime leaderboard", "user_id", userID, "error", err)
		}
	}

	h.writeSuccess(w, map[string]string{"status": "deactivated"})
}

// ActivateUser restores a deactivated user and puts their total back on
// the live leaderboard
func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.users.Activate(r.Context(), userID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	if h.cache != nil {
		total, err := h.ledger.TotalPoints(r.Context(), userID)
		if err == nil {
			err = h.cache.SetScore(r.Context(), userID, total)
		}
		if err != nil {
			h.logger.Warn("failed to restore user on realtime leaderboard", "user_id", userID, "error", err)
		}
	}

	h.writeSuccess(w, map[string]string{"status": "activated"})
}

// GetUserEngagements returns a user's engagement history
func (h *Handler) GetUserEngagements(w http.ResponseWriter, r *http.Request) {
	engagements, err := h.recorder.UserEngagements(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, engagements)
}

// GetUserContentCount returns how many content items a user has
// published
func (h *Handler) GetUserContentCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.contents.CountByAuthor(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, map[string]int{"count": count})
}

// GetUserRankings returns a user's ranking history
func (h *Handler) GetUserRankings(w http.ResponseWriter, r *http.Request) {
	entries, err := h.rankings.UserHistory(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, entries)
}

// RecomputeUserPoints rebuilds a user's total from their engagement
// history
func (h *Handler) RecomputeUserPoints(w http.ResponseWriter, r *http.Request) {
	total, err := h.ledger.RecomputeTotal(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, map[string]int{"total_points": total})
}

// PublishContentRequest is the payload for publishing content
type PublishContentRequest struct {
	AuthorID string `json:"author_id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Kind     string `json:"kind"`
}

// PublishContent creates a new content item
func (h *Handler) PublishContent(w http.ResponseWriter, r *http.Request) {
	var req PublishContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.AuthorID == "" || req.Title == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	content, err := h.contents.Publish(r.Context(), req.AuthorID, req.Title, req.Body, domain.ContentKind(req.Kind))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    content,
	})
}

// ListContents returns content filtered by kind or author
func (h *Handler) ListContents(w http.ResponseWriter, r *http.Request) {
	if authorID := r.URL.Query().Get("author"); authorID != "" {
		contents, err := h.contents.ListByAuthor(r.Context(), authorID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.writeSuccess(w, contents)
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	contents, err := h.contents.ListByKind(r.Context(), domain.ContentKind(kind))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, contents)
}

// GetMostViewed returns the most viewed content items
func (h *Handler) GetMostViewed(w http.ResponseWriter, r *http.Request) {
	contents, err := h.contents.MostViewed(r.Context(), h.limitParam(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, contents)
}

// GetContent returns a content item by ID
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.contents.GetByID(r.Context(), chi.URLParam(r, "contentID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, content)
}

// DeleteContent removes a content item and its engagements
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	if err := h.contents.Delete(r.Context(), chi.URLParam(r, "contentID")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// RecordView increments a content item's view counter
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	views, err := h.contents.RecordView(r.Context(), chi.URLParam(r, "contentID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, map[string]int{"views": views})
}

// GetContentEngagements returns the engagements directed at a content
// item
func (h *Handler) GetContentEngagements(w http.ResponseWriter, r *http.Request) {
	engagements, err := h.recorder.ContentEngagements(r.Context(), chi.URLParam(r, "contentID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, engagements)
}

// RecordEngagement records a new engagement and credits its points
func (h *Handler) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	var req service.RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	engagement, err := h.recorder.Record(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if h.hub != nil {
		if total, err := h.ledger.TotalPoints(r.Context(), req.UserID); err == nil {
			h.hub.BroadcastScoreUpdate(req.UserID, total)
		}
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    engagement,
	})
}

// ListEngagements returns engagements filtered by kind or by a time
// window (from/to as RFC 3339)
func (h *Handler) ListEngagements(w http.ResponseWriter, r *http.Request) {
	if kind := r.URL.Query().Get("kind"); kind != "" {
		engagements, err := h.recorder.EngagementsByKind(r.Context(), domain.EngagementKind(kind))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.writeSuccess(w, engagements)
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	engagements, err := h.recorder.EngagementsBetween(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, engagements)
}

// GetLiveLeaderboard returns the realtime top scores from the cache
func (h *Handler) GetLiveLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, errors.New("realtime leaderboard not available"))
		return
	}

	entries, err := h.cache.TopN(r.Context(), h.limitParam(r))
	if err != nil {
		h.logger.Error("failed to read realtime leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	total, err := h.cache.Count(r.Context())
	if err != nil {
		h.logger.Error("failed to count realtime leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

// GetLiveUserRank returns one user's realtime rank and score
func (h *Handler) GetLiveUserRank(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, errors.New("realtime leaderboard not available"))
		return
	}

	entry, ok, err := h.cache.UserRank(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.logger.Error("failed to read realtime rank", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, domain.ErrUserNotFound)
		return
	}
	h.writeSuccess(w, entry)
}

// GetLeaderboard returns the stored snapshot for a period instance.
// The optional at query parameter (RFC 3339) selects the instance;
// default is now.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period := domain.RankingPeriod(chi.URLParam(r, "period"))

	at := time.Now().UTC()
	if atStr := r.URL.Query().Get("at"); atStr != "" {
		parsed, err := time.Parse(time.RFC3339, atStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		at = parsed
	}

	entries, err := h.rankings.Leaderboard(r.Context(), period, at)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, entries)
}

// ComputeRanking triggers a snapshot computation for the period
// instance containing now
func (h *Handler) ComputeRanking(w http.ResponseWriter, r *http.Request) {
	period := domain.RankingPeriod(chi.URLParam(r, "period"))

	entries, err := h.rankings.ComputeRanking(r.Context(), period, time.Now().UTC())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if h.hub != nil && len(entries) > 0 {
		h.hub.BroadcastRankingUpdate(period, entries[0].ReferenceDate, entries)
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    entries,
	})
}

// queryInt parses a positive integer query parameter with a default
func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// limitParam parses the limit query parameter, falling back to the
// configured default and never exceeding the configured maximum
func (h *Handler) limitParam(r *http.Request) int {
	limit := queryInt(r, "limit", h.limits.DefaultLimit)
	if limit > h.limits.MaxLimit {
		limit = h.limits.MaxLimit
	}
	return limit
}
