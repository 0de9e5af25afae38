package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gm-dashboard/internal/domain"
	"gm-dashboard/internal/infra/metrics"
)

const snapshotCacheKey = "dashboard:snapshot"

var (
	errMissingToken = errors.New("токен отсутствует")
	errInvalidToken = errors.New("токен недействителен")
	errBuildFailed  = errors.New("не удалось построить дашборд")
)

// SnapshotBuilder строит снимок дашборда.
type SnapshotBuilder interface {
	Build(ctx context.Context) (domain.Snapshot, error)
}

// DashboardHandler отдаёт снимок в JSON и кэширует его.
type DashboardHandler struct {
	builder SnapshotBuilder
	cache   domain.Cache
	ttl     time.Duration
	log     zerolog.Logger
}

// NewDashboardHandler создаёт обработчик. cache может быть nil.
func NewDashboardHandler(builder SnapshotBuilder, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{builder: builder, cache: cache, ttl: ttl, log: logger.With().Str("component", "http_dashboard").Logger()}
}

// Mount регистрирует маршруты обработчика.
func (h *DashboardHandler) Mount(r chi.Router, token string) {
	r.With(TokenAuthMiddleware(token)).Get("/api/v1/dashboard", h.ServeHTTP)
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.log.With().Str("request_id", RequestID(r)).Logger()
	useCache := h.cache != nil && h.ttl > 0 && r.URL.Query().Get("refresh") == ""

	if useCache {
		body, err := h.cache.Get(snapshotCacheKey)
		switch {
		case err == nil:
			metrics.IncCache(true)
			writeBody(w, body, "HIT")
			return
		case errors.Is(err, domain.ErrCacheMiss):
			metrics.IncCache(false)
		default:
			logger.Warn().Err(err).Msg("чтение кэша")
		}
	}

	snapshot, err := h.builder.Build(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("построение снимка")
		WriteError(w, http.StatusServiceUnavailable, errBuildFailed)
		return
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		logger.Error().Err(err).Msg("сериализация снимка")
		WriteError(w, http.StatusInternalServerError, errBuildFailed)
		return
	}
	if h.cache != nil && h.ttl > 0 {
		if err := h.cache.Set(snapshotCacheKey, body, h.ttl); err != nil {
			logger.Warn().Err(err).Msg("запись кэша")
		}
	}
	writeBody(w, body, "MISS")
}

func writeBody(w http.ResponseWriter, body []byte, cacheStatus string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
