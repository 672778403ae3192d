// handler.go — основной обработчик API, объединяющий health, ленту и изображения.
// Маршруты регистрируются в chi.Router через Register.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// APIHandler — основной обработчик API Image Loader.
type APIHandler struct {
	health *HealthHandler
	feed   *FeedHandler
	images *ImageHandler
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	feed *FeedHandler,
	images *ImageHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health: health,
		feed:   feed,
		images: images,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// Register регистрирует все маршруты API.
func (h *APIHandler) Register(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/feed", h.feed.GetFeed)
		r.Post("/feed/reload", h.feed.Reload)
		r.Post("/feed/more", h.feed.LoadMore)
		r.Get("/coverages/{index}/open", h.feed.OpenCoverage)
		r.Get("/images/{key}", h.images.GetImage)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
