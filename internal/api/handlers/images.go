// images.go — выдача изображений из кэша с загрузкой при промахе.
package handlers

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/imageloader/internal/api/errors"
	"github.com/bigkaa/imageloader/internal/cache"
	"github.com/bigkaa/imageloader/internal/service"
)

// ImageService — загрузка изображения по URL. Реализуется service.ImageLoader.
type ImageService interface {
	LoadURL(ctx context.Context, url string) (image.Image, error)
}

// ImageCatalog — известные миниатюры: ключ кэша → URL.
// Реализуется repository.RecordStore.
type ImageCatalog interface {
	ThumbnailURL(key string) (string, bool)
}

// ImageHandler — обработчик endpoint изображений.
type ImageHandler struct {
	images  ImageService
	catalog ImageCatalog
	logger  *slog.Logger
}

// NewImageHandler создаёт обработчик изображений.
func NewImageHandler(images ImageService, catalog ImageCatalog, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		images:  images,
		catalog: catalog,
		logger:  logger.With(slog.String("component", "image_handler")),
	}
}

// GetImage — изображение {key} в формате PNG.
// Отдаются только миниатюры записей хранилища, прочие ключи — 404.
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	imageURL, ok := h.catalog.ThumbnailURL(key)
	if !ok {
		apierrors.NotFound(w, "Изображение не найдено")
		return
	}

	img, err := h.images.LoadURL(r.Context(), imageURL)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// Клиент закрыл соединение, отвечать некому.
			return
		case errors.Is(err, service.ErrNoThumbnail):
			apierrors.ValidationError(w, "URL изображения не задан")
		default:
			h.logger.Warn("Ошибка загрузки изображения",
				slog.String("url", imageURL),
				slog.String("error", err.Error()),
			)
			apierrors.UpstreamError(w, service.DisplayMessage(err))
		}
		return
	}

	data, err := cache.EncodeImage(img)
	if err != nil {
		h.logger.Error("Ошибка кодирования изображения",
			slog.String("url", imageURL),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка кодирования изображения")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
