// feed.go — обработчики ленты: загрузка страниц, снимок состояния,
// открытие публикации.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/imageloader/internal/api/errors"
	"github.com/bigkaa/imageloader/internal/cache"
	"github.com/bigkaa/imageloader/internal/domain/model"
	"github.com/bigkaa/imageloader/internal/service"
)

// FeedService — постраничная лента. Реализуется service.Pager.
type FeedService interface {
	LoadFirstPage() ([]model.ImageDescriptor, error)
	LoadNextPage() ([]model.ImageDescriptor, error)
	State() service.PagerState
	ShowDetails(index int) (string, bool)
}

// FeedHandler — обработчик endpoints ленты.
type FeedHandler struct {
	feed   FeedService
	logger *slog.Logger
}

// NewFeedHandler создаёт обработчик ленты.
func NewFeedHandler(feed FeedService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		feed:   feed,
		logger: logger.With(slog.String("component", "feed_handler")),
	}
}

// feedItem — элемент ленты в ответе.
type feedItem struct {
	ID           string  `json:"id"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	ImagePath    string  `json:"image_path,omitempty"`
	AspectRatio  float32 `json:"aspect_ratio"`
}

// feedResponse — снимок ленты.
type feedResponse struct {
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	Exhausted bool       `json:"exhausted"`
	Fetching  bool       `json:"fetching"`
	Items     []feedItem `json:"items"`
}

// GetFeed — текущий снимок ленты.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toFeedResponse(h.feed.State()))
}

// Reload — сброс ленты и загрузка первой страницы.
func (h *FeedHandler) Reload(w http.ResponseWriter, _ *http.Request) {
	_, err := h.feed.LoadFirstPage()
	h.respond(w, err)
}

// LoadMore — загрузка следующей страницы.
func (h *FeedHandler) LoadMore(w http.ResponseWriter, _ *http.Request) {
	_, err := h.feed.LoadNextPage()
	h.respond(w, err)
}

// OpenCoverage — перенаправление на публикацию записи {index}.
func (h *FeedHandler) OpenCoverage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		apierrors.ValidationError(w, "index должен быть неотрицательным целым числом")
		return
	}

	target, ok := h.feed.ShowDetails(index)
	if !ok {
		apierrors.NotFound(w, "Публикация не найдена")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// respond пишет снимок ленты или ошибку загрузки страницы.
func (h *FeedHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		if errors.Is(err, service.ErrNoData) {
			apierrors.NoData(w, service.DisplayMessage(err))
			return
		}
		h.logger.Error("Ошибка загрузки страницы", slog.String("error", err.Error()))
		apierrors.InternalError(w, service.DisplayMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, toFeedResponse(h.feed.State()))
}

// toFeedResponse преобразует состояние Pager в ответ API.
func toFeedResponse(st service.PagerState) feedResponse {
	items := make([]feedItem, 0, len(st.Items))
	for i := range st.Items {
		items = append(items, toFeedItem(&st.Items[i]))
	}
	return feedResponse{
		Page:      st.Page,
		PageSize:  st.PageSize,
		Exhausted: st.Exhausted,
		Fetching:  st.Fetching,
		Items:     items,
	}
}

// toFeedItem добавляет к миниатюре путь для получения изображения через API.
func toFeedItem(d *model.ImageDescriptor) feedItem {
	item := feedItem{ID: d.ID, AspectRatio: d.AspectRatio}
	if thumbURL, ok := d.ThumbnailURL(); ok {
		item.ThumbnailURL = thumbURL
		item.ImagePath = ImagePath(thumbURL)
	}
	return item
}

// ImagePath возвращает путь API для изображения по его URL.
func ImagePath(imageURL string) string {
	return "/api/v1/images/" + cache.DeriveKey(imageURL).String()
}
