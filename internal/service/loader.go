// loader.go — загрузка миниатюр: кэш → сеть → кэш.
// Одновременные запросы одного URL объединяются (singleflight),
// предзагрузка страницы выполняется с ограниченным параллелизмом (errgroup).
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/imageloader/internal/cache"
	"github.com/bigkaa/imageloader/internal/domain/model"
)

// DefaultPrefetchConcurrency — параллелизм предзагрузки по умолчанию.
const DefaultPrefetchConcurrency = 4

// ErrNoThumbnail — у записи нет пригодного URL миниатюры.
var ErrNoThumbnail = errors.New("URL миниатюры не задан")

// Prometheus-метрики загрузки изображений.
var (
	imageLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "il_image_loads_total",
		Help: "Количество загрузок изображений (по источнику).",
	}, []string{"source"})

	prefetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "il_prefetch_failures_total",
		Help: "Количество неудачных предзагрузок миниатюр.",
	})
)

// Fetcher — загрузчик байтов изображения по URL.
// Реализуется fetchclient.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageStore — кэш декодированных изображений.
// Реализуется cache.ImageCache.
type ImageStore interface {
	Get(url string) (image.Image, bool)
	Set(url string, img image.Image)
}

// ImageLoader — загрузка изображений с кэшированием.
type ImageLoader struct {
	store       ImageStore
	fetcher     Fetcher
	concurrency int
	group       singleflight.Group
	logger      *slog.Logger
}

// NewImageLoader создаёт загрузчик.
// concurrency <= 0 заменяется на DefaultPrefetchConcurrency.
func NewImageLoader(store ImageStore, fetcher Fetcher, concurrency int, logger *slog.Logger) *ImageLoader {
	if concurrency <= 0 {
		concurrency = DefaultPrefetchConcurrency
	}
	return &ImageLoader{
		store:       store,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "image_loader")),
	}
}

// Load возвращает миниатюру descriptor.
// Возвращает ErrNoThumbnail, если URL миниатюры собрать нельзя.
func (l *ImageLoader) Load(ctx context.Context, descriptor *model.ImageDescriptor) (image.Image, error) {
	url, ok := descriptor.ThumbnailURL()
	if !ok {
		return nil, ErrNoThumbnail
	}
	return l.LoadURL(ctx, url)
}

// LoadURL возвращает изображение по URL: из кэша, иначе из сети.
// Загруженное изображение сохраняется в кэш, даже если ctx отменён
// до завершения загрузки. Уже отменённый ctx загрузку не начинает.
func (l *ImageLoader) LoadURL(ctx context.Context, url string) (image.Image, error) {
	if url == "" {
		return nil, ErrNoThumbnail
	}
	if img, ok := l.store.Get(url); ok {
		imageLoadsTotal.WithLabelValues("cache").Inc()
		return img, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Загрузка не привязана к отмене конкретного вызывающего:
	// результат нужен и остальным участникам singleflight.
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(url, func() (any, error) {
		return l.fetchAndStore(fetchCtx, url)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	}
}

// fetchAndStore загружает, декодирует и кэширует изображение.
func (l *ImageLoader) fetchAndStore(ctx context.Context, url string) (image.Image, error) {
	// Повторная проверка: пока ждали, изображение мог положить другой вызов.
	if img, ok := l.store.Get(url); ok {
		imageLoadsTotal.WithLabelValues("cache").Inc()
		return img, nil
	}

	data, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		imageLoadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("загрузка %s: %w", url, err)
	}

	img, err := cache.DecodeImage(data)
	if err != nil {
		imageLoadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("декодирование %s: %w", url, err)
	}

	l.store.Set(url, img)
	imageLoadsTotal.WithLabelValues("network").Inc()

	l.logger.Debug("Изображение загружено",
		slog.String("url", url),
		slog.Int("bytes", len(data)),
	)
	return img, nil
}

// Prefetch загружает миниатюры descriptors в кэш.
// Ошибки отдельных миниатюр логируются и не прерывают остальные.
// Возвращает количество успешно загруженных миниатюр.
func (l *ImageLoader) Prefetch(ctx context.Context, descriptors []model.ImageDescriptor) int {
	results := make([]bool, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i := range descriptors {
		g.Go(func() error {
			if _, err := l.Load(gctx, &descriptors[i]); err != nil {
				if !errors.Is(err, ErrNoThumbnail) {
					prefetchFailuresTotal.Inc()
					l.logger.Warn("Ошибка предзагрузки миниатюры",
						slog.String("thumbnail_id", descriptors[i].ID),
						slog.String("error", err.Error()),
					)
				}
				return nil
			}
			results[i] = true
			return nil
		})
	}
	// Горутины всегда возвращают nil: ошибки учтены в results.
	_ = g.Wait()

	loaded := 0
	for _, ok := range results {
		if ok {
			loaded++
		}
	}
	return loaded
}
