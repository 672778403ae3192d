// prefetch_output.go — Output, прогревающий кэш миниатюрами новых страниц.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bigkaa/imageloader/internal/domain/model"
)

// Prefetcher — предзагрузка миниатюр. Реализуется ImageLoader.
type Prefetcher interface {
	Prefetch(ctx context.Context, descriptors []model.ImageDescriptor) int
}

// PrefetchOutput — Output, который после каждой загруженной страницы
// запускает фоновую предзагрузку её миниатюр.
// ReloadData прогревает все элементы, UpdateData — только добавленные.
type PrefetchOutput struct {
	ctx        context.Context
	prefetcher Prefetcher

	mu        sync.Mutex
	delivered int

	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPrefetchOutput создаёт PrefetchOutput.
// ctx ограничивает время жизни фоновых загрузок.
func NewPrefetchOutput(ctx context.Context, prefetcher Prefetcher, logger *slog.Logger) *PrefetchOutput {
	return &PrefetchOutput{
		ctx:        ctx,
		prefetcher: prefetcher,
		logger:     logger.With(slog.String("component", "prefetch_output")),
	}
}

// ReloadData реализует Output.
func (o *PrefetchOutput) ReloadData(items []model.ImageDescriptor) {
	o.mu.Lock()
	o.delivered = len(items)
	o.mu.Unlock()

	o.prefetch(items)
}

// UpdateData реализует Output.
func (o *PrefetchOutput) UpdateData(items []model.ImageDescriptor) {
	o.mu.Lock()
	from := min(o.delivered, len(items))
	o.delivered = len(items)
	o.mu.Unlock()

	o.prefetch(items[from:])
}

// Error реализует Output.
func (o *PrefetchOutput) Error(err error) {
	o.logger.Debug("Страница не загружена", slog.String("message", DisplayMessage(err)))
}

// ShowURL реализует Output.
func (o *PrefetchOutput) ShowURL(url string) {
	o.logger.Debug("Открытие публикации", slog.String("url", url))
}

// Wait дожидается завершения запущенных предзагрузок.
func (o *PrefetchOutput) Wait() {
	o.wg.Wait()
}

func (o *PrefetchOutput) prefetch(items []model.ImageDescriptor) {
	if len(items) == 0 {
		return
	}
	batch := make([]model.ImageDescriptor, len(items))
	copy(batch, items)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		loaded := o.prefetcher.Prefetch(o.ctx, batch)
		o.logger.Debug("Предзагрузка завершена",
			slog.Int("requested", len(batch)),
			slog.Int("loaded", loaded),
		)
	}()
}
