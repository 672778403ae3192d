// pager.go — постраничная выдача миниатюр поверх хранилища записей.
// Вычисляет окна страниц, хранит текущую страницу и накопленные элементы,
// пропускает повторные запросы, пока предыдущий не завершён.
package service

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/imageloader/internal/domain/model"
)

// DefaultPageSize — размер страницы по умолчанию.
const DefaultPageSize = 20

// Ошибки сервисного слоя.
var (
	// ErrNoData — хранилище пусто или запрошенная страница за пределами данных.
	ErrNoData = errors.New("нет данных")
)

// Сообщения для пользователя.
const (
	messageNoData    = "No More Images To Show"
	messageFetchFail = "Data Fetch Error"
)

// Prometheus-метрики пагинации.
var pagerLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "il_pager_pages_total",
	Help: "Количество запросов страниц (по типу и результату).",
}, []string{"kind", "result"})

// DisplayMessage возвращает сообщение для пользователя по ошибке.
// ErrNoData отличается от прочих ошибок загрузки.
func DisplayMessage(err error) string {
	if errors.Is(err, ErrNoData) {
		return messageNoData
	}
	return messageFetchFail
}

// RecordSource — источник записей для Pager.
// Реализуется repository.RecordStore.
type RecordSource interface {
	Count() int
	Window(start, end int) []model.Coverage
	At(index int) (model.Coverage, error)
}

// Output — получатель результатов Pager (слой представления).
// Вызывается синхронно из LoadFirstPage, LoadNextPage и ShowDetails.
type Output interface {
	// ReloadData — первая страница загружена, items заменяют предыдущие.
	ReloadData(items []model.ImageDescriptor)
	// UpdateData — следующая страница загружена, items — все накопленные элементы.
	UpdateData(items []model.ImageDescriptor)
	// Error — запрос страницы завершился ошибкой.
	Error(err error)
	// ShowURL — запрошено открытие публикации.
	ShowURL(url string)
}

// NopOutput — Output, игнорирующий все события.
type NopOutput struct{}

func (NopOutput) ReloadData([]model.ImageDescriptor) {}
func (NopOutput) UpdateData([]model.ImageDescriptor) {}
func (NopOutput) Error(error)                        {}
func (NopOutput) ShowURL(string)                     {}

// PagerState — снимок состояния Pager.
type PagerState struct {
	// Page — номер последней загруженной страницы (0 — ничего не загружено)
	Page int
	// PageSize — размер страницы
	PageSize int
	// Fetching — выполняется запрос страницы
	Fetching bool
	// Exhausted — последний запрос вернул ErrNoData
	Exhausted bool
	// Items — накопленные элементы в порядке страниц
	Items []model.ImageDescriptor
}

// Pager — состояние постраничной выдачи одного представления.
// В каждый момент выполняется не больше одного запроса окна:
// флаг fetching устанавливается атомарно до запроса и снимается после
// доставки результата в Output.
type Pager struct {
	source   RecordSource
	output   Output
	pageSize int

	fetching atomic.Bool

	mu        sync.RWMutex
	page      int
	exhausted bool
	items     []model.ImageDescriptor

	logger *slog.Logger
}

// NewPager создаёт Pager.
// output может быть nil — события не доставляются.
// pageSize <= 0 заменяется на DefaultPageSize.
func NewPager(source RecordSource, output Output, pageSize int, logger *slog.Logger) *Pager {
	if output == nil {
		output = NopOutput{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{
		source:   source,
		output:   output,
		pageSize: pageSize,
		logger:   logger.With(slog.String("component", "pager")),
	}
}

// LoadFirstPage сбрасывает выдачу на страницу 1, заменяет накопленные элементы
// и возвращает их.
// Если запрос уже выполняется — no-op: (nil, nil) без изменения состояния.
// Возвращает ErrNoData, если хранилище пусто.
func (p *Pager) LoadFirstPage() ([]model.ImageDescriptor, error) {
	if !p.fetching.CompareAndSwap(false, true) {
		pagerLoadsTotal.WithLabelValues("first", "skipped").Inc()
		p.logger.Debug("Запрос первой страницы пропущен: предыдущий не завершён")
		return nil, nil
	}
	defer p.fetching.Store(false)

	items, err := Window(p.source, 1, p.pageSize)

	p.mu.Lock()
	if err != nil {
		p.exhausted = errors.Is(err, ErrNoData)
		p.mu.Unlock()

		pagerLoadsTotal.WithLabelValues("first", "no_data").Inc()
		p.logger.Info("Первая страница недоступна", slog.String("error", err.Error()))
		p.output.Error(err)
		return nil, err
	}
	p.page = 1
	p.exhausted = false
	p.items = items
	snapshot := p.itemsLocked()
	p.mu.Unlock()

	pagerLoadsTotal.WithLabelValues("first", "ok").Inc()
	p.logger.Debug("Первая страница загружена", slog.Int("items", len(items)))
	p.output.ReloadData(snapshot)
	return snapshot, nil
}

// LoadNextPage запрашивает следующую страницу, дописывает её к накопленным
// элементам и возвращает все накопленные элементы.
// Если запрос уже выполняется — no-op: (nil, nil).
// При ошибке номер страницы не меняется, поэтому повторный вызов
// запрашивает ту же страницу.
func (p *Pager) LoadNextPage() ([]model.ImageDescriptor, error) {
	if !p.fetching.CompareAndSwap(false, true) {
		pagerLoadsTotal.WithLabelValues("next", "skipped").Inc()
		p.logger.Debug("Запрос следующей страницы пропущен: предыдущий не завершён")
		return nil, nil
	}
	defer p.fetching.Store(false)

	p.mu.RLock()
	next := p.page + 1
	p.mu.RUnlock()

	items, err := Window(p.source, next, p.pageSize)

	p.mu.Lock()
	if err != nil {
		p.exhausted = errors.Is(err, ErrNoData)
		p.mu.Unlock()

		pagerLoadsTotal.WithLabelValues("next", "no_data").Inc()
		p.logger.Debug("Следующая страница недоступна",
			slog.Int("page", next),
			slog.String("error", err.Error()),
		)
		p.output.Error(err)
		return nil, err
	}
	p.page = next
	p.items = append(p.items, items...)
	snapshot := p.itemsLocked()
	p.mu.Unlock()

	pagerLoadsTotal.WithLabelValues("next", "ok").Inc()
	p.logger.Debug("Страница загружена",
		slog.Int("page", next),
		slog.Int("items", len(items)),
		slog.Int("total", len(snapshot)),
	)
	p.output.UpdateData(snapshot)
	return snapshot, nil
}

// RecordAt возвращает запись по индексу в хранилище.
func (p *Pager) RecordAt(index int) (model.Coverage, bool) {
	record, err := p.source.At(index)
	if err != nil {
		return model.Coverage{}, false
	}
	return record, true
}

// ShowDetails передаёт в Output ссылку для открытия записи index.
// Возвращает ("", false), если записи нет или ссылка пуста.
func (p *Pager) ShowDetails(index int) (string, bool) {
	record, ok := p.RecordAt(index)
	if !ok {
		return "", false
	}
	url := record.URLToOpen()
	if url == "" {
		return "", false
	}
	p.output.ShowURL(url)
	return url, true
}

// State возвращает снимок состояния.
func (p *Pager) State() PagerState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PagerState{
		Page:      p.page,
		PageSize:  p.pageSize,
		Fetching:  p.fetching.Load(),
		Exhausted: p.exhausted,
		Items:     p.itemsLocked(),
	}
}

// itemsLocked возвращает копию накопленных элементов. Вызывается под p.mu.
func (p *Pager) itemsLocked() []model.ImageDescriptor {
	result := make([]model.ImageDescriptor, len(p.items))
	copy(result, p.items)
	return result
}

// Window вычисляет окно страницы page (с 1) размера limit над source:
// записи [start, end], где start = (page-1)*limit, end = min(start+limit-1, N-1).
// Записи без миниатюры отбрасываются с сохранением порядка остальных.
// Возвращает ErrNoData, если start >= N (включая пустой source).
func Window(source RecordSource, page, limit int) ([]model.ImageDescriptor, error) {
	if page < 1 || limit < 1 {
		return nil, ErrNoData
	}

	count := source.Count()
	// Сравнение делением: (page-1)*limit переполняется при больших page.
	if count == 0 || page-1 > (count-1)/limit {
		return nil, ErrNoData
	}
	start := (page - 1) * limit
	end := min(start+limit-1, count-1)

	records := source.Window(start, end)
	items := make([]model.ImageDescriptor, 0, len(records))
	for _, r := range records {
		if r.Thumbnail == nil {
			continue
		}
		items = append(items, *r.Thumbnail)
	}
	return items, nil
}
