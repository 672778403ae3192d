// gc.go — фоновая очистка дискового кэша.
//
// Удаляет файлы содержимого, на которые не ссылается индекс, и временные
// файлы прерванной записи. Запускается горутиной с тикером (IL_GC_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/imageloader/internal/cache"
)

// Prometheus метрики GC
var (
	gcRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "il_gc_runs_total",
		Help: "Общее количество запусков GC",
	})

	gcFilesDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "il_gc_files_deleted_total",
		Help: "Количество файлов, удалённых GC (по типу)",
	}, []string{"kind"})

	gcDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "il_gc_duration_seconds",
		Help:    "Длительность выполнения GC в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// Sweeper — дисковый кэш, поддерживающий очистку.
// Реализуется cache.DiskCache.
type Sweeper interface {
	SweepOrphans() cache.SweepResult
}

// GCResult — результат одного запуска GC.
type GCResult struct {
	// OrphanCount — удалено файлов без записи в индексе
	OrphanCount int
	// TempCount — удалено временных файлов
	TempCount int
	// Errors — количество ошибок удаления
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// GCService — сервис фоновой очистки дискового кэша.
type GCService struct {
	disk     Sweeper
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGCService создаёт сервис GC.
func NewGCService(disk Sweeper, interval time.Duration, logger *slog.Logger) *GCService {
	return &GCService{
		disk:     disk,
		interval: interval,
		logger:   logger.With(slog.String("component", "gc")),
	}
}

// Start запускает фоновую горутину GC.
// Вызывается один раз при старте приложения.
func (gc *GCService) Start(ctx context.Context) {
	gcCtx, cancel := context.WithCancel(ctx)
	gc.cancel = cancel
	gc.done = make(chan struct{})

	go gc.run(gcCtx)

	gc.logger.Info("GC запущен",
		slog.String("interval", gc.interval.String()),
	)
}

// Stop останавливает фоновый процесс GC и дожидается его завершения.
func (gc *GCService) Stop() {
	if gc.cancel == nil {
		return
	}
	gc.cancel()
	<-gc.done
	gc.cancel = nil
	gc.logger.Info("GC остановлен")
}

// run — основной цикл фоновой горутины.
func (gc *GCService) run(ctx context.Context) {
	defer close(gc.done)

	// Первый запуск — сразу после старта
	gc.RunOnce()

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gc.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл GC.
func (gc *GCService) RunOnce() *GCResult {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	start := time.Now()
	sweep := gc.disk.SweepOrphans()

	result := &GCResult{
		OrphanCount: sweep.Orphans,
		TempCount:   sweep.Temp,
		Errors:      sweep.Errors,
		Duration:    time.Since(start),
	}

	gcRunsTotal.Inc()
	gcFilesDeletedTotal.WithLabelValues("orphan").Add(float64(result.OrphanCount))
	gcFilesDeletedTotal.WithLabelValues("temp").Add(float64(result.TempCount))
	gcDurationSeconds.Observe(result.Duration.Seconds())

	gc.logger.Info("GC завершён",
		slog.Int("orphans", result.OrphanCount),
		slog.Int("temp", result.TempCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}
