package cache

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/imageloader/internal/storage/filestore"
	"github.com/bigkaa/imageloader/internal/storage/index"
)

// Раскладка дискового кэша внутри корня файловой системы.
const (
	// FilesDir — директория файлов содержимого
	FilesDir = "files"
	// IndexFile — файл персистентного индекса
	IndexFile = "index.json"
)

// Prometheus-метрики дискового кэша.
var (
	diskHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "il_disk_cache_hits_total",
		Help: "Общее количество попаданий в дисковый кэш изображений.",
	})
	diskMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "il_disk_cache_misses_total",
		Help: "Общее количество промахов дискового кэша изображений.",
	})
	diskErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "il_disk_cache_errors_total",
		Help: "Поглощённые ошибки ввода-вывода дискового кэша (по операции).",
	}, []string{"op"})
)

// DiskCache — неограниченный долговечный кэш байтов изображений.
// Состоит из персистентного индекса (ключ → путь) и файлов содержимого.
//
// Все ошибки ввода-вывода поглощаются: чтение деградирует до промаха,
// запись и удаление выполняются по принципу best-effort.
// Инвариант: каждая запись индекса ссылается на существующий файл —
// файл пишется до обновления индекса и удаляется до удаления записи.
type DiskCache struct {
	// mu сериализует мутации: последовательность lookup → файл → индекс
	// атомарна относительно других мутаций
	mu     sync.RWMutex
	store  *filestore.FileStore
	idx    *index.Index
	logger *slog.Logger
}

// NewDiskCache открывает дисковый кэш в корне файловой системы fs.
// Записи индекса без файлов удаляются при открытии.
func NewDiskCache(fs billy.Filesystem, logger *slog.Logger) (*DiskCache, error) {
	store, err := filestore.New(fs, FilesDir)
	if err != nil {
		return nil, fmt.Errorf("инициализация хранилища файлов: %w", err)
	}

	dc := &DiskCache{
		store:  store,
		idx:    index.Open(fs, IndexFile, logger),
		logger: logger.With(slog.String("component", "disk_cache")),
	}

	dc.reconcile()

	return dc, nil
}

// reconcile удаляет из индекса записи, файлы которых отсутствуют.
func (dc *DiskCache) reconcile() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed, err := dc.idx.Retain(func(_, storagePath string) bool {
		return dc.store.Exists(storagePath)
	})
	if err != nil {
		diskErrorsTotal.WithLabelValues("reconcile").Inc()
		dc.logger.Warn("Ошибка сверки индекса с файлами", slog.String("error", err.Error()))
		return
	}
	if removed > 0 {
		dc.logger.Info("Из индекса удалены записи без файлов", slog.Int("removed", removed))
	}
}

// Get возвращает байты изображения по ключу.
// Отсутствующий или нечитаемый файл — промах, не ошибка.
func (dc *DiskCache) Get(key Key) ([]byte, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	storagePath, ok := dc.idx.Get(key.String())
	if !ok {
		diskMissesTotal.Inc()
		return nil, false
	}

	data, err := dc.store.Read(storagePath)
	if err != nil {
		diskErrorsTotal.WithLabelValues("read").Inc()
		diskMissesTotal.Inc()
		dc.logger.Debug("Файл кэша не прочитан, промах",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	diskHitsTotal.Inc()
	return data, true
}

// Set записывает байты в новый файл и связывает с ним ключ.
// Индекс сохраняется синхронно до возврата. Предыдущий файл ключа
// удаляется после успешного обновления индекса.
func (dc *DiskCache) Set(key Key, data []byte) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	storagePath, err := dc.store.Save(data)
	if err != nil {
		diskErrorsTotal.WithLabelValues("write").Inc()
		dc.logger.Warn("Ошибка записи файла кэша",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	prev, hadPrev, err := dc.idx.Put(key.String(), storagePath)
	if err != nil {
		diskErrorsTotal.WithLabelValues("index").Inc()
		dc.logger.Warn("Ошибка сохранения индекса, файл удаляется",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		dc.deleteFile(storagePath)
		return
	}

	if hadPrev && prev != storagePath {
		dc.deleteFile(prev)
	}
}

// Remove удаляет запись: сначала файл, затем запись индекса.
// Возвращает удалённые байты, если файл удалось прочитать перед удалением.
// Отсутствующий ключ — успешный no-op.
func (dc *DiskCache) Remove(key Key) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	storagePath, ok := dc.idx.Get(key.String())
	if !ok {
		return nil, false
	}

	data, readErr := dc.store.Read(storagePath)

	if err := dc.store.Delete(storagePath); err != nil {
		diskErrorsTotal.WithLabelValues("delete").Inc()
		dc.logger.Warn("Ошибка удаления файла кэша, запись индекса сохранена",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	// Запись удаляется из индекса в памяти и при ошибке сохранения:
	// файла уже нет, а устаревший снимок исправит reconcile при открытии.
	if _, _, err := dc.idx.Delete(key.String()); err != nil {
		diskErrorsTotal.WithLabelValues("index").Inc()
		dc.logger.Warn("Ошибка сохранения индекса при удалении",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
	}

	if readErr != nil {
		return nil, false
	}
	return data, true
}

// Len возвращает количество записей индекса.
func (dc *DiskCache) Len() int {
	return dc.idx.Count()
}

// Store возвращает хранилище файлов содержимого (для GC).
func (dc *DiskCache) Store() *filestore.FileStore {
	return dc.store
}

// SweepResult — результат очистки файлов, на которые не ссылается индекс.
type SweepResult struct {
	// Orphans — удалено файлов содержимого без записи в индексе
	Orphans int
	// Temp — удалено временных файлов прерванной записи
	Temp int
	// Errors — файлов, которые не удалось удалить
	Errors int
}

// SweepOrphans удаляет файлы содержимого, на которые не ссылается индекс,
// и временные файлы содержимого и снимков индекса. Такие файлы остаются после сбоя между записью
// файла и обновлением индекса. Выполняется под эксклюзивной блокировкой.
func (dc *DiskCache) SweepOrphans() SweepResult {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	var result SweepResult
	referenced := dc.idx.Locations()

	files, err := dc.store.List()
	if err != nil {
		diskErrorsTotal.WithLabelValues("sweep").Inc()
		dc.logger.Warn("Ошибка сканирования файлов кэша", slog.String("error", err.Error()))
		result.Errors++
		return result
	}
	for _, p := range files {
		if _, ok := referenced[p]; ok {
			continue
		}
		if err := dc.store.Delete(p); err != nil {
			result.Errors++
			continue
		}
		result.Orphans++
	}

	temps, err := dc.store.ListTemp()
	if err != nil {
		result.Errors++
	}
	for _, p := range temps {
		if err := dc.store.Delete(p); err != nil {
			result.Errors++
			continue
		}
		result.Temp++
	}

	removed, failed := dc.idx.RemoveStaleTemp()
	result.Temp += removed
	result.Errors += failed

	return result
}

// deleteFile удаляет файл по принципу best-effort.
func (dc *DiskCache) deleteFile(storagePath string) {
	if err := dc.store.Delete(storagePath); err != nil {
		diskErrorsTotal.WithLabelValues("delete").Inc()
		dc.logger.Warn("Ошибка удаления файла кэша",
			slog.String("path", storagePath),
			slog.String("error", err.Error()),
		)
	}
}
