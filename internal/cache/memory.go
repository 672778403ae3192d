package cache

import (
	"fmt"
	"image"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMemoryCapacity — ёмкость in-memory кэша по умолчанию.
const DefaultMemoryCapacity = 20

// Prometheus-метрики in-memory кэша.
var (
	memoryHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "il_memory_cache_hits_total",
		Help: "Общее количество попаданий в in-memory кэш изображений.",
	})
	memoryMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "il_memory_cache_misses_total",
		Help: "Общее количество промахов in-memory кэша изображений.",
	})
	memoryEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "il_memory_cache_evictions_total",
		Help: "Количество вытеснений из in-memory кэша по ёмкости.",
	})
)

// MemoryCache — ограниченный по ёмкости LRU-кэш декодированных изображений.
// Обёртка над hashicorp/golang-lru/v2, все операции потокобезопасны.
// Get и Set обновляют давность записи; при переполнении вытесняется
// самая давно использованная запись.
type MemoryCache struct {
	cache    *lru.Cache[Key, image.Image]
	capacity int
	logger   *slog.Logger
}

// NewMemoryCache создаёт кэш на capacity записей.
// capacity <= 0 заменяется на DefaultMemoryCapacity.
func NewMemoryCache(capacity int, logger *slog.Logger) (*MemoryCache, error) {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}

	c, err := lru.New[Key, image.Image](capacity)
	if err != nil {
		return nil, fmt.Errorf("создание LRU-кэша: %w", err)
	}

	return &MemoryCache{
		cache:    c,
		capacity: capacity,
		logger:   logger.With(slog.String("component", "memory_cache")),
	}, nil
}

// Get возвращает изображение по ключу.
// Возвращает (изображение, true) при hit или (nil, false) при miss.
func (m *MemoryCache) Get(key Key) (image.Image, bool) {
	img, ok := m.cache.Get(key)
	if ok {
		memoryHitsTotal.Inc()
		return img, true
	}
	memoryMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет изображение.
// При переполнении вытесняется ровно одна запись.
func (m *MemoryCache) Set(key Key, img image.Image) {
	if evicted := m.cache.Add(key, img); evicted {
		memoryEvictionsTotal.Inc()
		m.logger.Debug("Изображение вытеснено из памяти по ёмкости",
			slog.String("key", key.String()),
			slog.Int("capacity", m.capacity),
		)
	}
}

// Remove удаляет изображение и возвращает удалённое значение.
func (m *MemoryCache) Remove(key Key) (image.Image, bool) {
	img, ok := m.cache.Peek(key)
	if !ok {
		return nil, false
	}
	m.cache.Remove(key)
	return img, true
}

// Len возвращает текущее количество записей.
func (m *MemoryCache) Len() int {
	return m.cache.Len()
}

// Capacity возвращает ёмкость кэша.
func (m *MemoryCache) Capacity() int {
	return m.capacity
}

// Purge очищает кэш.
func (m *MemoryCache) Purge() {
	m.cache.Purge()
}
