// Пакет repository — потокобезопасное in-memory хранилище записей
// media coverage, загруженных из фикстуры.
//
// Отвечает на запросы окна по диапазону индексов и на получение
// записи по индексу. Не персистентный: содержимое задаётся при старте.
package repository

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/bigkaa/imageloader/internal/cache"
	"github.com/bigkaa/imageloader/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// RecordStore — хранилище записей с доступом по индексу.
// Использует sync.RWMutex для конкурентного чтения и эксклюзивной замены.
type RecordStore struct {
	mu      sync.RWMutex
	records []model.Coverage
	// thumbnails — ключ кэша → URL миниатюры записи
	thumbnails map[string]string
	logger     *slog.Logger
}

// NewRecordStore создаёт хранилище и заполняет его копией records.
func NewRecordStore(records []model.Coverage, logger *slog.Logger) *RecordStore {
	s := &RecordStore{
		logger: logger.With(slog.String("component", "record_store")),
	}
	s.Replace(records)
	return s
}

// Replace полностью заменяет содержимое хранилища.
func (s *RecordStore) Replace(records []model.Coverage) {
	copied := make([]model.Coverage, len(records))
	copy(copied, records)

	thumbnails := make(map[string]string, len(copied))
	for i := range copied {
		if copied[i].Thumbnail == nil {
			continue
		}
		if u, ok := copied[i].Thumbnail.ThumbnailURL(); ok {
			thumbnails[cache.DeriveKey(u).String()] = u
		}
	}

	s.mu.Lock()
	s.records = copied
	s.thumbnails = thumbnails
	s.mu.Unlock()

	s.logger.Info("Записи загружены в хранилище", slog.Int("records", len(copied)))
}

// Count возвращает общее количество записей.
func (s *RecordStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Window возвращает записи с индексами [start, end] включительно.
// Границы обрезаются по диапазону [0, Count()); пустой диапазон даёт nil.
func (s *RecordStore) Window(start, end int) []model.Coverage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if start < 0 {
		start = 0
	}
	if end >= len(s.records) {
		end = len(s.records) - 1
	}
	if start > end {
		return nil
	}

	result := make([]model.Coverage, end-start+1)
	copy(result, s.records[start:end+1])
	return result
}

// At возвращает запись по индексу.
// Возвращает ErrNotFound, если индекс вне диапазона.
func (s *RecordStore) At(index int) (model.Coverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.records) {
		return model.Coverage{}, ErrNotFound
	}
	return s.records[index], nil
}

// ThumbnailURL возвращает URL миниатюры по ключу кэша.
// Ключи вне хранилища дают ("", false).
func (s *RecordStore) ThumbnailURL(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.thumbnails[key]
	return u, ok
}
