// Пакет index — персистентный индекс дискового кэша: ключ → путь хранения.
//
// Индекс — единственный долговечный источник истины о соответствии
// ключей файлам. Хранится одним JSON-объектом {"<key>": "<path>"}.
// Каждая мутация синхронно сохраняет полный снимок индекса атомарно:
// temp файл → запись → rename.
//
// Версионирования формата нет: нечитаемый индекс заменяется пустым.
package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// tempPrefix — префикс временных файлов снимка до атомарного rename.
const tempPrefix = ".index-"

// Index — потокобезопасный индекс ключ → путь хранения.
type Index struct {
	mu      sync.RWMutex
	fs      billy.Filesystem
	path    string
	entries map[string]string
	logger  *slog.Logger
}

// Open загружает индекс из файла path файловой системы fs.
// Отсутствующий или повреждённый файл даёт пустой индекс (с предупреждением в лог).
func Open(fs billy.Filesystem, path string, logger *slog.Logger) *Index {
	idx := &Index{
		fs:      fs,
		path:    path,
		entries: make(map[string]string),
		logger:  logger.With(slog.String("component", "cache_index")),
	}

	entries, err := idx.load()
	switch {
	case err == nil:
		idx.entries = entries
	case os.IsNotExist(err):
		idx.logger.Debug("Файл индекса отсутствует, создаётся пустой индекс",
			slog.String("path", path),
		)
	default:
		idx.logger.Warn("Индекс не прочитан, создаётся пустой индекс",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	idx.logger.Info("Индекс дискового кэша загружен",
		slog.Int("entries", len(idx.entries)),
		slog.String("path", path),
	)

	return idx
}

// load читает и декодирует файл индекса.
func (idx *Index) load() (map[string]string, error) {
	data, err := util.ReadFile(idx.fs, idx.path)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("ошибка десериализации индекса %s: %w", idx.path, err)
	}
	return entries, nil
}

// Get возвращает путь хранения по ключу.
func (idx *Index) Get(key string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	p, ok := idx.entries[key]
	return p, ok
}

// Put связывает ключ с путём хранения и сохраняет индекс.
// Возвращает предыдущий путь (если был). При ошибке сохранения
// изменение откатывается в памяти.
func (idx *Index) Put(key, storagePath string) (string, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev, hadPrev := idx.entries[key]
	idx.entries[key] = storagePath

	if err := idx.persistLocked(); err != nil {
		if hadPrev {
			idx.entries[key] = prev
		} else {
			delete(idx.entries, key)
		}
		return "", false, err
	}

	return prev, hadPrev, nil
}

// Delete удаляет ключ и сохраняет индекс.
// Возвращает удалённый путь; отсутствующий ключ — не ошибка (false, nil).
//
// При ошибке сохранения запись остаётся удалённой в памяти и возвращается
// вместе с ошибкой: вызывающий к этому моменту уже удалил файл.
// Устаревший снимок на диске содержит запись без файла, такие записи
// отбрасываются при следующем открытии (см. Retain).
func (idx *Index) Delete(key string) (string, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	p, ok := idx.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(idx.entries, key)

	if err := idx.persistLocked(); err != nil {
		return p, true, err
	}

	return p, true, nil
}

// Retain оставляет только записи, для которых keep возвращает true,
// и сохраняет индекс, если что-то удалено. Возвращает количество удалённых записей.
func (idx *Index) Retain(keep func(key, storagePath string) bool) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := make(map[string]string)
	for k, p := range idx.entries {
		if !keep(k, p) {
			removed[k] = p
			delete(idx.entries, k)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := idx.persistLocked(); err != nil {
		for k, p := range removed {
			idx.entries[k] = p
		}
		return 0, err
	}

	return len(removed), nil
}

// Locations возвращает множество всех путей хранения, на которые ссылается индекс.
func (idx *Index) Locations() map[string]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make(map[string]struct{}, len(idx.entries))
	for _, p := range idx.entries {
		result[p] = struct{}{}
	}
	return result
}

// Count возвращает количество записей.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// RemoveStaleTemp удаляет временные файлы снимка, оставшиеся после
// прерванного сохранения. Возвращает количество удалённых и неудалённых файлов.
func (idx *Index) RemoveStaleTemp() (removed, failed int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	dir := path.Dir(idx.path)
	infos, err := idx.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0
		}
		idx.logger.Warn("Ошибка сканирования директории индекса",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
		return 0, 1
	}

	for _, info := range infos {
		if info.IsDir() || !strings.HasPrefix(info.Name(), tempPrefix) {
			continue
		}
		if err := idx.fs.Remove(path.Join(dir, info.Name())); err != nil && !os.IsNotExist(err) {
			failed++
			continue
		}
		removed++
	}
	return removed, failed
}

// persistLocked атомарно записывает снимок индекса. Вызывается под idx.mu.
func (idx *Index) persistLocked() error {
	data, err := json.Marshal(idx.entries)
	if err != nil {
		return fmt.Errorf("ошибка сериализации индекса: %w", err)
	}

	dir := path.Dir(idx.path)
	if err := idx.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	f, err := idx.fs.TempFile(dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		idx.fs.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			idx.fs.Remove(tmpPath)
			return fmt.Errorf("ошибка fsync: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		idx.fs.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := idx.fs.Rename(tmpPath, idx.path); err != nil {
		idx.fs.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}
