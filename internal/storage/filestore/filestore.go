// Пакет filestore — операции с файлами содержимого дискового кэша.
// Каждый элемент кэша хранится в отдельном файле со сгенерированным
// уникальным именем. Работает поверх billy.Filesystem: osfs в рабочем
// режиме, memfs в тестах.
package filestore

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

// DataSuffix — расширение файлов содержимого.
const DataSuffix = ".img"

// tmpPrefix — префикс временных файлов до атомарного rename.
const tmpPrefix = ".tmp-"

// FileStore — управление файлами содержимого в директории dir файловой системы fs.
type FileStore struct {
	fs  billy.Filesystem
	dir string
}

// New создаёт FileStore. Создаёт директорию dir, если она не существует.
func New(fs billy.Filesystem, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dir, err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

// Save записывает данные в новый файл и возвращает путь хранения
// (относительно корня файловой системы).
//
// Паттерн: temp файл → запись → sync → atomic rename.
// При ошибке temp файл удаляется.
func (s *FileStore) Save(data []byte) (string, error) {
	storagePath := path.Join(s.dir, generateStorageName())

	f, err := s.fs.TempFile(s.dir, tmpPrefix)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return "", fmt.Errorf("ошибка записи данных: %w", err)
	}

	// osfs-файлы поддерживают fsync, memfs — нет
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			s.fs.Remove(tmpPath)
			return "", fmt.Errorf("ошибка fsync: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := s.fs.Rename(tmpPath, storagePath); err != nil {
		s.fs.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return storagePath, nil
}

// Read читает содержимое файла целиком.
func (s *FileStore) Read(storagePath string) ([]byte, error) {
	data, err := util.ReadFile(s.fs, storagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storagePath)
		}
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", storagePath, err)
	}
	return data, nil
}

// Delete удаляет файл. Возвращает nil, если файл уже не существует.
func (s *FileStore) Delete(storagePath string) error {
	err := s.fs.Remove(storagePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// Exists проверяет существование файла.
func (s *FileStore) Exists(storagePath string) bool {
	_, err := s.fs.Stat(storagePath)
	return err == nil
}

// List возвращает пути всех файлов содержимого в директории данных.
// Временные файлы включаются отдельно, через ListTemp.
func (s *FileStore) List() ([]string, error) {
	return s.list(func(name string) bool {
		return strings.HasSuffix(name, DataSuffix)
	})
}

// ListTemp возвращает пути оставшихся временных файлов
// (следы прерванной записи).
func (s *FileStore) ListTemp() ([]string, error) {
	return s.list(func(name string) bool {
		return strings.HasPrefix(name, tmpPrefix)
	})
}

func (s *FileStore) list(match func(name string) bool) ([]string, error) {
	infos, err := s.fs.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", s.dir, err)
	}

	var result []string
	for _, info := range infos {
		if info.IsDir() || !match(info.Name()) {
			continue
		}
		result = append(result, path.Join(s.dir, info.Name()))
	}
	return result, nil
}

// Dir возвращает директорию данных.
func (s *FileStore) Dir() string {
	return s.dir
}

// generateStorageName генерирует уникальное имя файла: {uuid}.img.
func generateStorageName() string {
	return uuid.New().String() + DataSuffix
}
