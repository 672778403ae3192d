package cache

import (
	"image"
	"log/slog"
)

// MemoryTier — быстрый уровень кэша с декодированными изображениями.
type MemoryTier interface {
	Get(key Key) (image.Image, bool)
	Set(key Key, img image.Image)
	Remove(key Key) (image.Image, bool)
}

// DiskTier — долговечный уровень кэша с байтами изображений.
type DiskTier interface {
	Get(key Key) ([]byte, bool)
	Set(key Key, data []byte)
	Remove(key Key) ([]byte, bool)
}

// ImageCache — фасад двухуровневого кэша: read-through при чтении,
// write-through при записи. Все операции сначала вычисляют ключ
// через DeriveKey, затем обращаются к уровням.
type ImageCache struct {
	memory MemoryTier
	disk   DiskTier
	logger *slog.Logger
}

// NewImageCache создаёт фасад поверх уровней memory и disk.
func NewImageCache(memory MemoryTier, disk DiskTier, logger *slog.Logger) *ImageCache {
	return &ImageCache{
		memory: memory,
		disk:   disk,
		logger: logger.With(slog.String("component", "image_cache")),
	}
}

// Get возвращает изображение по URL.
// Попадание в память возвращается без обращения к диску. При промахе
// памяти проверяется диск; найденные байты декодируются и кладутся в память.
func (c *ImageCache) Get(url string) (image.Image, bool) {
	key := DeriveKey(url)

	if img, ok := c.memory.Get(key); ok {
		return img, true
	}

	data, ok := c.disk.Get(key)
	if !ok {
		return nil, false
	}

	img, err := DecodeImage(data)
	if err != nil {
		c.logger.Warn("Повреждённые данные в дисковом кэше, промах",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	c.memory.Set(key, img)
	return img, true
}

// Set записывает изображение в оба уровня: сначала память, затем диск.
// nil-изображение эквивалентно Remove. Ошибка одного уровня
// не откатывает другой.
func (c *ImageCache) Set(url string, img image.Image) {
	if img == nil {
		c.Remove(url)
		return
	}

	key := DeriveKey(url)
	c.memory.Set(key, img)

	data, err := EncodeImage(img)
	if err != nil {
		c.logger.Warn("Изображение не закодировано, дисковый кэш пропущен",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return
	}
	c.disk.Set(key, data)
}

// Remove удаляет изображение из обоих уровней.
// Возвращает изображение из памяти, иначе декодированное с диска, иначе (nil, false).
func (c *ImageCache) Remove(url string) (image.Image, bool) {
	key := DeriveKey(url)

	memImg, memOK := c.memory.Remove(key)
	data, diskOK := c.disk.Remove(key)

	if memOK {
		return memImg, true
	}
	if !diskOK {
		return nil, false
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, false
	}
	return img, true
}
