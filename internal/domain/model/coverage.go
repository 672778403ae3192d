// Пакет model — доменные модели image-loader.
// Coverage — запись о публикации в СМИ из JSON-фикстуры,
// ImageDescriptor — описание загружаемой миниатюры.
// Все модели неизменяемы после декодирования.
package model

import "strings"

// Coverage — одна запись media coverage из фикстуры.
type Coverage struct {
	// ID — идентификатор записи
	ID string `json:"id"`
	// Title — заголовок публикации
	Title string `json:"title"`
	// Language — язык публикации
	Language string `json:"language"`
	// Thumbnail — миниатюра (nil, если отсутствует в фикстуре)
	Thumbnail *ImageDescriptor `json:"thumbnail,omitempty"`
	// MediaType — тип медиа (числовой код источника)
	MediaType int `json:"mediaType"`
	// CoverageURL — ссылка на оригинальную публикацию
	CoverageURL string `json:"coverageURL"`
	// PublishedAt — дата публикации (строка в формате источника)
	PublishedAt string `json:"publishedAt"`
	// PublishedBy — издатель
	PublishedBy string `json:"publishedBy"`
	// Backup — резервные копии публикации (PDF, скриншот)
	Backup *BackupDetails `json:"backupDetails,omitempty"`
}

// BackupDetails — резервные копии публикации.
type BackupDetails struct {
	PDFLink       string `json:"pdfLink"`
	ScreenshotURL string `json:"screenshotURL"`
}

// URLToOpen возвращает ссылку для открытия публикации:
// PDF-копия, если она есть, иначе CoverageURL.
func (c *Coverage) URLToOpen() string {
	if c.Backup != nil && c.Backup.PDFLink != "" {
		return c.Backup.PDFLink
	}
	return c.CoverageURL
}

// qualityPlaceholder — фиксированный сегмент индекса качества в URL миниатюры.
const qualityPlaceholder = "0"

// ImageDescriptor — описание миниатюры, достаточное для её загрузки.
type ImageDescriptor struct {
	ID          string  `json:"id"`
	Version     int     `json:"version"`
	Domain      string  `json:"domain"`
	BasePath    string  `json:"basePath"`
	Key         string  `json:"key"`
	Qualities   []int   `json:"qualities"`
	AspectRatio float32 `json:"aspectRatio"`
}

// ThumbnailURL собирает URL миниатюры: {domain}/{basePath}/0/{key}.
// Возвращает ("", false), если хотя бы одна из частей пуста.
func (d *ImageDescriptor) ThumbnailURL() (string, bool) {
	if d == nil || d.Domain == "" || d.BasePath == "" || d.Key == "" {
		return "", false
	}
	return strings.Join([]string{d.Domain, d.BasePath, qualityPlaceholder, d.Key}, "/"), true
}
