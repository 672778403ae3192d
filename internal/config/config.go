// Пакет config — загрузка и валидация конфигурации Image Loader
// из YAML-файла и переменных окружения.
//
// Приоритет источников:
//  1. явный путь, переданный в Load;
//  2. переменная окружения IL_CONFIG_PATH;
//  3. только переменные окружения.
//
// Переменные окружения всегда переопределяют значения из файла.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Image Loader.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int `yaml:"port" env:"IL_PORT" env-default:"8040"`
	// Уровень логирования (debug, info, warn, error)
	LogLevelName string `yaml:"log_level" env:"IL_LOG_LEVEL" env-default:"info"`
	// Формат логов (json, text)
	LogFormat string `yaml:"log_format" env:"IL_LOG_FORMAT" env-default:"json"`

	// --- Данные ---

	// Путь к JSON-фикстуре с записями
	FixturePath string `yaml:"fixture_path" env:"IL_FIXTURE_PATH" env-required:"true"`
	// Размер страницы ленты
	PageSize int `yaml:"page_size" env:"IL_PAGE_SIZE" env-default:"20"`

	// --- Кэш ---

	// Ёмкость кэша в памяти (изображений)
	MemoryCacheSize int `yaml:"memory_cache_size" env:"IL_MEMORY_CACHE_SIZE" env-default:"20"`
	// Каталог дискового кэша (по умолчанию <TMPDIR>/image-loader)
	CacheDir string `yaml:"cache_dir" env:"IL_CACHE_DIR"`
	// Интервал GC дискового кэша
	GCInterval time.Duration `yaml:"gc_interval" env:"IL_GC_INTERVAL" env-default:"1h"`

	// --- Загрузка изображений ---

	// Таймаут загрузки одного изображения
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"IL_FETCH_TIMEOUT" env-default:"30s"`
	// Максимальный размер загружаемого изображения в байтах
	FetchMaxBytes int64 `yaml:"fetch_max_bytes" env:"IL_FETCH_MAX_BYTES" env-default:"20971520"`
	// Параллелизм предзагрузки миниатюр страницы
	PrefetchConcurrency int `yaml:"prefetch_concurrency" env:"IL_PREFETCH_CONCURRENCY" env-default:"4"`

	// --- Мониторинг зависимостей ---

	// Базовый URL CDN миниатюр (пусто — мониторинг выключен)
	CDNURL string `yaml:"cdn_url" env:"IL_CDN_URL"`
	// Путь проверки доступности CDN
	CDNHealthPath string `yaml:"cdn_health_path" env:"IL_CDN_HEALTH_PATH" env-default:"/"`
	// Группа в метриках dephealth
	DephealthGroup string `yaml:"dephealth_group" env:"IL_DEPHEALTH_GROUP" env-default:"image-loader"`
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration `yaml:"dephealth_check_interval" env:"IL_DEPHEALTH_CHECK_INTERVAL" env-default:"15s"`

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration `yaml:"http_read_timeout" env:"IL_HTTP_READ_TIMEOUT" env-default:"30s"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout" env:"IL_HTTP_WRITE_TIMEOUT" env-default:"60s"`
	HTTPIdleTimeout  time.Duration `yaml:"http_idle_timeout" env:"IL_HTTP_IDLE_TIMEOUT" env-default:"120s"`

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"IL_SHUTDOWN_TIMEOUT" env-default:"5s"`

	// LogLevel — разобранный LogLevelName, заполняется в Load
	LogLevel slog.Level `yaml:"-"`
}

// Load загружает конфигурацию.
// path — путь к YAML-файлу, пустая строка — IL_CONFIG_PATH или только ENV.
// Возвращает ошибку, если обязательные параметры не заданы
// или значения некорректны.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("IL_CONFIG_PATH")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("файл конфигурации не найден: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("чтение переменных окружения: %w", err)
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "image-loader")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate проверяет значения и заполняет производные поля.
func (c *Config) validate() error {
	var err error

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("IL_PORT: недопустимый порт %d", c.Port)
	}

	c.LogLevel, err = parseLogLevel(c.LogLevelName)
	if err != nil {
		return fmt.Errorf("IL_LOG_LEVEL: %w", err)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("IL_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", c.LogFormat)
	}

	if c.FixturePath == "" {
		return errors.New("IL_FIXTURE_PATH: обязательный параметр не задан")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("IL_PAGE_SIZE: значение должно быть > 0, получено %d", c.PageSize)
	}
	if c.MemoryCacheSize < 1 {
		return fmt.Errorf("IL_MEMORY_CACHE_SIZE: значение должно быть > 0, получено %d", c.MemoryCacheSize)
	}
	if c.PrefetchConcurrency < 1 {
		return fmt.Errorf("IL_PREFETCH_CONCURRENCY: значение должно быть > 0, получено %d", c.PrefetchConcurrency)
	}
	if c.FetchMaxBytes < 1 {
		return fmt.Errorf("IL_FETCH_MAX_BYTES: значение должно быть > 0, получено %d", c.FetchMaxBytes)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"IL_GC_INTERVAL", c.GCInterval},
		{"IL_FETCH_TIMEOUT", c.FetchTimeout},
		{"IL_DEPHEALTH_CHECK_INTERVAL", c.DephealthCheckInterval},
		{"IL_HTTP_READ_TIMEOUT", c.HTTPReadTimeout},
		{"IL_HTTP_WRITE_TIMEOUT", c.HTTPWriteTimeout},
		{"IL_HTTP_IDLE_TIMEOUT", c.HTTPIdleTimeout},
		{"IL_SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s: значение должно быть > 0", d.name)
		}
	}

	if c.CDNURL != "" && !strings.HasPrefix(c.CDNURL, "http://") && !strings.HasPrefix(c.CDNURL, "https://") {
		return fmt.Errorf("IL_CDN_URL: ожидается http(s) URL, получено %q", c.CDNURL)
	}

	return nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
