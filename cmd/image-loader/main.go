// main.go — точка входа Image Loader.
// Лента media coverages с постраничной выдачей и двухуровневым кэшем миниатюр.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/bigkaa/imageloader/internal/api/handlers"
	"github.com/bigkaa/imageloader/internal/api/middleware"
	"github.com/bigkaa/imageloader/internal/cache"
	"github.com/bigkaa/imageloader/internal/config"
	"github.com/bigkaa/imageloader/internal/fetchclient"
	"github.com/bigkaa/imageloader/internal/fixture"
	"github.com/bigkaa/imageloader/internal/repository"
	"github.com/bigkaa/imageloader/internal/server"
	"github.com/bigkaa/imageloader/internal/service"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-файлу конфигурации (иначе IL_CONFIG_PATH или ENV)")
	flag.Parse()

	// 1. Загрузка конфигурации
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Image Loader запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("cache_dir", cfg.CacheDir),
	)

	// 3. Записи из фикстуры. Ошибка не фатальна: лента будет пустой (NoData).
	records, err := fixture.LoadFile(cfg.FixturePath)
	if err != nil {
		logger.Error("Фикстура не загружена, лента пуста",
			slog.String("path", cfg.FixturePath),
			slog.String("error", err.Error()),
		)
	}
	store := repository.NewRecordStore(records, logger)

	// 4. Кэш изображений: память + диск
	memory, err := cache.NewMemoryCache(cfg.MemoryCacheSize, logger)
	if err != nil {
		logger.Error("Ошибка создания кэша в памяти", slog.String("error", err.Error()))
		os.Exit(1)
	}
	disk, err := cache.NewDiskCache(osfs.New(cfg.CacheDir), logger)
	if err != nil {
		logger.Error("Ошибка создания дискового кэша",
			slog.String("cache_dir", cfg.CacheDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	imageCache := cache.NewImageCache(memory, disk, logger)

	// 5. Загрузка изображений
	fetcher := fetchclient.New(cfg.FetchTimeout, cfg.FetchMaxBytes, logger)
	loader := service.NewImageLoader(imageCache, fetcher, cfg.PrefetchConcurrency, logger)

	// 6. Фоновые процессы
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6.1 Лента с предзагрузкой миниатюр новых страниц
	output := service.NewPrefetchOutput(ctx, loader, logger)
	pager := service.NewPager(store, output, cfg.PageSize, logger)
	if _, err := pager.LoadFirstPage(); err != nil {
		logger.Warn("Первая страница не загружена",
			slog.String("message", service.DisplayMessage(err)),
		)
	}

	// 6.2 GC — очистка дискового кэша
	gcSvc := service.NewGCService(disk, cfg.GCInterval, logger)
	gcSvc.Start(ctx)

	// 6.3 topologymetrics — мониторинг CDN (если задан IL_CDN_URL)
	var cdnChecker handlers.ReadinessChecker
	var dephealthSvc *service.DephealthService
	if cfg.CDNURL != "" {
		dephealthSvc, err = service.NewDephealthService(
			"image-loader",
			cfg.DephealthGroup,
			cfg.CDNURL,
			cfg.CDNHealthPath,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			cdnChecker = dephealthSvc
			logger.Info("topologymetrics запущен",
				slog.String("cdn_url", cfg.CDNURL),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 7. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewHealthHandler(store, cdnChecker),
		handlers.NewFeedHandler(pager, logger),
		handlers.NewImageHandler(loader, store, logger),
		logger,
	)

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	cancel()
	gcSvc.Stop()
	output.Wait()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Image Loader остановлен")
}
