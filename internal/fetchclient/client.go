// Пакет fetchclient — HTTP-клиент для скачивания исходных байтов изображений
// из CDN. Реализует внешнюю операцию fetch(url) → bytes: каждый вызов
// завершается ровно один раз успехом или ошибкой, без повторов.
package fetchclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ошибки клиента.
var (
	// ErrUnexpectedStatus — CDN ответил статусом, отличным от 200.
	ErrUnexpectedStatus = errors.New("неожиданный статус ответа")
	// ErrTooLarge — тело ответа превышает лимит.
	ErrTooLarge = errors.New("размер изображения превышает лимит")
)

// DefaultMaxBytes — лимит размера скачиваемого изображения (20 МБ).
const DefaultMaxBytes = 20 << 20

// Prometheus-метрики скачивания.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "il_fetch_total",
		Help: "Общее количество скачиваний изображений (по статусу).",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "il_fetch_duration_seconds",
		Help:    "Длительность скачивания изображения.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	fetchBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "il_fetch_bytes_total",
		Help: "Общее количество скачанных байт изображений.",
	})
)

// Client — HTTP-клиент скачивания изображений.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
}

// New создаёт клиент.
// timeout — таймаут одного запроса (IL_FETCH_TIMEOUT).
// maxBytes <= 0 заменяется на DefaultMaxBytes.
func New(timeout time.Duration, maxBytes int64, logger *slog.Logger) *Client {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	transport := &http.Transport{
		// Пул idle-соединений к CDN
		MaxIdleConnsPerHost: 10,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "fetch_client")),
	}
}

// Fetch скачивает тело ответа GET url целиком.
// Отмена ctx прерывает запрос.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		fetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("создание запроса Fetch: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL из фикстуры
	if err != nil {
		fetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("запрос Fetch к %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fetchTotal.WithLabelValues("bad_status").Inc()
		return nil, fmt.Errorf("%w: %d для %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		fetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("чтение тела ответа %s: %w", url, err)
	}
	if int64(len(data)) > c.maxBytes {
		fetchTotal.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, url)
	}

	duration := time.Since(start)
	fetchTotal.WithLabelValues("success").Inc()
	fetchDuration.Observe(duration.Seconds())
	fetchBytesTotal.Add(float64(len(data)))

	c.logger.Debug("Изображение скачано",
		slog.String("url", url),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", duration),
	)

	return data, nil
}
