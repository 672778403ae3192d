// health.go — обработчики health endpoints Image Loader.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (записи загружены, CDN доступен)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/imageloader/internal/config"
)

// serviceName — имя сервиса в ответах probes.
const serviceName = "image-loader"

// Константы статусов health check.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// RecordCounter — источник количества загруженных записей.
type RecordCounter interface {
	Count() int
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	records     RecordCounter
	cdnChecker  ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// cdnChecker может быть nil — мониторинг CDN выключен.
func NewHealthHandler(records RecordCounter, cdnChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		records:     records,
		cdnChecker:  cdnChecker,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Records healthCheckResult `json:"records"`
		CDN     healthCheckResult `json:"cdn"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe.
// Пустое хранилище записей и недоступный CDN дают degraded (200):
// сервис отвечает, но ленте нечего показать или миниатюры берутся только из кэша.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	switch {
	case h.records == nil:
		resp.Checks.Records = healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	case h.records.Count() == 0:
		resp.Checks.Records = healthCheckResult{Status: statusDegraded, Message: "записи не загружены"}
	default:
		resp.Checks.Records = healthCheckResult{Status: statusOK}
	}

	if h.cdnChecker != nil {
		status, msg := h.cdnChecker.CheckReady()
		resp.Checks.CDN = healthCheckResult{Status: status, Message: msg}
	} else {
		resp.Checks.CDN = healthCheckResult{Status: statusOK, Message: "мониторинг выключен"}
	}

	resp.Status = overallStatus(resp.Checks.Records.Status, resp.Checks.CDN.Status)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
