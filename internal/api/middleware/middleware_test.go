package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{"успех", "/api/v1/feed", http.StatusOK, "level=INFO"},
		{"клиентская ошибка", "/api/v1/feed", http.StatusNotFound, "level=WARN"},
		{"серверная ошибка", "/api/v1/feed", http.StatusInternalServerError, "level=ERROR"},
		{"probe", "/health/live", http.StatusOK, "level=DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("ожидался %s в логе: %s", tt.wantLevel, out)
			}
			if !strings.Contains(out, "bytes=2") {
				t.Errorf("ожидался размер ответа в логе: %s", out)
			}
		})
	}
}

func TestRoutePattern(t *testing.T) {
	var got string
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			got = routePattern(r)
		})
	})
	router.Get("/api/v1/images/{key}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/images/abc123", nil))
	if got != "/api/v1/images/{key}" {
		t.Errorf("шаблон = %q, ожидался /api/v1/images/{key}", got)
	}

	if p := routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); p != unmatchedRoute {
		t.Errorf("без chi: шаблон = %q, ожидался %q", p, unmatchedRoute)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	router := chi.NewRouter()
	router.Use(MetricsMiddleware())
	router.Get("/api/v1/feed", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("статус = %d, ожидался %d", rec.Code, http.StatusTeapot)
	}
}
