package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/imageloader/internal/cache"
	"github.com/bigkaa/imageloader/internal/domain/model"
	"github.com/bigkaa/imageloader/internal/repository"
	"github.com/bigkaa/imageloader/internal/service"
)

// testLogger возвращает логгер для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// mockImageService — мок ImageService с func-полем.
type mockImageService struct {
	loadFn func(ctx context.Context, url string) (image.Image, error)
}

func (m *mockImageService) LoadURL(ctx context.Context, url string) (image.Image, error) {
	return m.loadFn(ctx, url)
}

// mockChecker — мок ReadinessChecker.
type mockChecker struct {
	status, message string
}

func (m mockChecker) CheckReady() (string, string) { return m.status, m.message }

func makeCoverages(n int) []model.Coverage {
	records := make([]model.Coverage, n)
	for i := range records {
		records[i] = model.Coverage{
			ID:          fmt.Sprintf("rec-%d", i),
			CoverageURL: fmt.Sprintf("https://news.example/%d", i),
			Thumbnail: &model.ImageDescriptor{
				ID:       fmt.Sprintf("thumb-%d", i),
				Domain:   "https://cdn.example",
				BasePath: "images",
				Key:      fmt.Sprintf("%d.jpg", i),
			},
		}
	}
	return records
}

// newTestRouter собирает роутер с реальным Pager поверх n записей.
func newTestRouter(t *testing.T, n int, images ImageService) http.Handler {
	t.Helper()
	store := repository.NewRecordStore(makeCoverages(n), testLogger())
	pager := service.NewPager(store, nil, 20, testLogger())

	api := NewAPIHandler(
		NewHealthHandler(store, nil),
		NewFeedHandler(pager, testLogger()),
		NewImageHandler(images, store, testLogger()),
		testLogger(),
	)
	router := chi.NewRouter()
	api.Register(router)
	return router
}

func doRequest(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeFeed(t *testing.T, rec *httptest.ResponseRecorder) feedResponse {
	t.Helper()
	var resp feedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	return resp
}

func TestFeed_Pagination(t *testing.T) {
	router := newTestRouter(t, 45, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/feed/reload")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: статус %d, тело %s", rec.Code, rec.Body.String())
	}
	resp := decodeFeed(t, rec)
	if resp.Page != 1 || len(resp.Items) != 20 {
		t.Fatalf("reload: page=%d items=%d", resp.Page, len(resp.Items))
	}
	if resp.Items[0].ThumbnailURL != "https://cdn.example/images/0/0.jpg" {
		t.Errorf("thumbnail_url = %q", resp.Items[0].ThumbnailURL)
	}
	if resp.Items[0].ImagePath != ImagePath("https://cdn.example/images/0/0.jpg") {
		t.Errorf("image_path = %q", resp.Items[0].ImagePath)
	}

	for _, want := range []int{40, 45} {
		rec = doRequest(router, http.MethodPost, "/api/v1/feed/more")
		if rec.Code != http.StatusOK {
			t.Fatalf("more: статус %d", rec.Code)
		}
		if got := len(decodeFeed(t, rec).Items); got != want {
			t.Fatalf("more: items=%d, ожидалось %d", got, want)
		}
	}

	rec = doRequest(router, http.MethodPost, "/api/v1/feed/more")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("more после конца: статус %d, ожидался 404", rec.Code)
	}
	var body struct {
		Error struct{ Code, Message string } `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if body.Error.Code != "NO_DATA" || body.Error.Message != "No More Images To Show" {
		t.Errorf("ошибка = %+v", body.Error)
	}

	resp = decodeFeed(t, doRequest(router, http.MethodGet, "/api/v1/feed"))
	if resp.Page != 3 || !resp.Exhausted || len(resp.Items) != 45 {
		t.Errorf("снимок: page=%d exhausted=%v items=%d", resp.Page, resp.Exhausted, len(resp.Items))
	}
}

func TestFeed_EmptyStore(t *testing.T) {
	router := newTestRouter(t, 0, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/feed/reload")
	if rec.Code != http.StatusNotFound {
		t.Errorf("статус %d, ожидался 404", rec.Code)
	}
}

func TestOpenCoverage(t *testing.T) {
	router := newTestRouter(t, 3, nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/coverages/1/open")
	if rec.Code != http.StatusFound {
		t.Fatalf("статус %d, ожидался 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://news.example/1" {
		t.Errorf("Location = %q", loc)
	}

	if rec := doRequest(router, http.MethodGet, "/api/v1/coverages/99/open"); rec.Code != http.StatusNotFound {
		t.Errorf("несуществующая запись: статус %d, ожидался 404", rec.Code)
	}
	if rec := doRequest(router, http.MethodGet, "/api/v1/coverages/abc/open"); rec.Code != http.StatusBadRequest {
		t.Errorf("некорректный index: статус %d, ожидался 400", rec.Code)
	}
}

func TestGetImage(t *testing.T) {
	records := makeCoverages(2)
	imageURL, _ := records[0].Thumbnail.ThumbnailURL()
	failingURL, _ := records[1].Thumbnail.ThumbnailURL()

	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	errUpstream := errors.New("503")
	images := &mockImageService{loadFn: func(_ context.Context, url string) (image.Image, error) {
		if url == imageURL {
			return src, nil
		}
		return nil, errUpstream
	}}
	router := newTestRouter(t, 2, images)

	rec := doRequest(router, http.MethodGet, ImagePath(imageURL))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d, тело %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	data, _ := io.ReadAll(rec.Body)
	img, err := cache.DecodeImage(data)
	if err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Errorf("размер = %v", img.Bounds())
	}

	if rec := doRequest(router, http.MethodGet, ImagePath(failingURL)); rec.Code != http.StatusBadGateway {
		t.Errorf("ошибка загрузки: статус %d, ожидался 502", rec.Code)
	}
}

// TestGetImage_UnknownURL проверяет, что URL вне записей не загружается.
func TestGetImage_UnknownURL(t *testing.T) {
	var calls atomic.Int32
	images := &mockImageService{loadFn: func(_ context.Context, url string) (image.Image, error) {
		calls.Add(1)
		return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
	}}
	router := newTestRouter(t, 3, images)

	for _, path := range []string{
		ImagePath("http://127.0.0.1:8080/admin/secret"),
		ImagePath("https://cdn.example/images/0/999.jpg"),
		"/api/v1/images/deadbeef",
	} {
		rec := doRequest(router, http.MethodGet, path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: статус %d, ожидался 404", path, rec.Code)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("загрузок %d, ожидалось 0", n)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		records    int
		cdn        ReadinessChecker
		wantStatus string
	}{
		{"всё в порядке", 2, nil, statusOK},
		{"нет записей", 0, nil, statusDegraded},
		{"CDN недоступен", 2, mockChecker{status: statusDegraded, message: "image-cdn недоступен"}, statusDegraded},
		{"CDN fail", 2, mockChecker{status: statusFail}, statusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewRecordStore(makeCoverages(tt.records), testLogger())
			h := NewHealthHandler(store, tt.cdn)

			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("ошибка декодирования: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("статус = %q, ожидался %q", resp.Status, tt.wantStatus)
			}
			wantCode := http.StatusOK
			if tt.wantStatus == statusFail {
				wantCode = http.StatusServiceUnavailable
			}
			if rec.Code != wantCode {
				t.Errorf("HTTP статус = %d, ожидался %d", rec.Code, wantCode)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	var resp healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if resp.Status != statusOK || resp.Service != serviceName {
		t.Errorf("ответ = %+v", resp)
	}
}
