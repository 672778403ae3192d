package fetchclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newMockCDN создаёт тестовый HTTP-сервер, имитирующий CDN.
func newMockCDN(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

// TestFetch_Success проверяет скачивание тела ответа.
func TestFetch_Success(t *testing.T) {
	srv := newMockCDN(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "image/*" {
			t.Errorf("Accept = %q, ожидался image/*", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})
	defer srv.Close()

	c := New(5*time.Second, 0, slog.Default())
	data, err := c.Fetch(context.Background(), srv.URL+"/images/0/a.png")
	if err != nil {
		t.Fatalf("Fetch ошибка: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("тело = %q, ожидалось png-bytes", data)
	}
}

// TestFetch_NotFound проверяет ошибку на статус 404.
func TestFetch_NotFound(t *testing.T) {
	srv := newMockCDN(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	c := New(5*time.Second, 0, slog.Default())
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("ожидалась ErrUnexpectedStatus, получено %v", err)
	}
}

// TestFetch_TooLarge проверяет лимит размера ответа.
func TestFetch_TooLarge(t *testing.T) {
	srv := newMockCDN(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	})
	defer srv.Close()

	c := New(5*time.Second, 10, slog.Default())
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ожидалась ErrTooLarge, получено %v", err)
	}
}

// TestFetch_Cancelled проверяет прерывание запроса отменой контекста.
func TestFetch_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := newMockCDN(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	})
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(5*time.Second, 0, slog.Default())
	if _, err := c.Fetch(ctx, srv.URL); err == nil {
		t.Fatal("ожидалась ошибка при отмене контекста")
	}
}
