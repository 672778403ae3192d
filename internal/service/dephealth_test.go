package service

import (
	"testing"
)

// TestReadinessFromHealth проверяет сведение состояния зависимостей к статусу.
func TestReadinessFromHealth(t *testing.T) {
	tests := []struct {
		name       string
		health     map[string]bool
		wantStatus string
	}{
		{"нет данных", nil, "ok"},
		{"CDN доступен", map[string]bool{"image-cdn": true}, "ok"},
		{"CDN недоступен", map[string]bool{"image-cdn": false}, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := readinessFromHealth(tt.health)
			if status != tt.wantStatus {
				t.Errorf("статус = %q, ожидался %q", status, tt.wantStatus)
			}
		})
	}
}
