package model

import "testing"

// TestURLToOpen проверяет выбор ссылки: PDF-копия приоритетнее CoverageURL.
func TestURLToOpen(t *testing.T) {
	tests := []struct {
		name     string
		coverage Coverage
		want     string
	}{
		{
			name:     "без backup",
			coverage: Coverage{CoverageURL: "https://news.example/a"},
			want:     "https://news.example/a",
		},
		{
			name: "пустой pdfLink",
			coverage: Coverage{
				CoverageURL: "https://news.example/a",
				Backup:      &BackupDetails{ScreenshotURL: "https://cdn.example/s.png"},
			},
			want: "https://news.example/a",
		},
		{
			name: "есть pdfLink",
			coverage: Coverage{
				CoverageURL: "https://news.example/a",
				Backup:      &BackupDetails{PDFLink: "https://cdn.example/a.pdf"},
			},
			want: "https://cdn.example/a.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.coverage.URLToOpen(); got != tt.want {
				t.Errorf("URLToOpen() = %q, ожидался %q", got, tt.want)
			}
		})
	}
}

// TestThumbnailURL проверяет сборку URL миниатюры.
func TestThumbnailURL(t *testing.T) {
	d := &ImageDescriptor{Domain: "https://cdn.example", BasePath: "images/covers", Key: "abc.jpg"}

	got, ok := d.ThumbnailURL()
	if !ok {
		t.Fatal("ожидался URL для полного дескриптора")
	}
	if want := "https://cdn.example/images/covers/0/abc.jpg"; got != want {
		t.Errorf("ThumbnailURL() = %q, ожидался %q", got, want)
	}
}

// TestThumbnailURL_Incomplete проверяет отсутствие URL при неполном дескрипторе.
func TestThumbnailURL_Incomplete(t *testing.T) {
	cases := []*ImageDescriptor{
		nil,
		{BasePath: "p", Key: "k"},
		{Domain: "d", Key: "k"},
		{Domain: "d", BasePath: "p"},
	}

	for i, d := range cases {
		if u, ok := d.ThumbnailURL(); ok {
			t.Errorf("случай %d: ожидалось отсутствие URL, получен %q", i, u)
		}
	}
}
