package service

import (
	"context"
	"sync"
	"testing"

	"github.com/bigkaa/imageloader/internal/domain/model"
	"github.com/bigkaa/imageloader/internal/repository"
)

// recordingPrefetcher — Prefetcher, запоминающий запрошенные ID.
type recordingPrefetcher struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingPrefetcher) Prefetch(_ context.Context, descriptors []model.ImageDescriptor) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range descriptors {
		p.ids = append(p.ids, d.ID)
	}
	return len(descriptors)
}

// TestPrefetchOutput_OnlyNewItems проверяет, что прогреваются только новые элементы.
func TestPrefetchOutput_OnlyNewItems(t *testing.T) {
	store := repository.NewRecordStore(makeCoverages(25), testLogger())
	prefetcher := &recordingPrefetcher{}
	out := NewPrefetchOutput(context.Background(), prefetcher, testLogger())
	p := NewPager(store, out, 10, testLogger())

	_, _ = p.LoadFirstPage()
	_, _ = p.LoadNextPage()
	_, _ = p.LoadNextPage()
	_, _ = p.LoadNextPage() // ErrNoData
	out.Wait()

	if len(prefetcher.ids) != 25 {
		t.Fatalf("прогрето %d, ожидалось 25", len(prefetcher.ids))
	}
	seen := make(map[string]bool)
	for _, id := range prefetcher.ids {
		if seen[id] {
			t.Errorf("миниатюра %s прогрета повторно", id)
		}
		seen[id] = true
	}

	// Сброс ленты прогревает первую страницу заново.
	_, _ = p.LoadFirstPage()
	out.Wait()
	if len(prefetcher.ids) != 35 {
		t.Errorf("после сброса прогрето %d, ожидалось 35", len(prefetcher.ids))
	}
}
